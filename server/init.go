package server

import (
	"context"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/graph"
	"github.com/ndx-io/NDX/logger"
	"github.com/ndx-io/NDX/session"
)

// NewServer creates a server for one open session. Verbosity follows the
// CLI flag count (0-4) and only affects this server's logging.
func NewServer(sess *session.Session, verbosity int) (*Server, error) {
	if sess == nil {
		return nil, errors.NewInvalidRequestError("session is nil")
	}
	if verbosity < 0 || verbosity > 4 {
		return nil, errors.NewInvalidRequestError("verbosity %d outside 0-4", verbosity)
	}

	log := logger.ComponentLogger("server")
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		session:    sess,
		builder:    graph.NewBuilder(log),
		logger:     log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *graph.Graph, MaxClientMessageQueueSize),
		direct:     make(chan directSend, MaxClientMessageQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.verbosity.Store(int32(verbosity))
	s.setState(StateRunning)
	return s, nil
}

// Verbosity returns the server's verbosity level.
func (s *Server) Verbosity() int {
	return int(s.verbosity.Load())
}

// SetVerbosity adjusts the verbosity level at runtime. Values outside 0-4
// are clamped.
func (s *Server) SetVerbosity(verbosity int) {
	if verbosity < 0 {
		verbosity = 0
	}
	if verbosity > 4 {
		verbosity = 4
	}
	s.verbosity.Store(int32(verbosity))
}
