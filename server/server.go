// Package server exposes one session's synchronization graph over HTTP and
// websocket. GET /api/graph returns the current snapshot, POST /api/convert
// runs a timestamp conversion, and /ws streams fresh snapshots to connected
// clients whenever the graph changes.
//
// A single hub goroutine owns the client set and every send to a client
// channel. Connection goroutines hand work to the hub over channels, so
// channel closes never race with sends.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ndx-io/NDX/graph"
	"github.com/ndx-io/NDX/session"
	"github.com/ndx-io/NDX/sym"
)

// Server streams graph snapshots to websocket clients and answers
// conversion requests. Create with NewServer, run with Start, stop with
// Stop.
type Server struct {
	session *session.Session
	builder *graph.Builder
	logger  *zap.SugaredLogger

	// mu guards clients and lastGraph. The hub goroutine is the only
	// writer; handlers take read locks for counts and the cached snapshot.
	mu        sync.RWMutex
	clients   map[*Client]bool
	lastGraph *graph.Graph

	broadcast  chan *graph.Graph
	direct     chan directSend
	register   chan *Client
	unregister chan *Client

	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	verbosity      atomic.Int32
	state          atomic.Int32
	broadcastDrops atomic.Int64
}

// Run processes hub events until the server context is canceled. Start
// launches it; tests may run it directly.
func (s *Server) Run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		case g := <-s.broadcast:
			s.handleBroadcast(g)
		case d := <-s.direct:
			s.handleDirectSend(d)
		}
	}
}

// handleClientRegister admits a new client and greets it with the current
// snapshot. Over-capacity connections are closed immediately.
func (s *Server) handleClientRegister(client *Client) {
	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Client rejected, server full",
			"symbol", sym.Feed,
			"client_id", shortID(client.id),
			"max_clients", MaxClients,
		)
		close(client.send)
		close(client.sendMsg)
		client.close()
		return
	}
	s.clients[client] = true
	count := len(s.clients)
	g := s.lastGraph
	s.mu.Unlock()

	if g == nil {
		g = s.buildGraph()
		s.mu.Lock()
		s.lastGraph = g
		s.mu.Unlock()
	}
	select {
	case client.send <- g:
	default:
		s.removeSlowClient(client)
		return
	}

	s.logger.Infow("Client connected",
		"symbol", sym.Feed,
		"client_id", shortID(client.id),
		"clients", count,
	)
}

// handleClientUnregister removes a client and closes its channels. Clients
// the register path rejected are not in the map and are left alone.
func (s *Server) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)
	count := len(s.clients)
	s.mu.Unlock()

	close(client.send)
	close(client.sendMsg)
	client.close()

	s.logger.Infow("Client disconnected",
		"symbol", sym.Feed,
		"client_id", shortID(client.id),
		"clients", count,
	)
}

// handleBroadcast caches the snapshot and fans it out. Clients with full
// queues are dropped rather than letting one slow reader stall the feed.
func (s *Server) handleBroadcast(g *graph.Graph) {
	s.mu.Lock()
	s.lastGraph = g
	targets := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		targets = append(targets, client)
	}
	s.mu.Unlock()

	sent := 0
	for _, client := range targets {
		select {
		case client.send <- g:
			sent++
		default:
			s.removeSlowClient(client)
		}
	}
	s.logger.Debugw("Graph broadcast",
		"symbol", sym.Feed,
		"nodes", len(g.Nodes),
		"links", len(g.Links),
		"clients", sent,
	)
}

// handleDirectSend delivers a protocol message to one client, if it is
// still registered.
func (s *Server) handleDirectSend(d directSend) {
	s.mu.RLock()
	_, ok := s.clients[d.client]
	s.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case d.client.sendMsg <- d.msg:
	default:
		s.removeSlowClient(d.client)
	}
}

// removeSlowClient drops a client whose queue is full. Runs on the hub
// goroutine only.
func (s *Server) removeSlowClient(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)
	s.mu.Unlock()

	close(client.send)
	close(client.sendMsg)
	client.close()

	drops := s.broadcastDrops.Add(1)
	s.logger.Warnw("Slow client dropped",
		"symbol", sym.Feed,
		"client_id", shortID(client.id),
		"total_drops", drops,
	)
}

// buildGraph renders the session's sync graph into the wire model.
func (s *Server) buildGraph() *graph.Graph {
	return s.builder.Build(s.session.Graph(), s.session.Ref())
}

// Refresh rebuilds the snapshot and queues it for broadcast. Safe to call
// from any goroutine; wired to session graph changes by the serve command.
func (s *Server) Refresh() {
	if s.State() != StateRunning {
		return
	}
	g := s.buildGraph()
	select {
	case s.broadcast <- g:
	default:
		drops := s.broadcastDrops.Add(1)
		s.logger.Warnw("Broadcast queue full, snapshot dropped",
			"symbol", sym.Feed,
			"total_drops", drops,
		)
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// State returns the current lifecycle state.
func (s *Server) State() ServerState {
	return ServerState(s.state.Load())
}

func (s *Server) setState(state ServerState) {
	s.state.Store(int32(state))
}
