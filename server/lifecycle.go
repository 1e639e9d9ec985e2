package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
)

// Start runs the hub and serves HTTP on the requested port, falling back
// to a nearby port when it is taken. When openBrowser is non-nil it is
// called with the server URL. Blocks until Stop or a listen error.
func (s *Server) Start(port int, openBrowser func(url string) error) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()

	actual, err := findAvailablePort(port)
	if err != nil {
		return errors.Wrap(err, "find server port")
	}
	if actual != port && port > 0 {
		s.logger.Warnw("Requested port taken, using fallback",
			"symbol", sym.Feed,
			"requested", port,
			"port", actual,
		)
	}

	url := fmt.Sprintf("http://localhost:%d", actual)
	s.logger.Infow("Server ready",
		"symbol", sym.Feed,
		"url", url,
		"websocket", fmt.Sprintf("ws://localhost:%d/ws", actual),
	)

	if openBrowser != nil {
		if err := openBrowser(url); err != nil {
			s.logger.Warnw("Could not open browser",
				"symbol", sym.Feed,
				"error", err,
				"url", url,
			)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.monitorBrowserConnection(url)
		}()
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", actual),
		Handler:           s.setupHTTPRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve http")
	}
	return nil
}

// monitorBrowserConnection warns when no client shows up shortly after the
// browser was asked to open. The URL repeats in the hint so it survives
// scrollback.
func (s *Server) monitorBrowserConnection(url string) {
	select {
	case <-s.ctx.Done():
	case <-time.After(browserConnectTimeout):
		if s.ClientCount() == 0 {
			s.logger.Warnw("No browser connected yet",
				"symbol", sym.Feed,
				"hint", "open "+url+" manually",
			)
		}
	}
}

// Stop drains connections and shuts the server down. Closing client
// connections first unblocks every read pump; the hub then processes the
// resulting unregisters before the context is canceled.
func (s *Server) Stop() error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return nil
	}
	s.logger.Infow("Server draining",
		"symbol", sym.Feed,
		"clients", s.ClientCount(),
	)

	s.mu.RLock()
	conns := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		conns = append(conns, client)
	}
	s.mu.RUnlock()
	for _, client := range conns {
		client.close()
	}

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("HTTP shutdown did not finish cleanly",
				"symbol", sym.Feed,
				"error", err,
			)
		}
		cancel()
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		s.logger.Errorw("Shutdown timed out waiting for workers",
			"symbol", sym.Feed,
			"timeout", ShutdownTimeout,
		)
	}

	s.setState(StateStopped)
	if drops := s.broadcastDrops.Load(); drops > 0 {
		s.logger.Infow("Dropped slow-client messages during lifetime",
			"symbol", sym.Feed,
			"drops", drops,
		)
	}
	s.logger.Infow("Server stopped", "symbol", sym.Feed)
	return nil
}
