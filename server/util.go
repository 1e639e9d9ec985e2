package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ndx-io/NDX/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin:     checkOrigin,
}

// localOrigins is the fallback when no configuration can be loaded.
var localOrigins = []string{
	"http://localhost",
	"https://localhost",
	"http://127.0.0.1",
	"https://127.0.0.1",
}

// checkOrigin accepts requests without an Origin header (curl, scripts)
// and browser requests whose origin prefix-matches the configured list.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	allowed := localOrigins
	if cfg, err := config.Load(); err == nil {
		allowed = cfg.GetServerAllowedOrigins()
	}
	for _, prefix := range allowed {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// isPortAvailable reports whether the port can be bound on all interfaces.
func isPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// findAvailablePort tries the requested port, then the configured and
// fallback defaults, then walks upward from the requested port.
func findAvailablePort(requested int) (int, error) {
	if requested > 0 && isPortAvailable(requested) {
		return requested, nil
	}

	preferred := []int{config.DefaultServerPort, config.FallbackServerPort}
	for _, port := range preferred {
		if port != requested && isPortAvailable(port) {
			return port, nil
		}
	}

	base := requested
	if base <= 0 {
		base = config.DefaultServerPort
	}
	for port := base + 1; port < base+100; port++ {
		if isPortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port near %d", base)
}
