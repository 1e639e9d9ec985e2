package server

import "net/http"

// setupHTTPRoutes builds the server's route table. The websocket endpoint
// does its own origin check during upgrade and skips the CORS wrapper.
func (s *Server) setupHTTPRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/api/graph", corsMiddleware(s.HandleGraph))
	mux.HandleFunc("/api/convert", corsMiddleware(s.HandleConvert))
	mux.HandleFunc("/health", corsMiddleware(s.HandleHealth))
	return mux
}

// corsMiddleware reflects allowed origins and answers preflight requests.
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}
