package server

import (
	"net/http"

	grapherror "github.com/ndx-io/NDX/graph/error"
	"github.com/ndx-io/NDX/sym"
	"github.com/ndx-io/NDX/timesync"
	"github.com/ndx-io/NDX/version"
)

// HandleWebSocket upgrades the connection and hands the client to the hub.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.State() != StateRunning {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		gerr := grapherror.New(grapherror.CategoryWebSocket, err, "").
			WithSubcategory(grapherror.SubcategoryWSUpgrade).
			WithContext("remote_addr", r.RemoteAddr)
		s.logger.Warnw("Websocket upgrade failed",
			append([]interface{}{"symbol", sym.Feed}, gerr.ToLogFields()...)...)
		return
	}

	client := newClient(s, conn)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		client.close()
		return
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
}

// HandleGraph serves the current graph snapshot.
func (s *Server) HandleGraph(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	g := s.buildGraph()
	s.mu.Lock()
	s.lastGraph = g
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, g)
}

// HandleConvert runs one timestamp conversion.
func (s *Server) HandleConvert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req ConvertRequest
	if !readJSON(w, r, &req) {
		return
	}

	resp, gerr := s.convert(req)
	if gerr != nil {
		s.logger.Warnw("Conversion failed",
			append([]interface{}{"symbol", sym.Feed}, gerr.ToLogFields()...)...)
		writeJSON(w, statusForCategory(gerr.Category), map[string]interface{}{
			"error":       gerr.ToUIMessage(),
			"category":    gerr.Category.String(),
			"subcategory": gerr.Subcategory,
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth reports liveness, version and client count.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	info := version.Get()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"state":   s.State().String(),
		"version": info.Version,
		"commit":  info.Short(),
		"clients": s.ClientCount(),
	})
}

// convert validates the request and runs it against the session graph.
func (s *Server) convert(req ConvertRequest) (*ConvertResponse, *grapherror.GraphError) {
	if req.Source == "" && req.Target == "" {
		return nil, grapherror.Newf(grapherror.CategoryParse,
			"Conversion request is empty", "empty conversion request").
			WithSubcategory(grapherror.SubcategoryParseEmptyRequest)
	}

	source, err := timesync.ParseEpochClockID(req.Source)
	if err != nil {
		return nil, grapherror.New(grapherror.CategoryParse, err,
			"Source must be a device:epoch:clock identity").
			WithSubcategory(grapherror.SubcategoryParseInvalidIdentity).
			WithContext("source", req.Source)
	}
	target, err := timesync.ParseEpochClockID(req.Target)
	if err != nil {
		return nil, grapherror.New(grapherror.CategoryParse, err,
			"Target must be a device:epoch:clock identity").
			WithSubcategory(grapherror.SubcategoryParseInvalidIdentity).
			WithContext("target", req.Target)
	}
	ref, err := timesync.NewTimeReference(source, req.Time)
	if err != nil {
		return nil, grapherror.New(grapherror.CategoryParse, err,
			"Time must be a finite number of seconds").
			WithSubcategory(grapherror.SubcategoryParseInvalidTime)
	}

	out, err := s.session.Graph().Convert(ref, target)
	if err != nil {
		return nil, grapherror.FromTimesync(err).WithContextMap(map[string]interface{}{
			"source": req.Source,
			"target": req.Target,
		})
	}

	return &ConvertResponse{
		Source:    req.Source,
		Target:    req.Target,
		Time:      req.Time,
		Converted: out.Time,
	}, nil
}

// statusForCategory maps error categories onto HTTP statuses. Bad input is
// 400; a well-formed request the graph cannot satisfy is 422.
func statusForCategory(cat grapherror.Category) int {
	switch cat {
	case grapherror.CategoryParse:
		return http.StatusBadRequest
	case grapherror.CategoryConvert:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
