package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/assistdeck/gateway/internal/gateway"
	"github.com/assistdeck/gateway/internal/logging"
	"github.com/assistdeck/gateway/internal/metrics"
)

// Header names for caller identity metadata.
const (
	credentialHeader = "X-Caller-Credential"
	sourceHeader     = "X-Caller-Source"
)

// Server is the thin HTTP front over the gateway core. It only
// translates between HTTP and gateway requests; every decision lives in
// the pipeline.
type Server struct {
	gw      *gateway.Gateway
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewServer creates the HTTP front.
func NewServer(gw *gateway.Gateway, m *metrics.Metrics, logger *logging.Logger) *Server {
	return &Server{gw: gw, metrics: m, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/invoke/{target}/{action}", s.handleInvoke).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	return r
}

// invokeBody is the request body for /invoke.
type invokeBody struct {
	Payload   json.RawMessage `json:"payload,omitempty"`
	Operation string          `json:"operation,omitempty"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body invokeBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":   "BAD_REQUEST",
				"message": "request body must be JSON",
			})
			return
		}
	}

	resp := s.gw.Handle(r.Context(), gateway.Request{
		Target:     vars["target"],
		Action:     vars["action"],
		Payload:    body.Payload,
		Operation:  body.Operation,
		Credential: r.Header.Get(credentialHeader),
		SourceName: r.Header.Get(sourceHeader),
	})

	if resp.Err != nil {
		out := map[string]interface{}{
			"error":   string(resp.Err.Code),
			"message": resp.Err.Message,
		}
		for k, v := range resp.Err.Details {
			out[k] = v
		}
		writeJSON(w, resp.Status, out)
		return
	}

	writeJSON(w, resp.Status, resp.Body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}
