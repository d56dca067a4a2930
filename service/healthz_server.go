package service

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// HealthStatus is the payload served at /healthz: whether the process
// is up, and how the most recent suite pass went.
type HealthStatus struct {
	Status     string `json:"status"`
	LastRunID  string `json:"last_run_id,omitempty"`
	LastStatus string `json:"last_run_status,omitempty"`
	LastReport string `json:"last_report,omitempty"`
}

// StatusFunc supplies the current health payload. A nil func reports a
// bare "ok".
type StatusFunc func() HealthStatus

// HealthzServer serves /healthz with the latest suite outcome.
type HealthzServer struct {
	status StatusFunc
	server *http.Server
}

func NewHealthzServer(status StatusFunc) *HealthzServer {
	return &HealthzServer{status: status}
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handle)
	h.server = &http.Server{
		Addr:    addr,
		Handler: cors.AllowAll().Handler(mux),
	}
	return h.server.ListenAndServe()
}

func (h *HealthzServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthzServer) handle(w http.ResponseWriter, r *http.Request) {
	st := HealthStatus{Status: "ok"}
	if h.status != nil {
		st = h.status()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		log.Error("error writing healthz response", "err", err)
	}
}
