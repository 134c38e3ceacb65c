package handlers

import (
	"context"
	"net/http"
	"time"
)

// Checker probes one backing service.
type Checker func(ctx context.Context) error

// HealthHandler serves GET /healthz and the service banner on GET /.
//
// Health semantics: every checker healthy gives 200 "ok"; some healthy
// gives 503 "degraded"; none healthy gives 503 "unhealthy". The services
// map always lists each dependency's state so operators can see which
// side is down.
type HealthHandler struct {
	checkers map[string]Checker
	timeout  time.Duration
	version  string
}

// NewHealthHandler creates the health handler with named dependency probes.
func NewHealthHandler(version string, checkers map[string]Checker) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		timeout:  5 * time.Second,
		version:  version,
	}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp time.Time         `json:"timestamp"`
}

type bannerResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// Healthz probes every dependency and reports aggregate health.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	services := make(map[string]string, len(h.checkers))
	healthy := 0
	for name, check := range h.checkers {
		if err := check(ctx); err != nil {
			services[name] = "unavailable: " + err.Error()
			continue
		}
		services[name] = "ok"
		healthy++
	}

	resp := healthResponse{Services: services, Timestamp: time.Now().UTC()}
	switch {
	case healthy == len(h.checkers):
		resp.Status = "ok"
		WriteJSON(w, http.StatusOK, resp)
	case healthy > 0:
		resp.Status = "degraded"
		WriteJSON(w, http.StatusServiceUnavailable, resp)
	default:
		resp.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, resp)
	}
}

// Banner identifies the service on the root path.
func (h *HealthHandler) Banner(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, bannerResponse{
		Service: "fileflux",
		Version: h.version,
		Status:  "running",
	})
}
