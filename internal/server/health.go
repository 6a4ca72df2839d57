package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/teemow/outreach/internal/tracker"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusFaulted      = "faulted"
)

// HealthChecker provides liveness and readiness endpoints.
type HealthChecker struct {
	ready     atomic.Bool
	campaign  *CampaignContext
	startTime time.Time
}

// NewHealthChecker creates a HealthChecker. sc may be nil in tests.
func NewHealthChecker(sc *CampaignContext) *HealthChecker {
	h := &HealthChecker{
		campaign:  sc,
		startTime: time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

func (h *HealthChecker) isServerShuttingDown() bool {
	return h.campaign != nil && h.campaign.IsShutdown()
}

// trackerStatus returns the tracker snapshot, if there is a tracker.
func (h *HealthChecker) trackerStatus() (tracker.Status, bool) {
	if h.campaign == nil {
		return tracker.Status{}, false
	}
	return h.campaign.Tracker().Status(), true
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse adds uptime and tracker details.
type DetailedHealthResponse struct {
	Status    string     `json:"status"`
	Uptime    string     `json:"uptime"`
	Tracking  string     `json:"tracking,omitempty"`
	State     string     `json:"state,omitempty"`
	Line      string     `json:"status_line,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Cycles    uint64     `json:"cycles"`
	LastCheck *time.Time `json:"last_check,omitempty"`
}

// LivenessHandler returns the /healthz handler.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns the /readyz handler. A faulted tracker makes the
// server not ready until a cycle succeeds again.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		checks := make(map[string]string)
		allOk := true

		if !h.ready.Load() {
			checks["ready"] = healthStatusNotReady
			allOk = false
		} else {
			checks["ready"] = healthStatusOK
		}

		if h.isServerShuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
			allOk = false
		} else {
			checks["shutdown"] = healthStatusOK
		}

		if st, ok := h.trackerStatus(); ok {
			if st.State == tracker.StateFaulted {
				checks["tracker"] = healthStatusFaulted
				allOk = false
			} else {
				checks["tracker"] = st.State.String()
			}
		}

		response := HealthResponse{Checks: checks}
		if allOk {
			response.Status = healthStatusOK
			w.WriteHeader(http.StatusOK)
		} else {
			response.Status = healthStatusNotReady
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	})
}

// DetailedHealthHandler returns the /healthz/detailed handler.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		response := DetailedHealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		if st, ok := h.trackerStatus(); ok {
			response.Tracking = st.Label()
			response.State = st.State.String()
			response.Line = st.Line
			response.LastError = st.LastError
			response.Cycles = st.Cycles
			if !st.LastCheck.IsZero() {
				last := st.LastCheck
				response.LastCheck = &last
			}
		}

		switch {
		case !h.ready.Load():
			response.Status = healthStatusNotReady
			w.WriteHeader(http.StatusServiceUnavailable)
		case h.isServerShuttingDown():
			response.Status = healthStatusShuttingDown
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(response)
	})
}

// RegisterHealthEndpoints registers the health endpoints on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}
