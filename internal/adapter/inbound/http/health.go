package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/parcelgate/parcelgate/internal/service"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker verifies component health.
type HealthChecker struct {
	trail   *service.AuditService
	storeOK func() error
	version string
}

// NewHealthChecker creates a HealthChecker.
// trail may be nil; storeOK pings the document store and may be nil.
func NewHealthChecker(trail *service.AuditService, storeOK func() error, version string) *HealthChecker {
	return &HealthChecker{trail: trail, storeOK: storeOK, version: version}
}

// Check runs all component checks.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.storeOK != nil {
		if err := h.storeOK(); err != nil {
			checks["document_store"] = fmt.Sprintf("error: %v", err)
			healthy = false
		} else {
			checks["document_store"] = "ok"
		}
	} else {
		checks["document_store"] = "not configured"
	}

	if h.trail != nil {
		checks["audit"] = "ok"
		if drops := h.trail.DroppedRecords(); drops > 0 {
			checks["audit"] = fmt.Sprintf("%d records dropped", drops)
		}
	} else {
		checks["audit"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{Status: status, Checks: checks, Version: h.version}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}
