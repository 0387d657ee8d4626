package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/audit"
	"github.com/parcelgate/parcelgate/internal/domain/document"
	"github.com/parcelgate/parcelgate/internal/service"
)

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// defaultRecentLimit is the audit record count when ?limit is absent.
const defaultRecentLimit = 50

// maxRecentLimit caps the audit record count per request.
const maxRecentLimit = 500

// documentDecisionRequest is the wire form of a document-store descriptor.
type documentDecisionRequest struct {
	Operation  string            `json:"operation" validate:"required,oneof=read create update delete"`
	Collection string            `json:"collection" validate:"required"`
	DocumentID string            `json:"document_id"`
	Subject    string            `json:"subject"`
	Existing   document.Document `json:"existing,omitempty"`
	Proposed   document.Document `json:"proposed,omitempty"`
}

// storageDecisionRequest is the wire form of an object-store descriptor.
type storageDecisionRequest struct {
	Operation   string `json:"operation" validate:"required,oneof=read create update delete"`
	Path        string `json:"path" validate:"required"`
	Subject     string `json:"subject"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size" validate:"gte=0"`
}

// decisionResponse carries only the boolean; rule names and deny reasons
// stay in the audit trail.
type decisionResponse struct {
	Allowed   bool   `json:"allowed"`
	RequestID string `json:"request_id,omitempty"`
}

// recentResponse is the audit trail listing.
type recentResponse struct {
	Records []audit.Record `json:"records"`
}

// Handler serves the decision API.
type Handler struct {
	engine   access.Engine
	trail    *service.AuditService
	metrics  *Metrics
	health   *HealthChecker
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler wires the decision API over the given engine.
// trail may be nil when no audit trail is configured.
func NewHandler(engine access.Engine, trail *service.AuditService, metrics *Metrics, health *HealthChecker, logger *slog.Logger) *Handler {
	return &Handler{
		engine:   engine,
		trail:    trail,
		metrics:  metrics,
		health:   health,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Routes registers every endpoint on a new mux.
// The prometheus gatherer backs /metrics.
func (h *Handler) Routes(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/decisions", h.handleDocumentDecision)
	mux.HandleFunc("POST /v1/storage/decisions", h.handleStorageDecision)
	mux.HandleFunc("GET /v1/audit/recent", h.handleAuditRecent)
	mux.Handle("GET /health", h.health.Handler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (h *Handler) handleDocumentDecision(w http.ResponseWriter, r *http.Request) {
	var req documentDecisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	start := time.Now()
	decision := h.engine.EvaluateDocument(r.Context(), access.Request{
		Operation:  access.Operation(req.Operation),
		Collection: req.Collection,
		DocumentID: req.DocumentID,
		Subject:    req.Subject,
		Existing:   req.Existing,
		Proposed:   req.Proposed,
	})
	h.observeDecision(audit.KindDocument, req.Operation, decision, time.Since(start))

	LoggerFromContext(r.Context()).Debug("document decision",
		"operation", req.Operation,
		"collection", req.Collection,
		"allowed", decision.Allowed,
	)

	writeJSON(w, http.StatusOK, decisionResponse{
		Allowed:   decision.Allowed,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func (h *Handler) handleStorageDecision(w http.ResponseWriter, r *http.Request) {
	var req storageDecisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	start := time.Now()
	decision := h.engine.EvaluateStorage(r.Context(), access.StorageRequest{
		Operation:   access.Operation(req.Operation),
		Path:        req.Path,
		Subject:     req.Subject,
		ContentType: req.ContentType,
		Size:        req.Size,
	})
	h.observeDecision(audit.KindStorage, req.Operation, decision, time.Since(start))

	LoggerFromContext(r.Context()).Debug("storage decision",
		"operation", req.Operation,
		"path", req.Path,
		"allowed", decision.Allowed,
	)

	writeJSON(w, http.StatusOK, decisionResponse{
		Allowed:   decision.Allowed,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func (h *Handler) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if h.trail == nil {
		writeJSON(w, http.StatusOK, recentResponse{Records: []audit.Record{}})
		return
	}

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecentLimit)
	}

	records := h.trail.Recent(limit)
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, recentResponse{Records: records})
}

// decode reads, parses, and validates a JSON request body.
// Writes the error response itself and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
		http.Error(w, "content type must be application/json", http.StatusUnsupportedMediaType)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "request body too large (max 1MB)", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return false
	}
	if len(body) == 0 {
		http.Error(w, "empty request body", http.StatusBadRequest)
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}

	return true
}

func (h *Handler) observeDecision(kind, operation string, decision access.Decision, elapsed time.Duration) {
	result := audit.DecisionDeny
	if decision.Allowed {
		result = audit.DecisionAllow
	}
	h.metrics.DecisionsTotal.WithLabelValues(kind, operation, result).Inc()
	h.metrics.DecisionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
