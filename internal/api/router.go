// Package api wires the HTTP surface of the receipt auditor.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/api/handlers"
	"github.com/dvloznov/receipt-auditor/internal/api/middleware"
	"github.com/rs/zerolog"
)

// RouterConfig holds the handlers and settings the router serves.
type RouterConfig struct {
	Receipts *handlers.ReceiptsHandler
	Extract  *handlers.ExtractHandler
	Jobs     *handlers.JobsHandler

	// Metrics is served on /metrics when set.
	Metrics http.Handler

	// APIKey enables X-API-Key checks on /api routes when non-empty.
	APIKey string
	Logger zerolog.Logger
}

// NewRouter builds the mux and wraps it in the middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/receipts", method(http.MethodGet, cfg.Receipts.ListReceipts))
	mux.HandleFunc("/api/receipts/summary", method(http.MethodGet, cfg.Receipts.Summary))
	mux.HandleFunc("/api/receipts/upload", method(http.MethodPost, cfg.Receipts.UploadReceipt))
	mux.HandleFunc("/api/receipts/audit", method(http.MethodPost, cfg.Receipts.AuditReceipt))
	mux.HandleFunc("/api/extract", method(http.MethodPost, cfg.Extract.Extract))

	mux.HandleFunc("/api/jobs", method(http.MethodGet, cfg.Jobs.ListJobs))
	mux.HandleFunc("/api/jobs/", method(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		cfg.Jobs.GetJob(w, r, jobID)
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	return middleware.Recovery(cfg.Logger)(
		middleware.RequestID(
			middleware.Logger(cfg.Logger)(
				middleware.CORS(
					middleware.APIKey(cfg.APIKey, "/health", "/metrics")(mux),
				),
			),
		),
	)
}

func method(want string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != want {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
