package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/api/middleware"
	"github.com/dvloznov/receipt-auditor/internal/domain"
	"github.com/dvloznov/receipt-auditor/internal/gcsuploader"
	infra "github.com/dvloznov/receipt-auditor/internal/infra/bigquery"
	"github.com/dvloznov/receipt-auditor/internal/jobs"
	"github.com/dvloznov/receipt-auditor/internal/ledger"
	"github.com/dvloznov/receipt-auditor/internal/logger"
	"github.com/dvloznov/receipt-auditor/internal/risk"
	"github.com/google/uuid"
)

// MaxUploadBytes bounds the size of an uploaded receipt image.
const MaxUploadBytes = 10 << 20

// Uploader stores receipt images.
type Uploader interface {
	UploadReader(ctx context.Context, bucketName, objectName, contentType string, r io.Reader) (string, error)
}

// LedgerReader lists audited receipts.
type LedgerReader interface {
	ListAudits(ctx context.Context, filter infra.AuditFilter) ([]*infra.ReceiptAuditRow, error)
}

// ReceiptsHandler handles receipt upload, audit and ledger endpoints.
type ReceiptsHandler struct {
	uploader  Uploader
	ledger    LedgerReader
	publisher jobs.Publisher
	bucket    string
	now       func() time.Time
}

// NewReceiptsHandler creates a new receipts handler.
func NewReceiptsHandler(uploader Uploader, ledger LedgerReader, publisher jobs.Publisher, bucket string) *ReceiptsHandler {
	return &ReceiptsHandler{
		uploader:  uploader,
		ledger:    ledger,
		publisher: publisher,
		bucket:    bucket,
		now:       time.Now,
	}
}

// UploadReceipt handles POST /api/receipts/upload?filename=
// The request body is the raw image. The object is stored and an audit job enqueued.
func (h *ReceiptsHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.bucket == "" {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Receipt uploads are disabled: no bucket configured")
		return
	}

	filename := cleanFilename(r.URL.Query().Get("filename"))
	if filename == "" {
		middleware.WriteError(w, http.StatusBadRequest, "filename is required")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = gcsuploader.ContentTypeForName(filename)
	}

	objectName := fmt.Sprintf("receipts/%s/%s-%s", h.now().UTC().Format("2006/01/02"), uuid.NewString(), filename)
	body := http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	gcsURI, err := h.uploader.UploadReader(ctx, h.bucket, objectName, contentType, body)
	if err != nil {
		log.Error().Err(err).Str("object", objectName).Msg("Failed to upload receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload receipt")
		return
	}

	log.Info().Str("gcs_uri", gcsURI).Msg("Receipt uploaded")
	h.enqueue(w, r, gcsURI)
}

// AuditReceipt handles POST /api/receipts/audit for an object already in storage.
func (h *ReceiptsHandler) AuditReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GCSURI string `json:"gcs_uri"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, _, err := gcsuploader.ParseGCSURI(req.GCSURI); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "gcs_uri must look like gs://bucket/object")
		return
	}

	h.enqueue(w, r, req.GCSURI)
}

func (h *ReceiptsHandler) enqueue(w http.ResponseWriter, r *http.Request, gcsURI string) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	job := &jobs.AuditReceiptJob{GCSURI: gcsURI}
	if err := h.publisher.PublishAuditReceipt(ctx, job); err != nil {
		log.Error().Err(err).Str("gcs_uri", gcsURI).Msg("Failed to enqueue audit job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue audit job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("gcs_uri", gcsURI).Msg("Audit job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": gcsURI,
		"status":  string(job.Status),
	})
}

// ListReceipts handles GET /api/receipts?risk_status=&limit=
func (h *ReceiptsHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipts, err := h.listReceipts(r.Context(), filter)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to list receipts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list receipts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"receipts": receipts,
		"count":    len(receipts),
	})
}

// Summary handles GET /api/receipts/summary?risk_status=&top=
func (h *ReceiptsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	top := ledger.DefaultTopN
	if s := r.URL.Query().Get("top"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		top = n
	}

	receipts, err := h.listReceipts(r.Context(), filter)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to summarize receipts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to summarize receipts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, ledger.Summarize(receipts, top))
}

func (h *ReceiptsHandler) listReceipts(ctx context.Context, filter infra.AuditFilter) ([]domain.AuditedReceipt, error) {
	rows, err := h.ledger.ListAudits(ctx, filter)
	if err != nil {
		return nil, err
	}
	receipts := make([]domain.AuditedReceipt, 0, len(rows))
	for _, row := range rows {
		rec := row.ToReceipt()
		// Listings omit the raw OCR text.
		rec.ExtractedText = ""
		receipts = append(receipts, *rec)
	}
	return receipts, nil
}

func parseAuditFilter(r *http.Request) (infra.AuditFilter, error) {
	query := r.URL.Query()
	filter := infra.AuditFilter{}

	if s := strings.ToUpper(query.Get("risk_status")); s != "" {
		if s != string(risk.StatusApproved) && s != string(risk.StatusFlagged) {
			return filter, fmt.Errorf("risk_status must be APPROVED or FLAGGED")
		}
		filter.RiskStatus = s
	}

	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > infra.DefaultListLimit {
			return filter, fmt.Errorf("limit must be between 1 and %d", infra.DefaultListLimit)
		}
		filter.Limit = n
	}

	return filter, nil
}

// cleanFilename keeps only the base name without query residue.
func cleanFilename(name string) string {
	if idx := strings.Index(name, "?"); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
