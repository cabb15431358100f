package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dvloznov/receipt-auditor/internal/api/middleware"
	"github.com/dvloznov/receipt-auditor/internal/extract"
	"github.com/dvloznov/receipt-auditor/internal/pipeline"
	"github.com/dvloznov/receipt-auditor/internal/risk"
)

// MaxTextBytes bounds the body of an extract request.
const MaxTextBytes = 1 << 20

// ExtractHandler runs extraction and risk assessment over posted text.
type ExtractHandler struct {
	extractor  *extract.Extractor
	classifier *risk.Classifier
}

// NewExtractHandler creates a new extract handler.
func NewExtractHandler(extractor *extract.Extractor, classifier *risk.Classifier) *ExtractHandler {
	return &ExtractHandler{extractor: extractor, classifier: classifier}
}

type extractResponse struct {
	Record     extract.Record  `json:"record"`
	Assessment risk.Assessment `json:"assessment"`
}

// Extract handles POST /api/extract with body {"text": "..."}.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text *string `json:"text"`
	}

	body := http.MaxBytesReader(w, r.Body, MaxTextBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == nil {
		middleware.WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	record, assessment := pipeline.AuditText(*req.Text, h.extractor, h.classifier)
	middleware.WriteJSON(w, http.StatusOK, extractResponse{Record: record, Assessment: assessment})
}
