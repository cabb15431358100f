// Package extract derives a structured receipt record (date, merchant, total)
// from the raw text returned by a text-recognition service.
//
// Extraction never fails: every field that cannot be found degrades to its
// default, so callers always receive a complete Record.
package extract

import (
	"strings"
	"time"
)

const (
	// UnknownMerchant is used when the text has no non-empty line.
	UnknownMerchant = "Unknown"

	// DateLayout is the canonical year-month-day layout of Record.Date.
	DateLayout = "2006-01-02"
)

// Record is the structured result of extracting one receipt text.
type Record struct {
	Date     string  `json:"date"`     // canonical YYYY-MM-DD, not calendar-checked
	Merchant string  `json:"merchant"` // never empty
	Total    float64 `json:"total"`    // never negative
}

// Extractor holds the clock used when a receipt carries no date.
type Extractor struct {
	Now func() time.Time
}

// New returns an Extractor that falls back to the wall-clock date.
func New() *Extractor {
	return &Extractor{Now: time.Now}
}

// NewWithClock returns an Extractor whose missing-date fallback is pinned to now.
func NewWithClock(now func() time.Time) *Extractor {
	return &Extractor{Now: now}
}

// Extract runs the default Extractor on text.
func Extract(text string) Record {
	return New().Extract(text)
}

// Extract derives the record fields from text.
func (e *Extractor) Extract(text string) Record {
	lines := strings.Split(text, "\n")

	return Record{
		Date:     e.extractDate(text),
		Merchant: extractMerchant(lines),
		Total:    extractTotal(lines),
	}
}

func (e *Extractor) today() string {
	now := time.Now
	if e != nil && e.Now != nil {
		now = e.Now
	}
	return now().Format(DateLayout)
}

// extractMerchant takes the first non-blank line, top-of-receipt convention.
func extractMerchant(lines []string) string {
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return UnknownMerchant
}
