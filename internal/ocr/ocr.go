// Package ocr defines the text-recognition boundary of the auditor. The
// service behind it is opaque: the auditor only receives raw text.
package ocr

import (
	"context"
	"strings"
)

// Recognizer turns a receipt image into raw recognized text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, mimeType string) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, image []byte, mimeType string) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, image []byte, mimeType string) (string, error) {
	return f(ctx, image, mimeType)
}

// NormalizeNewlines converts CRLF and CR line endings to LF.
func NormalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
