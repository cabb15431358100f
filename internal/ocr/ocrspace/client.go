// Package ocrspace is a client for the OCR.space parse/image endpoint.
package ocrspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/ocr"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// DefaultEndpoint is the public OCR.space parse endpoint.
const DefaultEndpoint = "https://api.ocr.space/parse/image"

// Options configures a Client.
type Options struct {
	Endpoint   string
	APIKey     string
	Language   string
	HTTPClient *http.Client
	Logger     zerolog.Logger

	// Breaker settings; zero values use defaults.
	BreakerOpenTimeout  time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
}

// Client calls OCR.space through a circuit breaker.
type Client struct {
	endpoint string
	apiKey   string
	language string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[string]
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Language == "" {
		opts.Language = "eng"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.BreakerOpenTimeout <= 0 {
		opts.BreakerOpenTimeout = 30 * time.Second
	}
	if opts.BreakerMinRequests == 0 {
		opts.BreakerMinRequests = 5
	}
	if opts.BreakerFailureRatio <= 0 || opts.BreakerFailureRatio > 1 {
		opts.BreakerFailureRatio = 0.5
	}

	log := opts.Logger
	settings := gobreaker.Settings{
		Name:        "ocrspace",
		MaxRequests: 1,
		Timeout:     opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < opts.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= opts.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Rejections of one image say nothing about service health.
			return err == nil || errors.Is(err, ErrProcessing)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
		},
	}

	return &Client{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		language: opts.Language,
		http:     opts.HTTPClient,
		breaker:  gobreaker.NewCircuitBreaker[string](settings),
	}
}

// ErrProcessing is returned when OCR.space reports it could not process the image.
var ErrProcessing = errors.New("ocrspace: processing failed")

// IsCircuitOpen reports whether err came from an open breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// Recognize uploads the image and returns the first parsed text block.
// An image without recognizable text yields "" and no error.
func (c *Client) Recognize(ctx context.Context, image []byte, mimeType string) (string, error) {
	text, err := c.breaker.Execute(func() (string, error) {
		return c.recognize(ctx, image, mimeType)
	})
	if err != nil {
		return "", err
	}
	return ocr.NormalizeNewlines(text), nil
}

func (c *Client) recognize(ctx context.Context, image []byte, mimeType string) (string, error) {
	body, contentType, err := buildForm(c.apiKey, c.language, image, mimeType)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("ocrspace: building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocrspace: sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ocrspace: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocrspace: unexpected status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed parseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("ocrspace: decoding response: %w", err)
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("%w: %s", ErrProcessing, errorMessage(parsed.ErrorMessage))
	}
	if len(parsed.ParsedResults) == 0 {
		return "", nil
	}

	return parsed.ParsedResults[0].ParsedText, nil
}

func buildForm(apiKey, language string, image []byte, mimeType string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	fields := [][2]string{
		{"apikey", apiKey},
		{"language", language},
		{"isTable", "true"},
	}
	if ft := fileType(mimeType); ft != "" {
		fields = append(fields, [2]string{"filetype", ft})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("ocrspace: writing field %s: %w", f[0], err)
		}
	}

	part, err := mw.CreateFormFile("file", "receipt"+extension(mimeType))
	if err != nil {
		return nil, "", fmt.Errorf("ocrspace: creating file part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("ocrspace: writing file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("ocrspace: closing form: %w", err)
	}

	return buf, mw.FormDataContentType(), nil
}

// errorMessage flattens ErrorMessage, which the API sends as a string or a list.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown error"
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func fileType(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "PNG"
	case "image/jpeg":
		return "JPG"
	case "image/gif":
		return "GIF"
	case "image/tiff":
		return "TIF"
	case "application/pdf":
		return "PDF"
	}
	return ""
}

func extension(mimeType string) string {
	if ft := fileType(mimeType); ft != "" {
		return "." + strings.ToLower(ft)
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ ocr.Recognizer = (*Client)(nil)
