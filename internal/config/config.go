// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// OCR providers.
const (
	OCRProviderOCRSpace = "ocrspace"
	OCRProviderGemini   = "gemini"
)

// Config holds the settings shared by the cmds. Values are handed to
// constructors explicitly.
type Config struct {
	ProjectID  string
	Dataset    string
	Table      string
	BQLocation string
	Bucket     string

	OCRProvider string
	OCRAPIKey   string
	OCREndpoint string
	OCRLanguage string

	GeminiModel  string
	GeminiAPIKey string

	NATSURL          string
	NATSAlertSubject string

	APIPort     string
	APIKey      string
	MetricsPort string
	LogLevel    string

	WorkerCount   int
	QueueSize     int
	JobMaxRetries int
}

// Load reads the configuration from environment variables.
func Load() Config {
	return Config{
		ProjectID:  envOr("GCP_PROJECT_ID", ""),
		Dataset:    envOr("BQ_DATASET", "expenses"),
		Table:      envOr("BQ_TABLE", "receipt_audits"),
		BQLocation: envOr("BQ_LOCATION", "asia-south1"),
		Bucket:     envOr("GCS_BUCKET", ""),

		OCRProvider: strings.ToLower(envOr("OCR_PROVIDER", OCRProviderOCRSpace)),
		OCRAPIKey:   envOr("OCR_API_KEY", ""),
		OCREndpoint: envOr("OCR_ENDPOINT", "https://api.ocr.space/parse/image"),
		OCRLanguage: envOr("OCR_LANGUAGE", "eng"),

		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiAPIKey: envOr("GEMINI_API_KEY", ""),

		NATSURL:          envOr("NATS_URL", ""),
		NATSAlertSubject: envOr("NATS_ALERT_SUBJECT", "receipts.flagged"),

		APIPort:     envOr("API_PORT", "8080"),
		APIKey:      envOr("API_KEY", ""),
		MetricsPort: envOr("METRICS_PORT", "9090"),
		LogLevel:    envOr("LOG_LEVEL", "info"),

		WorkerCount:   envInt("WORKER_COUNT", 5),
		QueueSize:     envInt("QUEUE_SIZE", 100),
		JobMaxRetries: envInt("JOB_MAX_RETRIES", 3),
	}
}

// ValidateLedger checks the settings needed to reach the audit table.
func (c Config) ValidateLedger() error {
	var errs []error
	if c.ProjectID == "" {
		errs = append(errs, errors.New("GCP_PROJECT_ID is required"))
	}
	if c.Dataset == "" {
		errs = append(errs, errors.New("BQ_DATASET is required"))
	}
	if c.Table == "" {
		errs = append(errs, errors.New("BQ_TABLE is required"))
	}
	return errors.Join(errs...)
}

// ValidateRecognizer checks the settings of the selected OCR provider.
func (c Config) ValidateRecognizer() error {
	switch c.OCRProvider {
	case OCRProviderOCRSpace:
		if c.OCRAPIKey == "" {
			return errors.New("OCR_API_KEY is required for the ocrspace provider")
		}
	case OCRProviderGemini:
		if c.GeminiModel == "" {
			return errors.New("GEMINI_MODEL is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown OCR_PROVIDER %q", c.OCRProvider)
	}
	return nil
}

func envOr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
