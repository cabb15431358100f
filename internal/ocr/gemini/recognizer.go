// Package gemini recognizes receipt text with a Gemini multimodal model.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/receipt-auditor/internal/ocr"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

const transcribePrompt = "You are an OCR engine for shop receipts.\n\n" +
	"Task:\n" +
	"- Transcribe ALL text printed on the attached receipt image.\n" +
	"- Keep the original line order, one printed line per output line.\n" +
	"- Keep numbers, currency symbols and dates exactly as printed.\n" +
	"- Do NOT summarize, translate or correct anything.\n\n" +
	"Return ONLY the raw transcription.\n" +
	"Do NOT wrap the response in code fences or Markdown.\n" +
	"If the image contains no text, return an empty response.\n"

// generator is the part of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Recognizer transcribes receipt images with Gemini.
type Recognizer struct {
	models generator
	model  string
}

// NewRecognizer creates a Recognizer backed by the Gemini API.
// An empty apiKey falls back to the GOOGLE_API_KEY / GEMINI_API_KEY environment.
func NewRecognizer(ctx context.Context, apiKey, model string) (*Recognizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewRecognizer: create genai client: %w", err)
	}
	return newRecognizer(client.Models, model), nil
}

func newRecognizer(models generator, model string) *Recognizer {
	if model == "" {
		model = DefaultModelName
	}
	return &Recognizer{models: models, model: model}
}

// Recognize sends the image inline and returns the model transcription.
func (r *Recognizer) Recognize(ctx context.Context, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: transcribePrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
			},
		},
	}

	resp, err := r.models.GenerateContent(ctx, r.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini.Recognize: generate content: %w", err)
	}

	return ocr.NormalizeNewlines(cleanTranscript(resp.Text())), nil
}

// cleanTranscript strips Markdown fences if the model ignored instructions.
func cleanTranscript(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the opening fence line (``` or ```text).
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return ""
		}
		s = s[idx+1:]
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

var _ ocr.Recognizer = (*Recognizer)(nil)
