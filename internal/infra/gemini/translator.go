package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Translator implements app.Translator on top of the Gemini API.
type Translator struct {
	model *genai.GenerativeModel
}

func New(ctx context.Context, apiKey string) (*Translator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	model := client.GenerativeModel("gemini-1.5-flash")
	return &Translator{model: model}, nil
}

// Translate returns text rendered in targetLanguage. The prompt pins the
// output to the bare translation so option texts stay poll-sized.
func (t *Translator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following quiz text to %s. Reply with only the translation, no explanations:\n\n%s",
		targetLanguage, text)

	resp, err := t.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("translate to %s: %w", targetLanguage, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("translate to %s: empty response", targetLanguage)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("translate to %s: no text in response", targetLanguage)
	}
	return out, nil
}
