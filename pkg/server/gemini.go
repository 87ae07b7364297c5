package server

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiAnswerer asks a Gemini model. Any failure of the API call or an empty
// reply is reported as an UpstreamError.
type GeminiAnswerer struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiAnswerer(ctx context.Context, apiKey string, modelName string) (*GeminiAnswerer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.3)
	model.SystemInstruction = genai.NewUserContent(genai.Text(
		"Answer the user's question concisely. If you do not know, say so.",
	))
	return &GeminiAnswerer{client: client, model: model}, nil
}

func (g *GeminiAnswerer) Answer(ctx context.Context, question string) (Answer, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(question))
	if err != nil {
		return Answer{}, &UpstreamError{Provider: "gemini", Err: err}
	}
	text := extractText(resp)
	if text == "" {
		return Answer{}, &UpstreamError{Provider: "gemini", Err: errors.New("empty response")}
	}
	return Answer{Text: text}, nil
}

func (g *GeminiAnswerer) Close() error {
	return g.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
		break
	}
	return strings.TrimSpace(text.String())
}
