package brainsim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured
const DefaultModel = "gemini-2.0-flash"

var (
	// ErrNoAPIKey is returned when a model-backed responder has no key
	ErrNoAPIKey = errors.New("brainsim: no API key")
	// ErrEmptyReply is returned when the model answers with no text
	ErrEmptyReply = errors.New("brainsim: empty reply")
)

// Responder produces the reply text for a line of user input
type Responder interface {
	Respond(ctx context.Context, text string) (string, error)
}

// ResponderFunc adapts a function to Responder
type ResponderFunc func(ctx context.Context, text string) (string, error)

// Respond implements Responder
func (f ResponderFunc) Respond(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Echo replies with the input unchanged
var Echo Responder = ResponderFunc(func(_ context.Context, text string) (string, error) {
	return text, nil
})

// GeminiResponder answers through the Gemini API
type GeminiResponder struct {
	client *genai.Client
	model  string
}

// NewGeminiResponder creates a responder for model. An empty model uses
// DefaultModel.
func NewGeminiResponder(ctx context.Context, apiKey, model string) (*GeminiResponder, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("brainsim: create gemini client: %w", err)
	}
	return &GeminiResponder{client: client, model: model}, nil
}

// Model returns the model name replies come from
func (g *GeminiResponder) Model() string {
	return g.model
}

// Respond implements Responder
func (g *GeminiResponder) Respond(ctx context.Context, text string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(text), nil)
	if err != nil {
		return "", fmt.Errorf("brainsim: generate reply: %w", err)
	}
	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}
