package completion

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiService implements Service on top of the Gemini API. Credentials are
// picked up from the environment by the genai client; NewGeminiService fails
// when none are configured.
type GeminiService struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	callTimeout time.Duration
}

// NewGeminiService creates a Gemini-backed completion service.
func NewGeminiService(ctx context.Context, model string, maxTokens int32, temperature float32, callTimeout time.Duration) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiService{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		callTimeout: callTimeout,
	}, nil
}

// Generate implements Service.
func (s *GeminiService) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	o := Apply(opts)

	cfg := &genai.GenerateContentConfig{}
	if o.MaxTokens > 0 {
		cfg.MaxOutputTokens = o.MaxTokens
	} else if s.maxTokens > 0 {
		cfg.MaxOutputTokens = s.maxTokens
	}
	if o.Temperature != nil {
		cfg.Temperature = o.Temperature
	} else {
		temp := s.temperature
		cfg.Temperature = &temp
	}

	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", s.model)
	}
	return text, nil
}

var _ Service = (*GeminiService)(nil)
