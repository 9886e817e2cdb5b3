package langchain

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"agent-compare/internal/application/port/output"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

var _ output.CompletionPort = (*Completion)(nil)

var ErrMissingToken = errors.New("langchain: api token is required")

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Completion answers a single prompt with no tools bound and temperature 0.
type Completion struct {
	llm llms.Model
}

func NewCompletion(cfg Config) (*Completion, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingToken
	}
	opts := []lcopenai.Option{
		lcopenai.WithToken(cfg.APIKey),
	}
	if cfg.Model != "" {
		opts = append(opts, lcopenai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, lcopenai.WithHTTPClient(cfg.HTTPClient))
	}

	llm, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create completion client: %w", err)
	}
	return &Completion{llm: llm}, nil
}

func (c *Completion) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return out, nil
}
