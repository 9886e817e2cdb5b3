package llm

import (
	"net/http"

	"agent-compare/internal/application/port/output"
	"agent-compare/internal/domain/entity"
	"agent-compare/internal/infrastructure/llm/langchain"
	"agent-compare/internal/infrastructure/llm/openai"
)

var _ output.ProviderFactory = (*Factory)(nil)

type Config struct {
	Model   string
	BaseURL string
	// Debug logs provider traffic through Logger.
	Debug  bool
	Logger output.LoggerPort
	// HTTPClient is shared by every client the factory builds.
	HTTPClient *http.Client
}

// Factory builds provider clients bound to one request's credential. Nothing
// key-specific is kept on the factory itself.
type Factory struct {
	cfg Config
}

func NewFactory(cfg Config) *Factory {
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	return &Factory{cfg: cfg}
}

func (f *Factory) Chat(cred entity.Credential) (output.LLMPort, error) {
	return f.chatAdapter(cred)
}

func (f *Factory) Catalog(cred entity.Credential) (output.ModelCatalogPort, error) {
	return f.chatAdapter(cred)
}

func (f *Factory) Completion(cred entity.Credential) (output.CompletionPort, error) {
	if cred.IsEmpty() {
		return nil, entity.ErrInvalidCredential
	}
	return langchain.NewCompletion(langchain.Config{
		APIKey:     cred.Value(),
		Model:      f.cfg.Model,
		BaseURL:    f.cfg.BaseURL,
		HTTPClient: f.cfg.HTTPClient,
	})
}

func (f *Factory) chatAdapter(cred entity.Credential) (*openai.Adapter, error) {
	if cred.IsEmpty() {
		return nil, entity.ErrInvalidCredential
	}
	cfg := openai.DefaultConfig(cred.Value(), f.cfg.Model)
	if f.cfg.BaseURL != "" {
		cfg.BaseURL = f.cfg.BaseURL
	}
	cfg.HTTPClient = f.cfg.HTTPClient
	if f.cfg.Debug && f.cfg.Logger != nil {
		cfg.Logger = f.cfg.Logger.Named("openai")
	}
	return openai.NewAdapter(cfg), nil
}
