package output

import (
	"context"

	"agent-compare/internal/domain/entity"
)

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Messages    []entity.Message
	Tools       []entity.ToolDefinition
	Temperature float32
}

type ChatResponse struct {
	Message entity.Message
}

// CompletionPort is a single-prompt completion with no tools bound.
type CompletionPort interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ModelCatalogPort lists the models visible to a credential. It doubles as the
// cheapest authenticated probe the provider offers.
type ModelCatalogPort interface {
	ListModels(ctx context.Context) ([]string, error)
}

// ProviderFactory builds provider clients scoped to one credential. Clients are
// never cached across credentials.
type ProviderFactory interface {
	Chat(cred entity.Credential) (LLMPort, error)
	Completion(cred entity.Credential) (CompletionPort, error)
	Catalog(cred entity.Credential) (ModelCatalogPort, error)
}
