package input

import (
	"context"

	"agent-compare/internal/domain/entity"
)

type CompareRequest struct {
	Credential entity.Credential
	UserInput  string
}

type Comparer interface {
	Compare(ctx context.Context, req CompareRequest) (*entity.Comparison, error)
	// Stream delivers each path's answer as soon as it is ready.
	Stream(ctx context.Context, req CompareRequest, onAnswer func(entity.Answer)) error
	// Single runs one path after the same validation Compare performs.
	Single(ctx context.Context, req CompareRequest, path entity.ResponsePath) (entity.Answer, error)
}
