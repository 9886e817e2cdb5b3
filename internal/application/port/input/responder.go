package input

import (
	"context"

	"agent-compare/internal/domain/entity"
)

// Responder produces one path's answer for a query using a request-scoped credential.
type Responder interface {
	Respond(ctx context.Context, cred entity.Credential, query entity.Query) (entity.Answer, error)
}

type KeyValidator interface {
	Validate(ctx context.Context, cred entity.Credential) bool
}
