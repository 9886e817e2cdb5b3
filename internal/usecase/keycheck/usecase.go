package keycheck

import (
	"context"
	"time"

	"agent-compare/internal/application/port/input"
	"agent-compare/internal/application/port/output"
	"agent-compare/internal/domain/entity"
)

var _ input.KeyValidator = (*UseCase)(nil)

const DefaultProbeTimeout = 10 * time.Second

// UseCase probes the provider with the caller's key. Any failure, including
// network errors, reads as an invalid key; the cause is only logged.
type UseCase struct {
	llms    output.ProviderFactory
	logger  output.LoggerPort
	timeout time.Duration
}

func New(llms output.ProviderFactory, logger output.LoggerPort, timeout time.Duration) *UseCase {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &UseCase{llms: llms, logger: logger, timeout: timeout}
}

func (uc *UseCase) Validate(ctx context.Context, cred entity.Credential) bool {
	if cred.IsEmpty() {
		return false
	}

	catalog, err := uc.llms.Catalog(cred)
	if err != nil {
		uc.logger.Debug("Key probe not started", "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	models, err := catalog.ListModels(ctx)
	if err != nil {
		uc.logger.Debug("Key probe failed", "error", err)
		return false
	}

	uc.logger.Debug("Key probe succeeded", "models", len(models))
	return true
}
