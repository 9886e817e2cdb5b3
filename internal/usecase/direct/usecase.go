package direct

import (
	"context"
	"fmt"
	"time"

	"agent-compare/internal/application/port/input"
	"agent-compare/internal/application/port/output"
	"agent-compare/internal/domain/entity"
)

var _ input.Responder = (*UseCase)(nil)

// PromptSource renders the dated prompt sent on the direct path.
type PromptSource interface {
	DirectPrompt(query entity.Query) (string, error)
}

// UseCase answers with one plain completion: no tools, no retry.
type UseCase struct {
	llms    output.ProviderFactory
	prompts PromptSource
	logger  output.LoggerPort
	timeout time.Duration
}

func New(llms output.ProviderFactory, prompts PromptSource, logger output.LoggerPort, timeout time.Duration) *UseCase {
	return &UseCase{llms: llms, prompts: prompts, logger: logger, timeout: timeout}
}

func (uc *UseCase) Respond(ctx context.Context, cred entity.Credential, query entity.Query) (entity.Answer, error) {
	answer := entity.Answer{Path: entity.PathDirect, Query: query}

	completion, err := uc.llms.Completion(cred)
	if err != nil {
		answer.Err = err
		return answer, err
	}

	prompt, err := uc.prompts.DirectPrompt(query)
	if err != nil {
		answer.Err = fmt.Errorf("build direct prompt: %w", err)
		return answer, answer.Err
	}

	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := completion.Complete(ctx, prompt)
	if err != nil {
		uc.logger.Error("Direct completion failed", "error", err)
		answer.Err = entity.NewProviderError(entity.PathDirect, err)
		return answer, answer.Err
	}

	uc.logger.Debug("Direct completion done", "elapsed", time.Since(start), "answerLen", len(text))
	answer.Text = text
	answer.Iterations = 1
	answer.StopReason = entity.StopFinalAnswer
	return answer, nil
}
