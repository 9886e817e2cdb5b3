package compare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"agent-compare/internal/application/port/input"
	"agent-compare/internal/application/port/output"
	"agent-compare/internal/domain/entity"
)

var _ input.Comparer = (*UseCase)(nil)

var ErrUnknownPath = errors.New("unknown response path")

// UseCase validates a request once and fans the query out to both response
// paths. Neither path waits on the other.
type UseCase struct {
	validator input.KeyValidator
	direct    input.Responder
	agent     input.Responder
	logger    output.LoggerPort
}

func New(validator input.KeyValidator, direct, agent input.Responder, logger output.LoggerPort) *UseCase {
	return &UseCase{
		validator: validator,
		direct:    direct,
		agent:     agent,
		logger:    logger,
	}
}

// Compare fails as a whole: the first path error cancels the other path.
func (uc *UseCase) Compare(ctx context.Context, req input.CompareRequest) (*entity.Comparison, error) {
	query, err := uc.admit(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	answers := uc.fanOut(ctx, req.Credential, query, func(a entity.Answer) {
		if a.Err != nil {
			once.Do(func() {
				firstErr = a.Err
				cancel()
			})
		}
	})
	if firstErr != nil {
		uc.logger.Error("Comparison failed", "error", firstErr)
		return nil, firstErr
	}

	return &entity.Comparison{
		Query:  query,
		Direct: answers[0],
		Agent:  answers[1],
	}, nil
}

// Stream hands each answer to onAnswer as soon as its path finishes, errors
// included. Calls to onAnswer never overlap.
func (uc *UseCase) Stream(ctx context.Context, req input.CompareRequest, onAnswer func(entity.Answer)) error {
	query, err := uc.admit(ctx, req)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	answers := uc.fanOut(ctx, req.Credential, query, func(a entity.Answer) {
		mu.Lock()
		defer mu.Unlock()
		if onAnswer != nil {
			onAnswer(a)
		}
	})
	return errors.Join(answers[0].Err, answers[1].Err)
}

func (uc *UseCase) Single(ctx context.Context, req input.CompareRequest, path entity.ResponsePath) (entity.Answer, error) {
	responder, ok := uc.responder(path)
	if !ok {
		return entity.Answer{}, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}

	query, err := uc.admit(ctx, req)
	if err != nil {
		return entity.Answer{}, err
	}

	start := time.Now()
	answer, err := responder.Respond(ctx, req.Credential, query)
	uc.logger.Info("Path finished", "path", path, "elapsed", time.Since(start), "error", err)
	return answer, err
}

// admit rejects a request before any model call: missing key, then blank
// input, then a failed key probe.
func (uc *UseCase) admit(ctx context.Context, req input.CompareRequest) (entity.Query, error) {
	if req.Credential.IsEmpty() {
		return "", entity.ErrInvalidCredential
	}
	query, err := entity.NewQuery(req.UserInput)
	if err != nil {
		return "", err
	}
	if !uc.validator.Validate(ctx, req.Credential) {
		return "", entity.ErrInvalidCredential
	}
	return query, nil
}

func (uc *UseCase) fanOut(ctx context.Context, cred entity.Credential, query entity.Query, done func(entity.Answer)) [2]entity.Answer {
	paths := [2]entity.ResponsePath{entity.PathDirect, entity.PathAgent}
	var answers [2]entity.Answer

	var wg sync.WaitGroup
	for i, path := range paths {
		responder, _ := uc.responder(path)
		wg.Add(1)
		go func(i int, path entity.ResponsePath, r input.Responder) {
			defer wg.Done()
			start := time.Now()
			answer, err := r.Respond(ctx, cred, query)
			answer.Path = path
			answer.Query = query
			if err != nil && answer.Err == nil {
				answer.Err = err
			}
			uc.logger.Info("Path finished", "path", path, "elapsed", time.Since(start), "error", answer.Err)
			answers[i] = answer
			done(answer)
		}(i, path, responder)
	}
	wg.Wait()
	return answers
}

func (uc *UseCase) responder(path entity.ResponsePath) (input.Responder, bool) {
	switch path {
	case entity.PathDirect:
		return uc.direct, true
	case entity.PathAgent:
		return uc.agent, true
	default:
		return nil, false
	}
}
