package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"agent-compare/internal/application/port/input"
	"agent-compare/internal/application/port/output"
	"agent-compare/internal/domain/entity"
)

var _ input.Responder = (*UseCase)(nil)

const (
	DefaultMaxIterations = 10
	maxObservationLen    = 20000

	IterationLimitAnswer = "Agent stopped due to iteration limit."
)

// InstructionSource renders the dated system instruction for one run.
type InstructionSource interface {
	SystemInstruction() (string, error)
}

type Config struct {
	MaxIterations int
	// ModelTimeout bounds each model call. A call that runs out of time is
	// recorded as a timeout step and the loop moves on to the next turn.
	ModelTimeout time.Duration
	// ToolTimeout bounds each tool call separately.
	ToolTimeout time.Duration
}

type Result struct {
	FinalAnswer string
	Iterations  int
	StopReason  entity.StopReason
	Trace       *entity.AgentTrace
}

type UseCase struct {
	llms         output.ProviderFactory
	tools        output.ToolRegistry
	instructions InstructionSource
	logger       output.LoggerPort
	observer     output.AgentObserver
	cfg          Config
}

type Option func(*UseCase)

func WithObserver(o output.AgentObserver) Option {
	return func(uc *UseCase) { uc.observer = o }
}

func New(
	llms output.ProviderFactory,
	tools output.ToolRegistry,
	instructions InstructionSource,
	logger output.LoggerPort,
	cfg Config,
	opts ...Option,
) *UseCase {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	uc := &UseCase{
		llms:         llms,
		tools:        tools,
		instructions: instructions,
		logger:       logger,
		cfg:          cfg,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *UseCase) Respond(ctx context.Context, cred entity.Credential, query entity.Query) (entity.Answer, error) {
	answer := entity.Answer{Path: entity.PathAgent, Query: query}

	llm, err := uc.llms.Chat(cred)
	if err != nil {
		answer.Err = err
		return answer, err
	}

	res, err := uc.Execute(ctx, llm, query)
	if err != nil {
		answer.Err = err
		return answer, err
	}

	answer.Text = res.FinalAnswer
	answer.Iterations = res.Iterations
	answer.StopReason = res.StopReason
	return answer, nil
}

// Execute runs one independent agent loop. The trace it builds is the only
// memory between turns and is never shared with another call.
func (uc *UseCase) Execute(ctx context.Context, llm output.LLMPort, query entity.Query) (*Result, error) {
	system, err := uc.instructions.SystemInstruction()
	if err != nil {
		return nil, fmt.Errorf("build system instruction: %w", err)
	}

	trace := entity.NewAgentTrace()
	toolDefs := uc.tools.Definitions()

	for iteration := 1; iteration <= uc.cfg.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("agent cancelled: %w", err)
		}
		uc.logger.Debug("Starting iteration", "iteration", iteration)
		if uc.observer != nil {
			uc.observer.ShowIteration(ctx, iteration, uc.cfg.MaxIterations)
		}

		msg, err := uc.callModel(ctx, llm, buildMessages(system, query, trace), toolDefs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("agent cancelled: %w", ctx.Err())
			}
			if errors.Is(err, context.DeadlineExceeded) {
				uc.logger.Warn("Model call timed out", "iteration", iteration, "timeout", uc.cfg.ModelTimeout)
				trace.Append(entity.NewTimeoutStep(iteration, fmt.Sprintf("model call exceeded %s", uc.cfg.ModelTimeout)))
				continue
			}
			return nil, entity.NewProviderError(entity.PathAgent, fmt.Errorf("llm request failed: %w", err))
		}

		switch d := decide(iteration, msg).(type) {
		case entity.FinalAnswer:
			trace.Append(entity.NewFinalStep(iteration, d.Text))
			return &Result{
				FinalAnswer: d.Text,
				Iterations:  iteration,
				StopReason:  entity.StopFinalAnswer,
				Trace:       trace,
			}, nil

		case entity.ParseFailure:
			uc.logger.Warn("Unusable model reply", "iteration", iteration, "reason", d.Reason)
			trace.Append(entity.NewParseErrorStep(iteration, nil, d.Raw, emptyReplyCorrection))

		case entity.ToolCallProposal:
			steps, err := uc.runTools(ctx, iteration, d.Calls)
			if err != nil {
				return nil, fmt.Errorf("agent cancelled: %w", err)
			}
			for i := range steps {
				steps[i].Thought = d.Content
			}
			trace.Append(steps...)
		}
	}

	uc.logger.Warn("Iteration limit reached", "maxIterations", uc.cfg.MaxIterations, "steps", trace.Len())
	return &Result{
		FinalAnswer: IterationLimitAnswer,
		Iterations:  uc.cfg.MaxIterations,
		StopReason:  entity.StopIterationLimit,
		Trace:       trace,
	}, nil
}

func (uc *UseCase) callModel(ctx context.Context, llm output.LLMPort, messages []entity.Message, tools []entity.ToolDefinition) (entity.Message, error) {
	callCtx := ctx
	if uc.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, uc.cfg.ModelTimeout)
		defer cancel()
	}

	resp, err := llm.Chat(callCtx, output.ChatRequest{
		Messages:    messages,
		Tools:       tools,
		Temperature: 0.0,
	})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return entity.Message{}, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return entity.Message{}, err
	}
	return resp.Message, nil
}

// runTools executes one proposal's calls concurrently and returns their steps
// in proposal order. If ctx ends first the in-flight calls are abandoned.
func (uc *UseCase) runTools(ctx context.Context, turn int, calls []entity.ToolCall) ([]entity.ReasoningStep, error) {
	steps := make([]entity.ReasoningStep, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call entity.ToolCall) {
			defer wg.Done()
			steps[i] = uc.executeTool(ctx, turn, call)
		}(i, call)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return steps, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (uc *UseCase) executeTool(ctx context.Context, turn int, call entity.ToolCall) entity.ReasoningStep {
	tool, ok := uc.tools.Get(entity.ToolName(call.Name))
	if !ok {
		uc.logger.Warn("Unknown tool called", "name", call.Name)
		return parseErrorStep(turn, call, fmt.Sprintf("Error: unknown tool '%s'. Available tools: %s.", call.Name, uc.toolNames()))
	}

	args, err := normalizeArguments(call.Arguments)
	if err != nil {
		uc.logger.Warn("Unparseable tool arguments", "name", call.Name, "error", err)
		return parseErrorStep(turn, call, fmt.Sprintf("Error: could not parse arguments for '%s': %v. Call the tool again with a single JSON object.", call.Name, err))
	}
	call.Arguments = args

	uc.logger.Info("Executing tool", "name", call.Name, "args", args)
	if uc.observer != nil {
		uc.observer.ShowToolStart(ctx, call.Name, args)
	}

	toolCtx := ctx
	if uc.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, uc.cfg.ToolTimeout)
		defer cancel()
	}

	observation, err := tool.Execute(toolCtx, args)
	failed := err != nil
	switch {
	case err == nil:
	case toolCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		uc.logger.Warn("Tool timed out", "name", call.Name, "timeout", uc.cfg.ToolTimeout)
		observation = fmt.Sprintf("Error: tool call timed out after %s", uc.cfg.ToolTimeout)
	default:
		uc.logger.Error("Tool execution failed", "name", call.Name, "error", err)
		observation = "Error: " + err.Error()
	}

	observation = truncateObservation(observation)

	if uc.observer != nil {
		uc.observer.ShowToolResult(ctx, call.Name, observation, failed)
	}
	uc.logger.Debug("Tool completed", "name", call.Name, "resultLen", len(observation), "failed", failed)
	return entity.NewToolStep(turn, call, observation, failed)
}

// parseErrorStep keeps the offending call so the correction can be sent back
// as its result; the arguments are replaced so the replayed call stays valid JSON.
func parseErrorStep(turn int, call entity.ToolCall, correction string) entity.ReasoningStep {
	raw := call.Arguments
	call.Arguments = "{}"
	return entity.NewParseErrorStep(turn, &call, raw, correction)
}

func (uc *UseCase) toolNames() string {
	tools := uc.tools.All()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name().String())
	}
	return strings.Join(names, ", ")
}

// truncateObservation caps s at maxObservationLen bytes without splitting a rune.
func truncateObservation(s string) string {
	if len(s) <= maxObservationLen {
		return s
	}
	cut := maxObservationLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
