package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"agent-compare/internal/application/port/output"
	"agent-compare/internal/application/service"
	"agent-compare/internal/domain/entity"
	"agent-compare/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFunc func(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error)

// scriptedLLM replays one function per call; the last one repeats.
type scriptedLLM struct {
	mu       sync.Mutex
	script   []chatFunc
	requests []output.ChatRequest
}

func (s *scriptedLLM) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, req)
	fn := s.script[len(s.script)-1]
	if n < len(s.script) {
		fn = s.script[n]
	}
	s.mu.Unlock()
	return fn(ctx, req)
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedLLM) request(i int) output.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func answer(text string) chatFunc {
	return func(context.Context, output.ChatRequest) (*output.ChatResponse, error) {
		return &output.ChatResponse{Message: entity.Message{Role: entity.RoleAssistant, Content: text}}, nil
	}
}

func propose(calls ...entity.ToolCall) chatFunc {
	return func(context.Context, output.ChatRequest) (*output.ChatResponse, error) {
		return &output.ChatResponse{Message: entity.Message{Role: entity.RoleAssistant, ToolCalls: calls}}, nil
	}
}

func searchCall(id, args string) entity.ToolCall {
	return entity.ToolCall{ID: id, Name: "web_search", Arguments: args}
}

type fakeTool struct {
	name entity.ToolName
	fn   func(ctx context.Context, args string) (string, error)

	mu   sync.Mutex
	args []string
}

func (f *fakeTool) Name() entity.ToolName { return f.name }
func (f *fakeTool) Description() string   { return "fake " + f.name.String() }
func (f *fakeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}

func (f *fakeTool) Execute(ctx context.Context, args string) (string, error) {
	f.mu.Lock()
	f.args = append(f.args, args)
	f.mu.Unlock()
	return f.fn(ctx, args)
}

func (f *fakeTool) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.args...)
}

func echoTool() *fakeTool {
	return &fakeTool{name: entity.ToolWebSearch, fn: func(_ context.Context, args string) (string, error) {
		return "results for " + args, nil
	}}
}

type staticInstructions string

func (s staticInstructions) SystemInstruction() (string, error) { return string(s), nil }

type fakeFactory struct {
	llm output.LLMPort
	err error
}

func (f *fakeFactory) Chat(entity.Credential) (output.LLMPort, error) { return f.llm, f.err }
func (f *fakeFactory) Completion(entity.Credential) (output.CompletionPort, error) {
	return nil, errors.New("not used")
}
func (f *fakeFactory) Catalog(entity.Credential) (output.ModelCatalogPort, error) {
	return nil, errors.New("not used")
}

func newUseCase(llm output.LLMPort, cfg Config, tools ...output.ToolPort) *UseCase {
	registry := service.NewToolRegistry()
	for _, t := range tools {
		registry.Register(t)
	}
	return New(&fakeFactory{llm: llm}, registry, staticInstructions("You are a search assistant. Today is 2024-01-01."), logger.NewNop(), cfg)
}

func TestExecute_AnswersWithoutTools(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{answer("Paris is the capital of France.")}}
	tool := echoTool()
	uc := newUseCase(llm, Config{MaxIterations: 5}, tool)

	res, err := uc.Execute(context.Background(), llm, "capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital of France.", res.FinalAnswer)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, entity.StopFinalAnswer, res.StopReason)
	assert.Empty(t, res.Trace.ToolSteps())
	assert.Empty(t, tool.received())

	req := llm.request(0)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, entity.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "capital of France?", req.Messages[1].Content)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "web_search", req.Tools[0].Name)
	assert.Zero(t, req.Temperature)
}

func TestExecute_SingleToolCallThenAnswer(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{
		propose(searchCall("call_1", `{"query":"seoul weather today"}`)),
		answer("It is sunny in Seoul."),
	}}
	tool := echoTool()
	uc := newUseCase(llm, Config{MaxIterations: 5}, tool)

	res, err := uc.Execute(context.Background(), llm, "weather in Seoul?")
	require.NoError(t, err)

	assert.Equal(t, "It is sunny in Seoul.", res.FinalAnswer)
	assert.Equal(t, 2, res.Iterations)

	steps := res.Trace.ToolSteps()
	require.Len(t, steps, 1)
	assert.Equal(t, `{"query":"seoul weather today"}`, steps[0].ToolCall.Arguments)
	assert.Equal(t, `results for {"query":"seoul weather today"}`, steps[0].Observation)
	assert.False(t, steps[0].Failed)
	assert.Equal(t, []string{`{"query":"seoul weather today"}`}, tool.received())

	second := llm.request(1).Messages
	require.Len(t, second, 4)
	assert.Equal(t, entity.RoleAssistant, second[2].Role)
	require.Len(t, second[2].ToolCalls, 1)
	assert.Equal(t, "call_1", second[2].ToolCalls[0].ID)
	assert.Equal(t, entity.RoleTool, second[3].Role)
	assert.Equal(t, "call_1", second[3].ToolCallID)
	assert.Equal(t, steps[0].Observation, second[3].Content)
}

func TestExecute_TerminatesAtIterationBound(t *testing.T) {
	const bound = 3
	script := make([]chatFunc, 0, bound+1)
	for i := 0; i <= bound; i++ {
		script = append(script, propose(searchCall(fmt.Sprintf("call_%d", i), `{"query":"again"}`)))
	}
	llm := &scriptedLLM{script: script}
	uc := newUseCase(llm, Config{MaxIterations: bound}, echoTool())

	res, err := uc.Execute(context.Background(), llm, "loop forever")
	require.NoError(t, err)

	assert.Equal(t, bound, llm.calls())
	assert.Equal(t, IterationLimitAnswer, res.FinalAnswer)
	assert.Equal(t, entity.StopIterationLimit, res.StopReason)
	assert.Equal(t, bound, res.Iterations)
	assert.Len(t, res.Trace.ToolSteps(), bound)
}

func TestExecute_RecoversFromEmptyReply(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{answer("   "), answer("Recovered.")}}
	uc := newUseCase(llm, Config{MaxIterations: 5}, echoTool())

	res, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)

	assert.Equal(t, "Recovered.", res.FinalAnswer)
	steps := res.Trace.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, entity.StepParseError, steps[0].Kind)
	assert.Nil(t, steps[0].ToolCall)
	assert.Equal(t, entity.StepFinalAnswer, steps[1].Kind)

	second := llm.request(1).Messages
	last := second[len(second)-1]
	assert.Equal(t, entity.RoleUser, last.Role)
	assert.Equal(t, emptyReplyCorrection, last.Content)
}

func TestExecute_UnknownToolIsParseError(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{
		propose(entity.ToolCall{ID: "call_x", Name: "browse", Arguments: `{"url":"https://example.com"}`}),
		answer("Done."),
	}}
	tool := echoTool()
	uc := newUseCase(llm, Config{MaxIterations: 5}, tool)

	res, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)

	steps := res.Trace.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, entity.StepParseError, steps[0].Kind)
	assert.Contains(t, steps[0].Observation, "unknown tool 'browse'")
	assert.Contains(t, steps[0].Observation, "web_search")
	assert.Empty(t, tool.received())

	second := llm.request(1).Messages
	require.Len(t, second, 4)
	assert.Equal(t, "call_x", second[3].ToolCallID)
	assert.Equal(t, steps[0].Observation, second[3].Content)
	assert.Equal(t, "{}", second[2].ToolCalls[0].Arguments)
}

func TestExecute_RepairsMalformedArguments(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{
		propose(searchCall("call_1", `{'query': 'go release',}`)),
		answer("ok"),
	}}
	tool := echoTool()
	uc := newUseCase(llm, Config{MaxIterations: 5}, tool)

	res, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)

	assert.Equal(t, []string{`{"query":"go release"}`}, tool.received())
	require.Len(t, res.Trace.ToolSteps(), 1)
}

func TestExecute_NonObjectArgumentsAreRejected(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{
		propose(searchCall("call_1", `[1, 2]`)),
		answer("ok"),
	}}
	tool := echoTool()
	uc := newUseCase(llm, Config{MaxIterations: 5}, tool)

	res, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)

	assert.Empty(t, tool.received())
	steps := res.Trace.Steps()
	assert.Equal(t, entity.StepParseError, steps[0].Kind)
	assert.Equal(t, `[1, 2]`, steps[0].Raw)
}

func TestExecute_ToolErrorBecomesObservation(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{
		propose(searchCall("call_1", `{"query":"q"}`)),
		answer("Search is down, answering from memory."),
	}}
	tool := &fakeTool{name: entity.ToolWebSearch, fn: func(context.Context, string) (string, error) {
		return "", errors.New("duckduckgo http 503")
	}}
	uc := newUseCase(llm, Config{MaxIterations: 5}, tool)

	res, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)

	steps := res.Trace.ToolSteps()
	require.Len(t, steps, 1)
	assert.True(t, steps[0].Failed)
	assert.Equal(t, "Error: duckduckgo http 503", steps[0].Observation)
}

func TestExecute_TruncatesLongObservations(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{propose(searchCall("c", `{}`)), answer("ok")}}
	tool := &fakeTool{name: entity.ToolWebSearch, fn: func(context.Context, string) (string, error) {
		return strings.Repeat("x", maxObservationLen+500), nil
	}}
	uc := newUseCase(llm, Config{MaxIterations: 5}, tool)

	res, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)

	obs := res.Trace.ToolSteps()[0].Observation
	assert.True(t, strings.HasSuffix(obs, "... (truncated)"))
	assert.Less(t, len(obs), maxObservationLen+100)
}

func TestExecute_TruncationKeepsRunesWhole(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{propose(searchCall("c", `{}`)), answer("ok")}}
	tool := &fakeTool{name: entity.ToolWebSearch, fn: func(context.Context, string) (string, error) {
		return "a" + strings.Repeat("한", maxObservationLen), nil
	}}
	uc := newUseCase(llm, Config{MaxIterations: 5}, tool)

	res, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)

	obs := res.Trace.ToolSteps()[0].Observation
	assert.True(t, utf8.ValidString(obs))
	assert.True(t, strings.HasSuffix(obs, "한\n... (truncated)"))
	assert.LessOrEqual(t, len(strings.TrimSuffix(obs, "\n... (truncated)")), maxObservationLen)
}

func TestExecute_ReplaysTextSentWithToolCalls(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{
		func(context.Context, output.ChatRequest) (*output.ChatResponse, error) {
			return &output.ChatResponse{Message: entity.Message{
				Role:      entity.RoleAssistant,
				Content:   "I will look this up.",
				ToolCalls: []entity.ToolCall{searchCall("call_1", `{"query":"x"}`)},
			}}, nil
		},
		answer("done"),
	}}
	uc := newUseCase(llm, Config{MaxIterations: 5}, echoTool())

	res, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)
	assert.Equal(t, "I will look this up.", res.Trace.ToolSteps()[0].Thought)

	second := llm.request(1).Messages
	require.Len(t, second, 4)
	assert.Equal(t, entity.RoleAssistant, second[2].Role)
	assert.Equal(t, "I will look this up.", second[2].Content)
	require.Len(t, second[2].ToolCalls, 1)
}

func TestExecute_CallsOfOneTurnRunConcurrentlyInProposalOrder(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	bothStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(bothStarted)
	}()

	tool := &fakeTool{name: entity.ToolWebSearch, fn: func(_ context.Context, args string) (string, error) {
		started.Done()
		select {
		case <-bothStarted:
		case <-time.After(2 * time.Second):
			return "", errors.New("calls were serialized")
		}
		if strings.Contains(args, "slow") {
			time.Sleep(30 * time.Millisecond)
		}
		return args, nil
	}}
	llm := &scriptedLLM{script: []chatFunc{
		propose(searchCall("a", `{"query":"slow"}`), searchCall("b", `{"query":"fast"}`)),
		answer("ok"),
	}}
	uc := newUseCase(llm, Config{MaxIterations: 5}, tool)

	res, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)

	steps := res.Trace.ToolSteps()
	require.Len(t, steps, 2)
	assert.Equal(t, "a", steps[0].ToolCall.ID)
	assert.Equal(t, "b", steps[1].ToolCall.ID)
	assert.False(t, steps[0].Failed)
	assert.False(t, steps[1].Failed)

	second := llm.request(1).Messages
	require.Len(t, second, 5)
	require.Len(t, second[2].ToolCalls, 2)
	assert.Equal(t, "a", second[3].ToolCallID)
	assert.Equal(t, "b", second[4].ToolCallID)
}

func TestExecute_ModelTimeoutIsRecordedAndLoopContinues(t *testing.T) {
	blockUntilDeadline := func(ctx context.Context, _ output.ChatRequest) (*output.ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	llm := &scriptedLLM{script: []chatFunc{blockUntilDeadline, answer("late but fine")}}
	uc := newUseCase(llm, Config{MaxIterations: 5, ModelTimeout: 20 * time.Millisecond}, echoTool())

	res, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)

	assert.Equal(t, "late but fine", res.FinalAnswer)
	steps := res.Trace.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, entity.StepTimeout, steps[0].Kind)
	assert.True(t, steps[0].Failed)
}

func TestExecute_ToolTimeoutBecomesFailedStep(t *testing.T) {
	tool := &fakeTool{name: entity.ToolWebSearch, fn: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	llm := &scriptedLLM{script: []chatFunc{propose(searchCall("c", `{"query":"q"}`)), answer("ok")}}
	uc := newUseCase(llm, Config{MaxIterations: 5, ToolTimeout: 20 * time.Millisecond}, tool)

	res, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)

	step := res.Trace.ToolSteps()[0]
	assert.True(t, step.Failed)
	assert.Contains(t, step.Observation, "timed out")
}

func TestExecute_ParentCancellationStopsTheLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &scriptedLLM{script: []chatFunc{func(ctx context.Context, _ output.ChatRequest) (*output.ChatResponse, error) {
		cancel()
		return nil, ctx.Err()
	}}}
	uc := newUseCase(llm, Config{MaxIterations: 5, ModelTimeout: time.Second}, echoTool())

	_, err := uc.Execute(ctx, llm, "q")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, llm.calls())
}

func TestExecute_ParentCancellationAbandonsToolCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	tool := &fakeTool{name: entity.ToolWebSearch, fn: func(context.Context, string) (string, error) {
		cancel()
		<-release
		return "too late", nil
	}}
	llm := &scriptedLLM{script: []chatFunc{propose(searchCall("c", `{"query":"q"}`))}}
	uc := newUseCase(llm, Config{MaxIterations: 5}, tool)

	_, err := uc.Execute(ctx, llm, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_ProviderErrorIsTagged(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{func(context.Context, output.ChatRequest) (*output.ChatResponse, error) {
		return nil, errors.New("status 500")
	}}}
	uc := newUseCase(llm, Config{MaxIterations: 5}, echoTool())

	_, err := uc.Execute(context.Background(), llm, "q")

	var pe *entity.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, entity.PathAgent, pe.Path)
}

func TestExecute_EachRunStartsWithAFreshTrace(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{
		propose(searchCall("c", `{"query":"q"}`)),
		answer("first"),
		answer("second"),
	}}
	uc := newUseCase(llm, Config{MaxIterations: 5}, echoTool())

	_, err := uc.Execute(context.Background(), llm, "one")
	require.NoError(t, err)
	res, err := uc.Execute(context.Background(), llm, "two")
	require.NoError(t, err)

	assert.Equal(t, "second", res.FinalAnswer)
	assert.Len(t, llm.request(2).Messages, 2)
	assert.Equal(t, 1, res.Trace.Len())
}

func TestRespond_WrapsResultAsAgentAnswer(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{answer("42")}}
	uc := newUseCase(llm, Config{MaxIterations: 5}, echoTool())

	got, err := uc.Respond(context.Background(), "sk-test", "meaning of life")
	require.NoError(t, err)

	assert.Equal(t, entity.PathAgent, got.Path)
	assert.Equal(t, entity.Query("meaning of life"), got.Query)
	assert.Equal(t, "42", got.Text)
	assert.Equal(t, entity.StopFinalAnswer, got.StopReason)
}

func TestRespond_FactoryErrorIsReturned(t *testing.T) {
	uc := New(&fakeFactory{err: entity.ErrInvalidCredential}, service.NewToolRegistry(), staticInstructions("s"), logger.NewNop(), Config{})

	got, err := uc.Respond(context.Background(), "", "q")

	assert.ErrorIs(t, err, entity.ErrInvalidCredential)
	assert.ErrorIs(t, got.Err, entity.ErrInvalidCredential)
}

type recordingObserver struct {
	mu         sync.Mutex
	iterations []int
	started    []string
	results    []string
}

func (r *recordingObserver) ShowIteration(_ context.Context, iteration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.iterations = append(r.iterations, iteration)
}

func (r *recordingObserver) ShowToolStart(_ context.Context, name, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, name)
}

func (r *recordingObserver) ShowToolResult(_ context.Context, name, _ string, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, name)
}

func TestExecute_NotifiesObserver(t *testing.T) {
	llm := &scriptedLLM{script: []chatFunc{propose(searchCall("c", `{"query":"q"}`)), answer("ok")}}
	registry := service.NewToolRegistry()
	registry.Register(echoTool())
	obs := &recordingObserver{}
	uc := New(&fakeFactory{llm: llm}, registry, staticInstructions("s"), logger.NewNop(), Config{MaxIterations: 5}, WithObserver(obs))

	_, err := uc.Execute(context.Background(), llm, "q")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, obs.iterations)
	assert.Equal(t, []string{"web_search"}, obs.started)
	assert.Equal(t, []string{"web_search"}, obs.results)
}

func TestNew_DefaultIterationBound(t *testing.T) {
	uc := New(&fakeFactory{}, service.NewToolRegistry(), staticInstructions("s"), logger.NewNop(), Config{})
	assert.Equal(t, DefaultMaxIterations, uc.cfg.MaxIterations)
}
