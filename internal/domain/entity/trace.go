package entity

type StepKind string

const (
	StepToolCall    StepKind = "tool_call"
	StepFinalAnswer StepKind = "final_answer"
	StepParseError  StepKind = "parse_error"
	StepTimeout     StepKind = "timeout"
)

// ReasoningStep is one recorded cycle of the agent loop. Build it with the
// constructors below so a step never carries both a tool call and an answer.
type ReasoningStep struct {
	Turn        int
	Kind        StepKind
	ToolCall    *ToolCall
	Observation string
	Failed      bool
	Answer      string
	Raw         string
	// Thought is the text the model sent alongside the tool calls of this turn.
	Thought string
}

func NewToolStep(turn int, call ToolCall, observation string, failed bool) ReasoningStep {
	c := call
	return ReasoningStep{
		Turn:        turn,
		Kind:        StepToolCall,
		ToolCall:    &c,
		Observation: observation,
		Failed:      failed,
	}
}

func NewFinalStep(turn int, answer string) ReasoningStep {
	return ReasoningStep{Turn: turn, Kind: StepFinalAnswer, Answer: answer}
}

// NewParseErrorStep records model output that was neither a usable tool call nor
// an answer. When call is non-nil the correction is sent back as that call's result.
func NewParseErrorStep(turn int, call *ToolCall, raw, correction string) ReasoningStep {
	step := ReasoningStep{
		Turn:        turn,
		Kind:        StepParseError,
		Observation: correction,
		Failed:      true,
		Raw:         raw,
	}
	if call != nil {
		c := *call
		step.ToolCall = &c
	}
	return step
}

func NewTimeoutStep(turn int, reason string) ReasoningStep {
	return ReasoningStep{Turn: turn, Kind: StepTimeout, Observation: reason, Failed: true}
}

// AgentTrace is the append-only record of one agent invocation.
type AgentTrace struct {
	steps []ReasoningStep
}

func NewAgentTrace() *AgentTrace {
	return &AgentTrace{}
}

func (t *AgentTrace) Append(steps ...ReasoningStep) {
	t.steps = append(t.steps, steps...)
}

func (t *AgentTrace) Len() int {
	return len(t.steps)
}

// Steps returns a copy; callers cannot rewrite history.
func (t *AgentTrace) Steps() []ReasoningStep {
	out := make([]ReasoningStep, len(t.steps))
	copy(out, t.steps)
	return out
}

func (t *AgentTrace) ToolSteps() []ReasoningStep {
	var out []ReasoningStep
	for _, s := range t.steps {
		if s.Kind == StepToolCall {
			out = append(out, s)
		}
	}
	return out
}

// Decision is the parsed shape of one model reply.
type Decision interface {
	isDecision()
}

type ToolCallProposal struct {
	Content string
	Calls   []ToolCall
}

type FinalAnswer struct {
	Text string
}

type ParseFailure struct {
	Reason string
	Raw    string
}

func (ToolCallProposal) isDecision() {}
func (FinalAnswer) isDecision()      {}
func (ParseFailure) isDecision()     {}
