package executor

import "agent-compare/internal/domain/entity"

// buildMessages replays the trace after the system instruction and the user
// query. Tool steps of one turn become a single assistant message followed by
// one result message per call, carrying the text the model sent with them; a parse failure without a call becomes a
// corrective user message. Timeout steps add nothing.
func buildMessages(system string, query entity.Query, trace *entity.AgentTrace) []entity.Message {
	messages := []entity.Message{
		entity.SystemMessage(system),
		entity.UserMessage(query.String()),
	}

	steps := trace.Steps()
	for i := 0; i < len(steps); {
		step := steps[i]

		if step.ToolCall != nil {
			var calls []entity.ToolCall
			var results []entity.Message
			for i < len(steps) && steps[i].Turn == step.Turn && steps[i].ToolCall != nil {
				call := *steps[i].ToolCall
				calls = append(calls, call)
				results = append(results, entity.ToolResultMessage(call, steps[i].Observation))
				i++
			}
			messages = append(messages, entity.Message{Role: entity.RoleAssistant, Content: step.Thought, ToolCalls: calls})
			messages = append(messages, results...)
			continue
		}

		if step.Kind == entity.StepParseError {
			messages = append(messages, entity.UserMessage(step.Observation))
		}
		i++
	}
	return messages
}
