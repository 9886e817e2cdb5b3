package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"agent-compare/internal/domain/entity"

	"github.com/kaptinlin/jsonrepair"
)

const emptyReplyCorrection = "Your last reply contained neither a tool call nor an answer. Either call a tool or reply with the final answer for the user."

var errNotObject = errors.New("arguments must be a JSON object")

// decide classifies one model reply. Tool calls win over text; a reply with
// neither is a parse failure.
func decide(turn int, msg entity.Message) entity.Decision {
	if msg.HasToolCalls() {
		calls := make([]entity.ToolCall, len(msg.ToolCalls))
		for i, c := range msg.ToolCalls {
			if c.ID == "" {
				c.ID = fmt.Sprintf("call_%d_%d", turn, i)
			}
			calls[i] = c
		}
		return entity.ToolCallProposal{Content: msg.Content, Calls: calls}
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return entity.ParseFailure{Reason: "empty reply", Raw: msg.Content}
	}
	return entity.FinalAnswer{Text: text}
}

// normalizeArguments returns args as a compact JSON object, repairing common
// model mistakes such as single quotes, trailing commas or missing braces.
func normalizeArguments(args string) (string, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return "{}", nil
	}

	if !json.Valid([]byte(args)) {
		repaired, err := jsonrepair.JSONRepair(args)
		if err != nil {
			return "", err
		}
		args = repaired
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(args), &obj); err != nil || obj == nil {
		return "", errNotObject
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
