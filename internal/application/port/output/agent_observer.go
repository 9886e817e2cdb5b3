package output

import "context"

// AgentObserver receives progress of an agent run. Implementations must be safe
// for concurrent use: tool notifications of one turn arrive from parallel calls.
type AgentObserver interface {
	ShowIteration(ctx context.Context, iteration, maxIterations int)
	ShowToolStart(ctx context.Context, toolName, arguments string)
	ShowToolResult(ctx context.Context, toolName, result string, isError bool)
}
