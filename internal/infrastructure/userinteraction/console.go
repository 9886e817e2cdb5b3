package userinteraction

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"agent-compare/internal/application/port/output"
	"agent-compare/internal/domain/entity"

	"github.com/fatih/color"
)

var _ output.AgentObserver = (*Console)(nil)

// Console is the interactive terminal front end. Agent progress may arrive
// from parallel tool calls, so every write holds mu.
type Console struct {
	reader   *bufio.Reader
	lines    chan inputLine
	readOnce sync.Once
	out      io.Writer
	mu       sync.Mutex
}

type inputLine struct {
	text string
	err  error
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		reader: bufio.NewReader(in),
		lines:  make(chan inputLine),
		out:    out,
	}
}

// readLines feeds lines until the first read error, then closes c.lines.
// A question abandoned through ctx leaves its line for the next AskQuestion.
func (c *Console) readLines() {
	defer close(c.lines)
	for {
		text, err := c.reader.ReadString('\n')
		c.lines <- inputLine{text: text, err: err}
		if err != nil {
			return
		}
	}
}

// AskQuestion returns io.EOF once input is exhausted and ctx.Err() when ctx
// ends before a line arrives.
func (c *Console) AskQuestion(ctx context.Context, question string) (string, error) {
	c.mu.Lock()
	fmt.Fprintf(c.out, "\n%s\n> ", question)
	c.mu.Unlock()

	c.readOnce.Do(func() { go c.readLines() })

	var line inputLine
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		line = l
	}

	answer, err := line.text, line.err
	if err != nil {
		if err == io.EOF && strings.TrimSpace(answer) != "" {
			return strings.TrimSpace(answer), nil
		}
		if err == io.EOF {
			return "", io.EOF
		}
		return "", fmt.Errorf("failed to read user input: %w", err)
	}

	return strings.TrimSpace(answer), nil
}

func (c *Console) ShowIteration(ctx context.Context, iteration, maxIterations int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(c.out, "\n━━━ Agent turn %d/%d ━━━\n", iteration, maxIterations)
}

func (c *Console) ShowToolStart(ctx context.Context, toolName, arguments string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	icon, name := getToolDisplay(toolName)
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(c.out, "%s %s\n", icon, name)

	if summary := formatToolArguments(toolName, arguments); summary != "" {
		dim := color.New(color.Faint)
		dim.Fprintf(c.out, "   %s\n", summary)
	}
}

func (c *Console) ShowToolResult(ctx context.Context, toolName, result string, isError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isError {
		red := color.New(color.FgRed)
		red.Fprint(c.out, "❌ Error: ")
		dim := color.New(color.Faint)
		dim.Fprintln(c.out, truncate(result, 300))
		return
	}

	green := color.New(color.FgGreen)
	green.Fprintf(c.out, "✓ %s\n", formatToolResult(toolName, result))
}

// ShowAnswer prints one pane. Panes are printed in completion order.
func (c *Console) ShowAnswer(answer entity.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	title, paint := paneStyle(answer.Path)
	paint.Fprintf(c.out, "\n┏━ %s ━━━━━━━━━━━━━━━━━━━━\n", title)

	if answer.Err != nil {
		red := color.New(color.FgRed)
		red.Fprintf(c.out, "┃ failed: %v\n", answer.Err)
		paint.Fprintln(c.out, "┗━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		return
	}

	for _, line := range strings.Split(strings.TrimRight(answer.Text, "\n"), "\n") {
		fmt.Fprintf(c.out, "┃ %s\n", line)
	}

	footer := "┗━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
	if answer.Path == entity.PathAgent {
		footer = fmt.Sprintf("┗━ %d turn(s)", answer.Iterations)
		if answer.StopReason == entity.StopIterationLimit {
			footer += ", stopped at turn limit"
		}
	}
	paint.Fprintln(c.out, footer)
}

func (c *Console) ShowError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(c.out, "\n%s\n", message)
}

func (c *Console) ShowInfo(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, message)
}

func paneStyle(path entity.ResponsePath) (string, *color.Color) {
	switch path {
	case entity.PathDirect:
		return "Plain LLM", color.New(color.FgMagenta, color.Bold)
	case entity.PathAgent:
		return "LLM + web search", color.New(color.FgBlue, color.Bold)
	default:
		return string(path), color.New(color.Bold)
	}
}

func getToolDisplay(toolName string) (string, string) {
	displays := map[string][2]string{
		entity.ToolWebSearch.String(): {"🔎", "Web search"},
	}

	if display, ok := displays[toolName]; ok {
		return display[0], display[1]
	}
	return "🔧", toolName
}

func formatToolArguments(toolName, arguments string) string {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return ""
	}

	switch entity.ToolName(toolName) {
	case entity.ToolWebSearch:
		if query, ok := args["query"].(string); ok {
			return fmt.Sprintf("Query: %s", truncate(query, 80))
		}
	}
	return ""
}

func formatToolResult(toolName, result string) string {
	switch entity.ToolName(toolName) {
	case entity.ToolWebSearch:
		var results []entity.SearchResult
		if err := json.Unmarshal([]byte(result), &results); err != nil {
			return truncate(result, 100)
		}
		if len(results) == 0 {
			return "No results"
		}
		return fmt.Sprintf("%d result(s), top: %s", len(results), truncate(results[0].Title, 60))
	}
	return truncate(result, 100)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
