package prompts

import (
	"fmt"
	"strings"
	"time"

	"agent-compare/internal/domain/entity"

	lcprompts "github.com/tmc/langchaingo/prompts"
)

// DateLayout is how the current date is written into prompts.
const DateLayout = "2006-01-02"

// Render fills f-string placeholders such as {date} and {input}. Every
// placeholder in tmpl must have a value in vars.
func Render(tmpl string, vars map[string]any) (string, error) {
	out, err := lcprompts.RenderTemplate(tmpl, lcprompts.TemplateFormatFString, vars)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out, nil
}

const datePlaceholder = "{date}"

// Build substitutes date into the {date} placeholder of tmpl. Any other brace
// in tmpl is literal text and comes back unchanged.
func Build(tmpl string, date time.Time) (string, error) {
	return Render(escapeBraces(tmpl, datePlaceholder), map[string]any{"date": date.Format(DateLayout)})
}

// escapeBraces doubles every brace outside the given placeholders so the
// f-string renderer only sees those placeholders.
func escapeBraces(tmpl string, placeholders ...string) string {
	var sb strings.Builder
	sb.Grow(len(tmpl))
next:
	for i := 0; i < len(tmpl); {
		for _, p := range placeholders {
			if strings.HasPrefix(tmpl[i:], p) {
				sb.WriteString(p)
				i += len(p)
				continue next
			}
		}
		switch tmpl[i] {
		case '{':
			sb.WriteString("{{")
		case '}':
			sb.WriteString("}}")
		default:
			sb.WriteByte(tmpl[i])
		}
		i++
	}
	return sb.String()
}

type Builder struct {
	systemTemplate string
	directTemplate string
	now            func() time.Time
}

func NewBuilder(systemTemplate string, now func() time.Time) *Builder {
	if systemTemplate == "" {
		systemTemplate = DefaultSystemPrompt
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{
		systemTemplate: systemTemplate,
		directTemplate: strings.TrimSpace(DirectPrompt),
		now:            now,
	}
}

// SystemInstruction is the dated instruction for the agent path.
func (b *Builder) SystemInstruction() (string, error) {
	return Build(b.systemTemplate, b.now())
}

// DirectPrompt grounds the plain completion in the current date.
func (b *Builder) DirectPrompt(query entity.Query) (string, error) {
	return Render(b.directTemplate, map[string]any{
		"date":  b.now().Format(DateLayout),
		"input": query.String(),
	})
}
