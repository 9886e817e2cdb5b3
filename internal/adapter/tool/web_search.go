package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"agent-compare/internal/application/port/output"
	"agent-compare/internal/domain/entity"

	"github.com/invopop/jsonschema"
)

var _ output.ToolPort = (*WebSearchTool)(nil)

const DefaultMaxResults = 5

var ErrEmptySearchQuery = errors.New("query must not be empty")

// SearchInput is the argument object the model sends with a web_search call.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"Search engine query. Use concise keywords; add the current year for time-sensitive questions."`
}

type WebSearchTool struct {
	search     output.SearchPort
	maxResults int
	logger     output.LoggerPort
	params     map[string]interface{}
}

func NewWebSearchTool(search output.SearchPort, maxResults int, logger output.LoggerPort) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &WebSearchTool{
		search:     search,
		maxResults: maxResults,
		logger:     logger,
		params:     reflectParameters(&SearchInput{}),
	}
}

func (t *WebSearchTool) Name() entity.ToolName { return entity.ToolWebSearch }

func (t *WebSearchTool) Description() string {
	return "Searches the web and returns the top results as a JSON array of {title, link, snippet}. Use it for current events, recent facts, and anything you are not sure about."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return t.params
}

func (t *WebSearchTool) Execute(ctx context.Context, args string) (string, error) {
	var input SearchInput
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return "", ErrEmptySearchQuery
	}

	results, err := t.search.Search(ctx, query, t.maxResults)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	if len(results) > t.maxResults {
		results = results[:t.maxResults]
	}
	if results == nil {
		results = []entity.SearchResult{}
	}

	if t.logger != nil {
		t.logger.Debug("web search", "query", query, "results", len(results))
	}

	out, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	return string(out), nil
}

// reflectParameters inlines the schema of v so it can be sent as a function
// declaration's parameters object.
func reflectParameters(v any) map[string]interface{} {
	r := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		panic(fmt.Sprintf("reflect tool schema: %v", err))
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		panic(fmt.Sprintf("decode tool schema: %v", err))
	}
	delete(params, "$schema")
	delete(params, "$id")
	return params
}
