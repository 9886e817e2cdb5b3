package entity

type ToolName string

const (
	ToolWebSearch ToolName = "web_search"
)

func (t ToolName) String() string {
	return string(t)
}

// SearchResult is one ordered hit returned by the web search provider.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}
