package entity

import "strings"

// Credential is the caller's provider API key. It is scoped to a single request.
type Credential string

const redacted = "[REDACTED]"

// String keeps the key out of logs and formatted errors.
func (c Credential) String() string {
	if c == "" {
		return ""
	}
	return redacted
}

func (c Credential) Value() string {
	return string(c)
}

func (c Credential) IsEmpty() bool {
	return strings.TrimSpace(string(c)) == ""
}

// Query is free-text user input, never empty once constructed.
type Query string

func NewQuery(text string) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	return Query(text), nil
}

func (q Query) String() string {
	return string(q)
}

type ResponsePath string

const (
	PathDirect ResponsePath = "direct"
	PathAgent  ResponsePath = "agent"
)

type StopReason string

const (
	StopFinalAnswer    StopReason = "final_answer"
	StopIterationLimit StopReason = "iteration_limit"
)

// Answer is the final text produced by one response path for a query.
type Answer struct {
	Path       ResponsePath
	Query      Query
	Text       string
	Iterations int
	StopReason StopReason
	Err        error
}

// Comparison pairs both answers for the same query.
type Comparison struct {
	Query  Query
	Direct Answer
	Agent  Answer
}
