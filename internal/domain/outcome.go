package domain

import "fmt"

// OutcomeKind tells callers whether an operation succeeded.
type OutcomeKind string

const (
	OutcomeOK  OutcomeKind = "OK"
	OutcomeErr OutcomeKind = "ERR"
)

// Outcome is the uniform result of every adapter and dispatcher operation.
// Body is always a JSON object; on OutcomeErr it carries an "error" key.
type Outcome struct {
	Kind OutcomeKind
	Body map[string]any
}

// OK wraps a successful body. A nil body becomes an empty object.
func OK(body map[string]any) Outcome {
	if body == nil {
		body = map[string]any{}
	}
	return Outcome{Kind: OutcomeOK, Body: body}
}

// Err builds a failure whose body is {"error": msg}.
func Err(msg string) Outcome {
	return Outcome{Kind: OutcomeErr, Body: map[string]any{"error": msg}}
}

// Errorf is Err with formatting.
func Errorf(format string, args ...any) Outcome {
	return Err(fmt.Sprintf(format, args...))
}

// ErrBody builds a failure from an existing body, adding a default "error"
// key only when the body lacks one.
func ErrBody(body map[string]any, fallback string) Outcome {
	if body == nil {
		body = map[string]any{}
	}
	if _, ok := body["error"]; !ok {
		body["error"] = fallback
	}
	return Outcome{Kind: OutcomeErr, Body: body}
}

func (o Outcome) IsOK() bool {
	return o.Kind == OutcomeOK
}

// ErrorText returns the "error" field as a string, or "" when absent.
func (o Outcome) ErrorText() string {
	if o.Body == nil {
		return ""
	}
	s, _ := o.Body["error"].(string)
	return s
}
