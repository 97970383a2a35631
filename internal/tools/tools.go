// Package tools is the tool registry and dispatcher the assistant calls into,
// plus the built-in campus tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vuddy-labs/vuddy/internal/llm"
)

// Provider is one named capability the model may invoke.
type Provider interface {
	Name() string
	Definition() llm.ToolDefinition
	// Timeout is the hard deadline for a single attempt.
	Timeout() time.Duration
	// Execute runs the capability and returns its payload.
	Execute(ctx context.Context, args Args) (any, error)
}

// Func adapts a plain function into a Provider.
type Func struct {
	ToolName    string
	Description string
	Parameters  map[string]any
	Deadline    time.Duration
	Run         func(ctx context.Context, args Args) (any, error)
}

// Name implements Provider.
func (f Func) Name() string { return f.ToolName }

// Timeout implements Provider.
func (f Func) Timeout() time.Duration { return f.Deadline }

// Definition implements Provider.
func (f Func) Definition() llm.ToolDefinition {
	params := f.Parameters
	if params == nil {
		params = object(nil)
	}
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.Function{
			Name:        f.ToolName,
			Description: f.Description,
			Parameters:  params,
		},
	}
}

// Execute implements Provider.
func (f Func) Execute(ctx context.Context, args Args) (any, error) {
	return f.Run(ctx, args)
}

// Result is the outcome of a dispatched tool call. It never carries a Go
// error; failures are described by Error.
type Result struct {
	OK      bool
	Error   string
	Payload any
}

// MarshalJSON flattens the payload fields next to "ok" and "error", the shape
// fed back to the model as the tool message.
func (r Result) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if r.Payload != nil {
		data, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		if err := json.Unmarshal(data, &out); err != nil {
			out = map[string]any{"result": json.RawMessage(data)}
		}
		// A nil map, slice or pointer encodes as null and unmarshals to a nil map.
		if out == nil {
			out = map[string]any{}
		}
	}
	out["ok"] = r.OK
	if !r.OK {
		out["error"] = r.Error
	}
	return json.Marshal(out)
}

// Args are decoded tool call arguments.
type Args map[string]any

// String returns the trimmed string at key, or fallback when absent or empty.
func (a Args) String(key, fallback string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return fallback
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return fallback
	}
	return s
}

// Require returns the string at key or an error naming the missing argument.
func (a Args) Require(key string) (string, error) {
	s := a.String(key, "")
	if s == "" {
		return "", fmt.Errorf("missing required argument: %s", key)
	}
	return s, nil
}

// Int returns the integer at key. Numbers encoded as JSON floats or strings
// are accepted; anything else yields fallback.
func (a Args) Int(key string, fallback int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// Strings returns the string list at key. A single string is treated as a
// one-element list.
func (a Args) Strings(key string) []string {
	var out []string
	switch v := a[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		out = append(out, v...)
	case string:
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}
