// Package agent runs conversational turns: prompt assembly, the reasoning and
// tool loop, response shaping, speech synthesis and the outbound event stream.
package agent

import (
	"context"

	"github.com/vuddy-labs/vuddy/internal/tools"
)

// Assistant states mirrored to the client and the actuator.
const (
	StateIdle      = "idle"
	StateListening = "listening"
	StateThinking  = "thinking"
	StateSpeaking  = "speaking"
	StateError     = "error"
)

// Outbound event types.
const (
	TypeAssistantState = "assistant_state"
	TypeToolStatus     = "tool_status"
	TypeAssistantText  = "assistant_text"
	TypeAudioReady     = "assistant_audio_ready"
	TypeError          = "error"
)

// Tool status values.
const (
	ToolCalling = "calling"
	ToolDone    = "done"
	ToolError   = "error"
)

// Event is one outbound message on the session connection.
type Event struct {
	Type        string          `json:"type"`
	State       string          `json:"state,omitempty"`
	Tool        string          `json:"tool,omitempty"`
	Status      string          `json:"status,omitempty"`
	Text        string          `json:"text,omitempty"`
	ToolResults []tools.Summary `json:"tool_results,omitempty"`
	AudioURL    string          `json:"audio_url,omitempty"`
	Format      string          `json:"format,omitempty"`
	Message     string          `json:"message,omitempty"`
	Recoverable bool            `json:"recoverable,omitempty"`

	// Sent with the initial idle state only.
	WakeWord    string `json:"wake_word,omitempty"`
	LLMProvider string `json:"llm_provider,omitempty"`
	School      string `json:"school,omitempty"`
}

// StateEvent reports an assistant state change.
func StateEvent(state string) Event {
	return Event{Type: TypeAssistantState, State: state}
}

// ToolStatusEvent reports progress of one tool call.
func ToolStatusEvent(tool, status string) Event {
	return Event{Type: TypeToolStatus, Tool: tool, Status: status}
}

// TextEvent carries the final reply text.
func TextEvent(text string, results []tools.Summary) Event {
	return Event{Type: TypeAssistantText, Text: text, ToolResults: results}
}

// AudioEvent announces synthesized speech.
func AudioEvent(url string) Event {
	return Event{Type: TypeAudioReady, AudioURL: url, Format: "mp3"}
}

// ErrorEvent reports a recoverable failure.
func ErrorEvent(msg string) Event {
	return Event{Type: TypeError, Message: msg, Recoverable: true}
}

// Emitter delivers events to the client. Implementations must drop events
// whose ctx is already cancelled.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// EmitterFunc adapts a function into an Emitter.
type EmitterFunc func(ctx context.Context, ev Event) error

// Emit implements Emitter.
func (f EmitterFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }
