package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/vuddy-labs/vuddy/internal/hardware"
	"github.com/vuddy-labs/vuddy/internal/llm"
	"github.com/vuddy-labs/vuddy/internal/tools"
	"github.com/vuddy-labs/vuddy/internal/tts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxToolCallsPerTurn caps how many tool calls one turn executes.
	MaxToolCallsPerTurn = 2
	// MaxResponseChars caps the reply length in characters.
	MaxResponseChars = 480

	// FallbackReply replaces an empty model answer.
	FallbackReply = "I'm sorry, I couldn't generate a response. Could you try asking again?"

	instrumentationName = "github.com/vuddy-labs/vuddy/internal/agent"
)

// SystemPromptBase is the persona shared by every school.
const SystemPromptBase = `You are Vuddy, a friendly and helpful AI campus desk buddy for college students. You help with:
- Finding campus events and activities
- Managing study sessions (Pomodoro-style timers)
- Calendar management and reminders
- Personalized event recommendations based on interests
- Playing music via Spotify links

Personality:
- Warm, upbeat, and encouraging
- Speak naturally like a helpful friend, not a robot
- Keep responses concise for voice output (2-3 sentences max)
- Use casual language appropriate for college students
- Be proactive in suggesting relevant events or activities

When using tools, always explain what you found in a natural, conversational way.
Never mention internal tool names to the user.`

// Outcome is how a turn ended.
type Outcome int

const (
	// Done means the reply was delivered and the speaking state emitted.
	Done Outcome = iota
	// Cancelled means the turn unwound silently after its context was cancelled.
	Cancelled
	// Errored means the turn emitted an error event and returned to idle.
	Errored
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// ToolExecutor runs tool calls. It never returns a Go error.
type ToolExecutor interface {
	Definitions() []llm.ToolDefinition
	Execute(ctx context.Context, name string, args map[string]any) tools.Result
}

// ProfileContext renders the user profile for the system prompt.
type ProfileContext interface {
	Context(ctx context.Context) (string, error)
}

// Persona supplies the school-specific part of the system prompt.
type Persona interface {
	PromptContext() string
}

// Deps are the collaborators a turn uses.
type Deps struct {
	Gateway llm.Gateway
	Tools   ToolExecutor
	Synth   tts.Synthesizer
	Sink    hardware.Sink
	Profile ProfileContext
	Persona Persona
	ConvLog ConversationLogger
	Logger  *slog.Logger
}

// Orchestrator drives single turns end to end. It holds no per-session state
// and is shared by all sessions.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
	tracer trace.Tracer
	turns  metric.Int64Counter
}

// NewOrchestrator creates an orchestrator. Synth, Sink, Profile, Persona and
// ConvLog are optional.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ConvLog == nil {
		deps.ConvLog = noopConversationLogger{}
	}
	o := &Orchestrator{
		deps:   deps,
		logger: deps.Logger,
		tracer: otel.Tracer(instrumentationName),
	}
	turns, err := otel.Meter(instrumentationName).Int64Counter(
		"vuddy.turns",
		metric.WithDescription("Completed turns by outcome"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		o.logger.Warn("failed to create turns counter", "error", err)
	}
	o.turns = turns
	return o
}

// Turn is one user utterance to answer.
type Turn struct {
	ID        string
	UserID    string
	SessionID string
	Text      string
	History   *History
	Emitter   Emitter
}

// errCancelled marks a stage that observed cancellation.
var errCancelled = errors.New("turn cancelled")

// Run executes the turn pipeline. Cancelling ctx stops the turn at the next
// stage boundary without emitting anything further. Any other failure emits a
// single recoverable error followed by the idle state.
func (o *Orchestrator) Run(ctx context.Context, turn Turn) (outcome Outcome) {
	ctx, span := o.tracer.Start(ctx, "turn.run", trace.WithAttributes(attribute.String("turn_id", turn.ID)))
	start := time.Now()
	log := o.logger.With("turn_id", turn.ID, "session_id", turn.SessionID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Turn panicked", "panic", r)
			outcome = o.fail(ctx, turn, fmt.Errorf("internal error: %v", r))
		}
		span.SetAttributes(attribute.String("outcome", outcome.String()))
		if outcome == Errored {
			span.SetStatus(codes.Error, "turn failed")
		}
		span.End()
		if o.turns != nil {
			o.turns.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
		}
		log.Info("Turn finished", "outcome", outcome.String(), "duration_ms", time.Since(start).Milliseconds())
	}()

	err := o.run(ctx, turn, log)
	switch {
	case err == nil:
		return Done
	case errors.Is(err, errCancelled) || ctx.Err() != nil:
		return Cancelled
	default:
		log.Error("Turn failed", "error", err)
		return o.fail(ctx, turn, err)
	}
}

func (o *Orchestrator) run(ctx context.Context, turn Turn, log *slog.Logger) error {
	emit := func(ev Event) error {
		if ctx.Err() != nil {
			return errCancelled
		}
		if err := turn.Emitter.Emit(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return errCancelled
			}
			log.Warn("Failed to emit event", "type", ev.Type, "error", err)
		}
		return nil
	}

	if err := emit(StateEvent(StateThinking)); err != nil {
		return err
	}
	o.signal(ctx, StateThinking)
	o.logConversation(turn, "inbound", "user_message", turn.Text, nil)

	profileCtx := ""
	if o.deps.Profile != nil {
		var err error
		if profileCtx, err = o.deps.Profile.Context(ctx); err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
	}
	if ctx.Err() != nil {
		return errCancelled
	}

	messages := o.buildMessages(turn, profileCtx)

	resp, err := o.deps.Gateway.Chat(ctx, messages, o.deps.Tools.Definitions())
	if err != nil {
		return fmt.Errorf("reasoning call: %w", err)
	}
	if ctx.Err() != nil {
		return errCancelled
	}

	var summaries []tools.Summary
	if calls := resp.ToolCalls; len(calls) > 0 {
		if len(calls) > MaxToolCallsPerTurn {
			log.Info("Dropping excess tool calls", "requested", len(calls), "limit", MaxToolCallsPerTurn)
			calls = calls[:MaxToolCallsPerTurn]
		}
		for i, call := range calls {
			if call.ID == "" {
				call.ID = fmt.Sprintf("call_%d", i)
			}
			name := call.Function.Name

			if err := emit(ToolStatusEvent(name, ToolCalling)); err != nil {
				return err
			}
			result := o.deps.Tools.Execute(ctx, name, call.Args())
			if ctx.Err() != nil {
				return errCancelled
			}
			status := ToolDone
			if !result.OK {
				status = ToolError
			}
			if err := emit(ToolStatusEvent(name, status)); err != nil {
				return err
			}

			payload, err := json.Marshal(result)
			if err != nil {
				return fmt.Errorf("encode %s result: %w", name, err)
			}
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}},
				llm.Message{Role: llm.RoleTool, Content: string(payload), ToolCallID: call.ID},
			)
			summaries = append(summaries, tools.Summary{Tool: name, Summary: tools.Summarize(name, result)})
		}

		if resp, err = o.deps.Gateway.Chat(ctx, messages, nil); err != nil {
			return fmt.Errorf("final reasoning call: %w", err)
		}
		if ctx.Err() != nil {
			return errCancelled
		}
	}

	reply := ShapeResponse(resp.Content)
	if err := emit(TextEvent(reply, summaries)); err != nil {
		return err
	}
	turn.History.Append(
		llm.Message{Role: llm.RoleUser, Content: turn.Text},
		llm.Message{Role: llm.RoleAssistant, Content: reply},
	)
	o.logConversation(turn, "outbound", "assistant_message", reply, map[string]any{"tool_results": len(summaries)})

	if o.deps.Synth != nil {
		file, err := o.deps.Synth.Synthesize(ctx, reply)
		if ctx.Err() != nil {
			return errCancelled
		}
		switch {
		case err != nil:
			log.Warn("Speech synthesis failed, sending text only", "error", err)
		case file != "":
			if err := emit(AudioEvent(tts.URLPrefix + file)); err != nil {
				return err
			}
		}
	}

	if err := emit(StateEvent(StateSpeaking)); err != nil {
		return err
	}
	o.signal(ctx, StateSpeaking)
	return nil
}

// fail emits the error event and the idle state unless the turn was
// cancelled in the meantime.
func (o *Orchestrator) fail(ctx context.Context, turn Turn, err error) Outcome {
	if ctx.Err() != nil {
		return Cancelled
	}
	if emitErr := turn.Emitter.Emit(ctx, ErrorEvent(err.Error())); emitErr != nil {
		o.logger.Warn("Failed to emit error event", "error", emitErr)
	}
	if emitErr := turn.Emitter.Emit(ctx, StateEvent(StateIdle)); emitErr != nil {
		o.logger.Warn("Failed to emit idle state", "error", emitErr)
	}
	o.signal(ctx, StateIdle)
	return Errored
}

func (o *Orchestrator) buildMessages(turn Turn, profileCtx string) []llm.Message {
	var system strings.Builder
	system.WriteString(SystemPromptBase)
	if o.deps.Persona != nil {
		if school := o.deps.Persona.PromptContext(); school != "" {
			system.WriteString("\n\nSchool Context:\n")
			system.WriteString(school)
		}
	}
	if profileCtx != "" {
		system.WriteString("\n\nUser Profile:\n")
		system.WriteString(profileCtx)
	}

	history := turn.History.Messages()
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system.String()})
	messages = append(messages, history...)
	return append(messages, llm.Message{Role: llm.RoleUser, Content: turn.Text})
}

// signal forwards state to the actuator. Actuator failures never affect the turn.
func (o *Orchestrator) signal(ctx context.Context, state string) {
	if o.deps.Sink == nil {
		return
	}
	if err := o.deps.Sink.SetState(ctx, state); err != nil {
		o.logger.Warn("Actuator update failed", "state", state, "error", err)
	}
}

func (o *Orchestrator) logConversation(turn Turn, direction, eventType, content string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["turn_id"] = turn.ID
	o.deps.ConvLog.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     turn.UserID,
		SessionID:  turn.SessionID,
		Channel:    "ws",
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}

// ShapeResponse trims the model answer for voice output. Empty answers become
// FallbackReply. Answers longer than MaxResponseChars are cut and, unless the
// cut ends a sentence, finished with an ellipsis that still fits the limit.
func ShapeResponse(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackReply
	}
	if utf8.RuneCountInString(text) <= MaxResponseChars {
		return text
	}

	cut := truncateRunes(text, MaxResponseChars)
	if endsSentence(cut) {
		return cut
	}
	return truncateRunes(cut, MaxResponseChars-3) + "..."
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return strings.TrimRightFunc(string(runes), unicode.IsSpace)
}

func endsSentence(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}
