package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vuddy-labs/vuddy/internal/domain"
	"github.com/vuddy-labs/vuddy/internal/llm"
	"github.com/vuddy-labs/vuddy/internal/tools"
)

// scriptedGateway replays responses in order and records every request.
type scriptedGateway struct {
	mu        sync.Mutex
	responses []llm.Response
	errs      []error
	calls     [][]llm.Message
	toolsSeen [][]llm.ToolDefinition
	block     bool
	started   chan struct{}
}

func (g *scriptedGateway) Name() string                { return "fake" }
func (g *scriptedGateway) Health(context.Context) bool { return true }

func (g *scriptedGateway) Chat(ctx context.Context, msgs []llm.Message, defs []llm.ToolDefinition) (llm.Response, error) {
	g.mu.Lock()
	i := len(g.calls)
	g.calls = append(g.calls, append([]llm.Message(nil), msgs...))
	g.toolsSeen = append(g.toolsSeen, defs)
	block := g.block
	g.mu.Unlock()

	if block {
		if g.started != nil {
			close(g.started)
		}
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	}
	if i < len(g.errs) && g.errs[i] != nil {
		return llm.Response{}, g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return llm.Response{Content: "ok"}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		switch ev.Type {
		case TypeAssistantState:
			out = append(out, "state:"+ev.State)
		case TypeToolStatus:
			out = append(out, "tool:"+ev.Tool+":"+ev.Status)
		default:
			out = append(out, ev.Type)
		}
	}
	return out
}

func (r *recorder) find(typ string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == typ {
			return ev, true
		}
	}
	return Event{}, false
}

type fakeSynth struct {
	file string
	err  error
}

func (f fakeSynth) Synthesize(context.Context, string) (string, error) { return f.file, f.err }

type fakeSink struct {
	mu     sync.Mutex
	states []string
}

func (s *fakeSink) SetState(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	return nil
}

func (s *fakeSink) Close() error { return nil }

type staticProfile string

func (p staticProfile) Context(context.Context) (string, error) { return string(p), nil }

type staticPersona string

func (p staticPersona) PromptContext() string { return string(p) }

func toolCall(name, args string) llm.ToolCall {
	return llm.ToolCall{Function: llm.FunctionCall{Name: name, Arguments: json.RawMessage(args)}}
}

func eventsTool() tools.Provider {
	return tools.Func{
		ToolName: tools.GetEvents,
		Deadline: time.Second,
		Run: func(context.Context, tools.Args) (any, error) {
			return tools.EventsPayload{Events: []domain.Event{{Title: "Open Mic"}, {Title: "Trivia"}}}, nil
		},
	}
}

func newTestOrchestrator(gw llm.Gateway, sink *fakeSink, synth fakeSynth, providers ...tools.Provider) *Orchestrator {
	return NewOrchestrator(Deps{
		Gateway: gw,
		Tools:   tools.NewDispatcher(nil, providers...),
		Synth:   synth,
		Sink:    sink,
		Profile: staticProfile("User interests: music."),
		Persona: staticPersona("You're the campus buddy at George Mason University."),
	})
}

func TestRunWithToolCall(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall(tools.GetEvents, `{"time_range":"tonight"}`)}},
		{Content: "There's an open mic and trivia tonight!"},
	}}
	sink := &fakeSink{}
	rec := &recorder{}
	history := NewHistory(0)

	o := newTestOrchestrator(gw, sink, fakeSynth{file: "abc123.mp3"}, eventsTool())
	outcome := o.Run(context.Background(), Turn{ID: "t1", Text: "what's happening tonight?", History: history, Emitter: rec})

	require.Equal(t, Done, outcome)
	assert.Equal(t, []string{
		"state:thinking",
		"tool:get_events:calling",
		"tool:get_events:done",
		TypeAssistantText,
		TypeAudioReady,
		"state:speaking",
	}, rec.kinds())

	text, _ := rec.find(TypeAssistantText)
	assert.Equal(t, "There's an open mic and trivia tonight!", text.Text)
	assert.Equal(t, []tools.Summary{{Tool: tools.GetEvents, Summary: "Found 2 events"}}, text.ToolResults)

	audio, _ := rec.find(TypeAudioReady)
	assert.Equal(t, "/api/audio/tts/abc123.mp3", audio.AudioURL)
	assert.Equal(t, "mp3", audio.Format)

	assert.Equal(t, []string{StateThinking, StateSpeaking}, sink.states)
	assert.Equal(t, 2, history.Len())

	require.Len(t, gw.calls, 2)
	assert.NotEmpty(t, gw.toolsSeen[0], "first call offers tools")
	assert.Nil(t, gw.toolsSeen[1], "final call disables tools")

	system := gw.calls[0][0]
	assert.Equal(t, llm.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "School Context:\nYou're the campus buddy at George Mason University.")
	assert.Contains(t, system.Content, "User Profile:\nUser interests: music.")

	final := gw.calls[1]
	require.Len(t, final, 4)
	assert.Equal(t, llm.RoleAssistant, final[2].Role)
	assert.Equal(t, "call_0", final[2].ToolCalls[0].ID)
	assert.Equal(t, llm.RoleTool, final[3].Role)
	assert.Equal(t, "call_0", final[3].ToolCallID)
	assert.Contains(t, final[3].Content, `"ok":true`)
}

func TestRunReasoningFailure(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{errs: []error{errors.New("connection refused")}}
	sink := &fakeSink{}
	rec := &recorder{}
	history := NewHistory(0)
	history.Append(llm.Message{Role: llm.RoleUser, Content: "earlier"})

	outcome := newTestOrchestrator(gw, sink, fakeSynth{}, eventsTool()).
		Run(context.Background(), Turn{ID: "t2", Text: "hi", History: history, Emitter: rec})

	assert.Equal(t, Errored, outcome)
	assert.Equal(t, []string{"state:thinking", TypeError, "state:idle"}, rec.kinds())
	errEv, _ := rec.find(TypeError)
	assert.True(t, errEv.Recoverable)
	assert.Contains(t, errEv.Message, "connection refused")
	assert.Equal(t, []string{StateThinking, StateIdle}, sink.states)
	assert.Equal(t, 1, history.Len(), "history must not change on error")
}

func TestRunCapsToolCalls(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{
			toolCall(tools.GetEvents, `{}`),
			toolCall(tools.GetEvents, `{}`),
			toolCall(tools.GetEvents, `{}`),
		}},
		{Content: "done"},
	}}
	rec := &recorder{}

	outcome := newTestOrchestrator(gw, &fakeSink{}, fakeSynth{}, eventsTool()).
		Run(context.Background(), Turn{ID: "t3", Text: "everything", History: NewHistory(0), Emitter: rec})

	require.Equal(t, Done, outcome)
	calling := 0
	for _, k := range rec.kinds() {
		if k == "tool:get_events:calling" {
			calling++
		}
	}
	assert.Equal(t, MaxToolCallsPerTurn, calling)
	text, _ := rec.find(TypeAssistantText)
	assert.Len(t, text.ToolResults, MaxToolCallsPerTurn)
}

func TestRunToolTimeoutIsContained(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)
	slow := tools.Func{
		ToolName: tools.GetCalendarSummary,
		Deadline: 10 * time.Millisecond,
		Run: func(context.Context, tools.Args) (any, error) {
			<-block
			return nil, nil
		},
	}
	gw := &scriptedGateway{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall(tools.GetCalendarSummary, `not json`)}},
		{Content: "Sorry, I couldn't reach your calendar."},
	}}
	rec := &recorder{}

	outcome := newTestOrchestrator(gw, &fakeSink{}, fakeSynth{}, slow).
		Run(context.Background(), Turn{ID: "t4", Text: "what's next?", History: NewHistory(0), Emitter: rec})

	require.Equal(t, Done, outcome)
	assert.Contains(t, rec.kinds(), "tool:get_calendar_summary:error")
	text, _ := rec.find(TypeAssistantText)
	assert.Equal(t, "get_calendar_summary failed: timeout", text.ToolResults[0].Summary)
}

func TestRunUnknownToolIsContained(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("order_pizza", `{}`)}},
		{Content: "I can't order pizza."},
	}}
	rec := &recorder{}

	outcome := newTestOrchestrator(gw, &fakeSink{}, fakeSynth{}, eventsTool()).
		Run(context.Background(), Turn{ID: "t5", Text: "pizza", History: NewHistory(0), Emitter: rec})

	require.Equal(t, Done, outcome)
	text, _ := rec.find(TypeAssistantText)
	assert.Equal(t, "order_pizza failed: unknown tool", text.ToolResults[0].Summary)
}

func TestRunCancelledIsSilent(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{block: true, started: make(chan struct{})}
	sink := &fakeSink{}
	rec := &recorder{}
	history := NewHistory(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	o := newTestOrchestrator(gw, sink, fakeSynth{}, eventsTool())
	go func() {
		done <- o.Run(ctx, Turn{ID: "t6", Text: "hello", History: history, Emitter: rec})
	}()

	<-gw.started
	cancel()

	select {
	case outcome := <-done:
		assert.Equal(t, Cancelled, outcome)
	case <-time.After(time.Second):
		t.Fatal("cancelled turn did not unwind")
	}
	assert.Equal(t, []string{"state:thinking"}, rec.kinds())
	assert.Equal(t, []string{StateThinking}, sink.states)
	assert.Zero(t, history.Len())
}

func TestRunSynthesisFailureFallsBackToText(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{responses: []llm.Response{{Content: "Hey there!"}}}
	rec := &recorder{}

	outcome := newTestOrchestrator(gw, &fakeSink{}, fakeSynth{err: errors.New("401")}).
		Run(context.Background(), Turn{ID: "t7", Text: "hi", History: NewHistory(0), Emitter: rec})

	assert.Equal(t, Done, outcome)
	assert.Equal(t, []string{"state:thinking", TypeAssistantText, "state:speaking"}, rec.kinds())
}

type panickyGateway struct{ scriptedGateway }

func (p *panickyGateway) Chat(context.Context, []llm.Message, []llm.ToolDefinition) (llm.Response, error) {
	panic("nil map")
}

func TestRunRecoversPanic(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	outcome := newTestOrchestrator(&panickyGateway{}, &fakeSink{}, fakeSynth{}).
		Run(context.Background(), Turn{ID: "t8", Text: "hi", History: NewHistory(0), Emitter: rec})

	assert.Equal(t, Errored, outcome)
	assert.Equal(t, []string{"state:thinking", TypeError, "state:idle"}, rec.kinds())
}

func TestShapeResponse(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FallbackReply, ShapeResponse("   "))
	assert.Equal(t, "Short and sweet.", ShapeResponse("  Short and sweet.\n"))

	sentence := strings.Repeat("a", MaxResponseChars-1) + "."
	assert.Equal(t, sentence, ShapeResponse(sentence+" And more text after the limit."))

	long := strings.Repeat("word ", 200)
	got := ShapeResponse(long)
	assert.LessOrEqual(t, len([]rune(got)), MaxResponseChars)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.NotContains(t, got, " ...")

	multibyte := strings.Repeat("é", 600)
	got = ShapeResponse(multibyte)
	assert.Equal(t, MaxResponseChars, len([]rune(got)))
}

func TestRunToolReturningNilPayload(t *testing.T) {
	t.Parallel()

	gw := &scriptedGateway{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall(tools.GetEvents, `{}`)}},
		{Content: "Nothing on the calendar."},
	}}
	empty := tools.Func{
		ToolName: tools.GetEvents,
		Deadline: time.Second,
		Run: func(context.Context, tools.Args) (any, error) {
			var none map[string]any
			return none, nil
		},
	}
	rec := &recorder{}

	outcome := newTestOrchestrator(gw, &fakeSink{}, fakeSynth{file: "a.mp3"}, empty).
		Run(context.Background(), Turn{ID: "t-nil", Text: "anything?", History: NewHistory(0), Emitter: rec})

	require.Equal(t, Done, outcome)
	assert.Contains(t, rec.kinds(), "tool:get_events:done")
	assert.NotContains(t, rec.kinds(), TypeError)
	require.Len(t, gw.calls, 2)
	assert.Equal(t, `{"ok":true}`, gw.calls[1][3].Content)
}
