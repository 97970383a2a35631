// Package session owns the per-connection assistant state machine and the
// WebSocket transport that feeds it.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vuddy-labs/vuddy/internal/agent"
	"github.com/vuddy-labs/vuddy/internal/hardware"
	"golang.org/x/time/rate"
)

// Inbound message kinds.
const (
	KindStartListening  = "start_listening"
	KindStopListening   = "stop_listening"
	KindTranscriptFinal = "transcript_final"
	KindChat            = "chat"
	KindInterrupt       = "interrupt"
	KindPing            = "ping"
)

// ErrRateLimited is the message sent when a connection starts turns too fast.
const ErrRateLimited = "rate limit exceeded"

// Inbound is one client message.
type Inbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Runner executes a single turn.
type Runner interface {
	Run(ctx context.Context, turn agent.Turn) agent.Outcome
}

// Persona reports the active assistant persona and its context generation.
type Persona interface {
	ActiveID() string
	Generation() uint64
}

// Options configures a Controller.
type Options struct {
	ID          string
	UserID      string
	Runner      Runner
	Emitter     agent.Emitter
	Sink        hardware.Sink
	Persona     Persona
	Limiter     *rate.Limiter
	WakeWord    string
	LLMProvider string
	Logger      *slog.Logger
}

// Controller is the state machine of one connection. At most one turn runs at
// a time; a new turn is only started after the previous one has fully
// returned.
type Controller struct {
	opts    Options
	history *agent.History
	logger  *slog.Logger

	// turnMu serializes cancel-and-spawn sequences.
	turnMu sync.Mutex

	mu     sync.Mutex
	state  string
	base   context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a controller. Sink, Persona and Limiter are optional.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	var generation uint64
	if opts.Persona != nil {
		generation = opts.Persona.Generation()
	}
	return &Controller{
		opts:    opts,
		history: agent.NewHistory(generation),
		logger:  opts.Logger.With("session_id", opts.ID),
		state:   agent.StateIdle,
		base:    context.Background(),
	}
}

// ID returns the connection id.
func (c *Controller) ID() string { return c.opts.ID }

// State returns the last assistant state sent to the client.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History exposes the session transcript.
func (c *Controller) History() *agent.History { return c.history }

// OnOpen binds the controller to the connection context, clears the
// transcript and announces the idle state together with session metadata.
func (c *Controller) OnOpen(ctx context.Context) {
	c.mu.Lock()
	c.base = ctx
	c.mu.Unlock()

	c.history.Reset()
	if c.opts.Persona != nil {
		c.history.Sync(c.opts.Persona.Generation())
	}

	ev := agent.StateEvent(agent.StateIdle)
	ev.WakeWord = c.opts.WakeWord
	ev.LLMProvider = c.opts.LLMProvider
	if c.opts.Persona != nil {
		ev.School = c.opts.Persona.ActiveID()
	}
	c.emit(ctx, ev)
	c.signal(ctx, agent.StateIdle)
	c.logger.Info("Session opened", "user_id", c.opts.UserID)
}

// OnMessage dispatches one inbound message. It returns once the message has
// been handled; turns run in the background.
func (c *Controller) OnMessage(ctx context.Context, msg Inbound) {
	switch msg.Type {
	case KindStartListening:
		c.setState(ctx, agent.StateListening)
	case KindStopListening:
		c.setState(ctx, agent.StateIdle)
	case KindTranscriptFinal, KindChat:
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			c.logger.Debug("Ignoring empty message", "type", msg.Type)
			return
		}
		if c.opts.Limiter != nil && !c.opts.Limiter.Allow() {
			c.logger.Warn("Rate limit exceeded", "type", msg.Type)
			c.emit(ctx, agent.ErrorEvent(ErrRateLimited))
			return
		}
		c.startTurn(text)
	case KindInterrupt:
		c.turnMu.Lock()
		c.cancelAndAwait()
		c.turnMu.Unlock()
		c.setState(ctx, agent.StateIdle)
	case KindPing:
		c.emit(ctx, agent.Event{Type: "pong"})
	default:
		c.logger.Debug("Unknown message type", "type", msg.Type)
	}
}

// OnClose cancels the active turn and waits for it to unwind.
func (c *Controller) OnClose() {
	c.turnMu.Lock()
	c.cancelAndAwait()
	c.turnMu.Unlock()
	c.logger.Info("Session closed", "user_id", c.opts.UserID)
}

// Wait blocks until the active turn, if any, has returned.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Controller) startTurn(text string) {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	c.cancelAndAwait()

	if c.opts.Persona != nil && c.history.Sync(c.opts.Persona.Generation()) {
		c.logger.Info("Persona changed, history cleared")
	}

	c.mu.Lock()
	ctx, cancel := context.WithCancel(c.base)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	turn := agent.Turn{
		ID:        uuid.NewString(),
		UserID:    c.opts.UserID,
		SessionID: c.opts.ID,
		Text:      text,
		History:   c.history,
		Emitter:   agent.EmitterFunc(c.emit),
	}

	go func() {
		defer close(done)
		defer cancel()

		outcome := c.opts.Runner.Run(ctx, turn)
		if outcome == agent.Done && ctx.Err() == nil {
			c.emit(ctx, agent.StateEvent(agent.StateIdle))
			c.signal(ctx, agent.StateIdle)
		}
	}()
}

// cancelAndAwait must be called with turnMu held.
func (c *Controller) cancelAndAwait() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Controller) setState(ctx context.Context, state string) {
	c.emit(ctx, agent.StateEvent(state))
	c.signal(ctx, state)
}

// emit sends ev and records the state it announces.
func (c *Controller) emit(ctx context.Context, ev agent.Event) error {
	if err := c.opts.Emitter.Emit(ctx, ev); err != nil {
		if ctx.Err() == nil {
			c.logger.Debug("Failed to send event", "type", ev.Type, "error", err)
		}
		return err
	}
	if ev.Type == agent.TypeAssistantState {
		c.mu.Lock()
		c.state = ev.State
		c.mu.Unlock()
	}
	return nil
}

func (c *Controller) signal(ctx context.Context, state string) {
	if c.opts.Sink == nil {
		return
	}
	if err := c.opts.Sink.SetState(ctx, state); err != nil {
		c.logger.Warn("Actuator update failed", "state", state, "error", err)
	}
}
