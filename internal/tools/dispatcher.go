package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vuddy-labs/vuddy/internal/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRetries is how many times a failed call is retried.
const MaxRetries = 1

// UnknownTool is the error reported for names that are not registered.
const UnknownTool = "unknown tool"

var errTimeout = errors.New("timeout")

// Dispatcher routes tool calls to registered providers with a per-call
// deadline and bounded retry.
type Dispatcher struct {
	providers map[string]Provider
	order     []string
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *Metrics
}

// NewDispatcher registers providers in the given order. Later providers with a
// duplicate name replace earlier ones.
func NewDispatcher(logger *slog.Logger, providers ...Provider) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		providers: make(map[string]Provider, len(providers)),
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		metrics:   NewMetrics(logger),
	}
	for _, p := range providers {
		if _, dup := d.providers[p.Name()]; !dup {
			d.order = append(d.order, p.Name())
		}
		d.providers[p.Name()] = p
	}
	return d
}

// Names returns the registered tool names in registration order.
func (d *Dispatcher) Names() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Definitions returns the tool schemas to attach to a reasoning call.
func (d *Dispatcher) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.providers[name].Definition())
	}
	return defs
}

// Execute runs the named tool. It always returns a well-formed Result: provider
// errors, deadline overruns and panics are all reported through Result.Error.
// Cancelling ctx returns promptly; a result arriving afterwards is dropped.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]any) Result {
	p, ok := d.providers[name]
	if !ok {
		d.logger.Warn("Unknown tool requested", "tool", name)
		return Result{OK: false, Error: UnknownTool}
	}
	if args == nil {
		args = map[string]any{}
	}

	ctx, span := d.tracer.Start(ctx, "tool.execute", trace.WithAttributes(attribute.String("tool", name)))
	defer span.End()
	start := time.Now()

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		attempts++
		payload, err := d.attempt(ctx, p, Args(args))
		if err == nil {
			d.metrics.Record(ctx, name, "ok", attempts, time.Since(start))
			span.SetAttributes(attribute.Int("attempts", attempts))
			return Result{OK: true, Payload: payload}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < MaxRetries {
			d.logger.Warn("Tool failed, retrying", "tool", name, "attempt", attempt+1, "error", err)
		}
	}

	status := "error"
	if errors.Is(lastErr, errTimeout) {
		status = "timeout"
	} else if ctx.Err() != nil {
		status = "cancelled"
	}
	d.metrics.Record(ctx, name, status, attempts, time.Since(start))
	span.SetAttributes(attribute.Int("attempts", attempts))
	span.SetStatus(codes.Error, lastErr.Error())
	d.logger.Warn("Tool failed", "tool", name, "attempts", attempts, "error", lastErr)
	return Result{OK: false, Error: lastErr.Error()}
}

type outcome struct {
	payload any
	err     error
}

// attempt runs one call under the provider's deadline. The provider runs in
// its own goroutine so neither a stuck provider nor a cancelled turn can hold
// the caller past the deadline.
func (d *Dispatcher) attempt(ctx context.Context, p Provider, args Args) (any, error) {
	actx, cancel := context.WithTimeout(ctx, p.Timeout())
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Tool panicked", "tool", p.Name(), "panic", r)
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		payload, err := p.Execute(actx, args)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errTimeout
		}
		return o.payload, o.err
	case <-actx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errTimeout
	}
}
