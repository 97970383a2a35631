package tools

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingTool(name string, timeout time.Duration, run func(call int32, ctx context.Context) (any, error)) (Provider, *atomic.Int32) {
	var calls atomic.Int32
	return Func{
		ToolName: name,
		Deadline: timeout,
		Run: func(ctx context.Context, _ Args) (any, error) {
			return run(calls.Add(1), ctx)
		},
	}, &calls
}

func TestExecuteUnknownTool(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil)
	res := d.Execute(context.Background(), "launch_rockets", nil)
	assert.False(t, res.OK)
	assert.Equal(t, "unknown tool", res.Error)
}

func TestExecuteSuccess(t *testing.T) {
	t.Parallel()

	tool, calls := countingTool("echo", time.Second, func(int32, context.Context) (any, error) {
		return SpotifyPayload{URL: "u"}, nil
	})
	res := NewDispatcher(nil, tool).Execute(context.Background(), "echo", map[string]any{})

	require.True(t, res.OK)
	assert.Equal(t, SpotifyPayload{URL: "u"}, res.Payload)
	assert.EqualValues(t, 1, calls.Load())
}

func TestExecuteRetriesOnceThenSucceeds(t *testing.T) {
	t.Parallel()

	tool, calls := countingTool("flaky", time.Second, func(call int32, _ context.Context) (any, error) {
		if call == 1 {
			return nil, errors.New("db busy")
		}
		return CalendarAddPayload{ID: "cal_1"}, nil
	})
	res := NewDispatcher(nil, tool).Execute(context.Background(), "flaky", nil)

	require.True(t, res.OK)
	assert.EqualValues(t, 2, calls.Load())
}

func TestExecuteErrorAfterRetries(t *testing.T) {
	t.Parallel()

	tool, calls := countingTool("broken", time.Second, func(int32, context.Context) (any, error) {
		return nil, errors.New("Session study_x not found")
	})
	res := NewDispatcher(nil, tool).Execute(context.Background(), "broken", nil)

	assert.False(t, res.OK)
	assert.Equal(t, "Session study_x not found", res.Error)
	assert.EqualValues(t, MaxRetries+1, calls.Load())
}

func TestExecuteTimeoutTwice(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)
	tool, calls := countingTool("slow", 20*time.Millisecond, func(int32, context.Context) (any, error) {
		<-block
		return nil, nil
	})

	start := time.Now()
	res := NewDispatcher(nil, tool).Execute(context.Background(), "slow", nil)

	assert.False(t, res.OK)
	assert.Equal(t, "timeout", res.Error)
	assert.Equal(t, "slow failed: timeout", Summarize("slow", res))
	assert.EqualValues(t, 2, calls.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecuteProviderHonoringDeadlineReportsTimeout(t *testing.T) {
	t.Parallel()

	tool, _ := countingTool("polite", 10*time.Millisecond, func(_ int32, ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	res := NewDispatcher(nil, tool).Execute(context.Background(), "polite", nil)

	assert.Equal(t, "timeout", res.Error)
}

func TestExecuteRecoversPanic(t *testing.T) {
	t.Parallel()

	tool, calls := countingTool("explodes", time.Second, func(int32, context.Context) (any, error) {
		panic("boom")
	})
	res := NewDispatcher(nil, tool).Execute(context.Background(), "explodes", nil)

	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "boom")
	assert.EqualValues(t, 2, calls.Load())
}

func TestExecuteCancelReturnsPromptly(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 2)
	block := make(chan struct{})
	defer close(block)
	tool, calls := countingTool("stuck", 5*time.Second, func(int32, context.Context) (any, error) {
		started <- struct{}{}
		<-block
		return EventsPayload{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- NewDispatcher(nil, tool).Execute(ctx, "stuck", nil) }()

	<-started
	cancel()

	select {
	case res := <-done:
		assert.False(t, res.OK)
		assert.EqualValues(t, 1, calls.Load(), "a cancelled call must not be retried")
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
}

func TestDefinitionsFollowRegistrationOrder(t *testing.T) {
	t.Parallel()

	a, _ := countingTool("a", time.Second, nil)
	b, _ := countingTool("b", time.Second, nil)
	d := NewDispatcher(nil, b, a)

	assert.Equal(t, []string{"b", "a"}, d.Names())
	defs := d.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "b", defs[0].Function.Name)
	assert.Equal(t, "object", defs[0].Function.Parameters["type"])
}
