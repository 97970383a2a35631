package tools

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/vuddy-labs/vuddy/internal/tools"

// Metrics holds tool dispatch instruments.
type Metrics struct {
	executions metric.Int64Counter
	duration   metric.Float64Histogram
	attempts   metric.Int64Counter
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics(logger *slog.Logger) *Metrics {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	m.executions, err = meter.Int64Counter(
		"vuddy.tools.executions",
		metric.WithDescription("Tool executions by outcome"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		logger.Warn("failed to create executions counter", "error", err)
	}

	m.duration, err = meter.Float64Histogram(
		"vuddy.tools.duration",
		metric.WithDescription("Tool execution duration including retries"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 250, 500, 1000, 2000, 3000, 6000),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", "error", err)
	}

	m.attempts, err = meter.Int64Counter(
		"vuddy.tools.attempts",
		metric.WithDescription("Individual tool attempts, retries included"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		logger.Warn("failed to create attempts counter", "error", err)
	}
	return m
}

// Record records one dispatched call.
func (m *Metrics) Record(ctx context.Context, tool, status string, attempts int, elapsed time.Duration) {
	toolAttr := attribute.String("tool", tool)
	if m.executions != nil {
		m.executions.Add(ctx, 1, metric.WithAttributes(toolAttr, attribute.String("status", status)))
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(toolAttr))
	}
	if m.attempts != nil {
		m.attempts.Add(ctx, int64(attempts), metric.WithAttributes(toolAttr))
	}
}
