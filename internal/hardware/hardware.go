// Package hardware drives the physical status indicator that mirrors the
// assistant's state.
package hardware

import (
	"context"
	"log/slog"

	"github.com/vuddy-labs/vuddy/internal/config"
)

// Sink receives assistant state changes.
type Sink interface {
	SetState(ctx context.Context, state string) error
	Close() error
}

// Sim logs state changes instead of driving a device.
type Sim struct {
	logger *slog.Logger
}

// NewSim creates a simulated sink.
func NewSim(logger *slog.Logger) *Sim {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sim{logger: logger}
}

// SetState implements Sink.
func (s *Sim) SetState(_ context.Context, state string) error {
	s.logger.Info("Simulated LED", "state", state)
	return nil
}

// Close implements Sink.
func (s *Sim) Close() error { return nil }

// New returns the sink selected by cfg. A serial device that cannot be opened
// falls back to the simulator so the server always starts.
func New(cfg config.HardwareConfig, logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode != "arduino" {
		return NewSim(logger)
	}
	sink, err := OpenSerial(cfg.SerialPort, cfg.SerialBaud, logger)
	if err != nil {
		logger.Warn("Arduino init failed, falling back to simulator", "port", cfg.SerialPort, "error", err)
		return NewSim(logger)
	}
	logger.Info("Arduino connected", "port", cfg.SerialPort)
	return sink
}
