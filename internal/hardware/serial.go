package hardware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

// AckTimeout is how long the device gets to acknowledge a command.
const AckTimeout = 400 * time.Millisecond

// port is the subset of serial.Port the sink needs.
type port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Serial sends line-delimited JSON commands to an Arduino and waits for acks.
// Commands that are never acknowledged are logged and otherwise ignored.
type Serial struct {
	mu      sync.Mutex
	port    port
	counter int
	logger  *slog.Logger
}

type command struct {
	T      string `json:"t"`
	ID     string `json:"id"`
	Action string `json:"action"`
	State  string `json:"state"`
}

type ack struct {
	T  string `json:"t"`
	OK bool   `json:"ok"`
}

// OpenSerial opens the device at path.
func OpenSerial(path string, baud int, logger *slog.Logger) (*Serial, error) {
	p, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}
	return newSerial(p, logger), nil
}

func newSerial(p port, logger *slog.Logger) *Serial {
	if logger == nil {
		logger = slog.Default()
	}
	return &Serial{port: p, logger: logger}
}

// SetState implements Sink. It retries once when no ack arrives in time.
func (s *Serial) SetState(ctx context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	cmd := command{T: "cmd", ID: fmt.Sprintf("c%03d", s.counter), Action: "set_status", State: state}
	line, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	line = append(line, '\n')

	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.port.Write(line); err != nil {
			return fmt.Errorf("write command: %w", err)
		}
		if s.awaitAck() {
			return nil
		}
	}
	s.logger.Warn("Arduino ack timeout, continuing", "cmd_id", cmd.ID, "state", state)
	return nil
}

// awaitAck reads one line within AckTimeout and reports whether it was a
// positive ack.
func (s *Serial) awaitAck() bool {
	if err := s.port.SetReadTimeout(AckTimeout); err != nil {
		return false
	}
	deadline := time.Now().Add(AckTimeout)
	var buf bytes.Buffer
	chunk := make([]byte, 64)
	for time.Now().Before(deadline) {
		n, err := s.port.Read(chunk)
		buf.Write(chunk[:n])
		if i := bytes.IndexByte(buf.Bytes(), '\n'); i >= 0 {
			var a ack
			if json.Unmarshal(bytes.TrimSpace(buf.Bytes()[:i]), &a) != nil {
				return false
			}
			return a.T == "ack" && a.OK
		}
		if err != nil || n == 0 {
			break
		}
	}
	return false
}

// Close implements Sink.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
