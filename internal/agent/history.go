package agent

import (
	"sync"

	"github.com/vuddy-labs/vuddy/internal/llm"
)

// MaxHistory is the number of messages kept across turns (five exchanges).
const MaxHistory = 10

// History is a bounded FIFO transcript of completed exchanges.
type History struct {
	mu         sync.Mutex
	messages   []llm.Message
	generation uint64
}

// NewHistory creates an empty history bound to a persona generation.
func NewHistory(generation uint64) *History {
	return &History{generation: generation}
}

// Append adds messages, evicting the oldest beyond MaxHistory.
func (h *History) Append(msgs ...llm.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msgs...)
	if over := len(h.messages) - MaxHistory; over > 0 {
		h.messages = append([]llm.Message(nil), h.messages[over:]...)
	}
}

// Messages returns a copy of the transcript, oldest first.
func (h *History) Messages() []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]llm.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Reset clears the transcript.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// Sync clears the transcript if it was built under a different persona
// generation and reports whether it did.
func (h *History) Sync(generation uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.generation == generation {
		return false
	}
	h.generation = generation
	h.messages = nil
	return true
}
