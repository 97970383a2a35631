package session

import (
	"testing"

	"github.com/coder/websocket"
)

func TestTracker_RegisterUnregister(t *testing.T) {
	tr := NewTracker()
	conn := &websocket.Conn{}

	tr.Register("user123", "tab-1", conn)
	if tr.Active("user123", "tab-1") != conn {
		t.Fatal("Expected registered connection to be active")
	}
	if tr.Count() != 1 {
		t.Errorf("Expected 1 connection, got %d", tr.Count())
	}

	tr.Unregister("user123", "tab-1", conn)
	if tr.Active("user123", "tab-1") != nil {
		t.Error("Expected nil connection after unregister")
	}
	if tr.Count() != 0 {
		t.Errorf("Expected 0 connections, got %d", tr.Count())
	}
}

func TestTracker_UnregisterStale(t *testing.T) {
	tr := NewTracker()
	current := &websocket.Conn{}
	stale := &websocket.Conn{}

	tr.Register("user123", "tab-1", current)
	tr.Unregister("user123", "tab-1", stale)

	if tr.Active("user123", "tab-1") != current {
		t.Error("Stale unregister must not remove the current connection")
	}
}

func TestTracker_CountsAcrossTabs(t *testing.T) {
	tr := NewTracker()
	tr.Register("a", "tab-1", &websocket.Conn{})
	tr.Register("a", "tab-2", &websocket.Conn{})
	tr.Register("b", "tab-1", &websocket.Conn{})

	if tr.Count() != 3 {
		t.Errorf("Expected 3 connections, got %d", tr.Count())
	}
}
