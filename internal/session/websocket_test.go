package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vuddy-labs/vuddy/internal/agent"
)

func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn) agent.Event {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev agent.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestWebSocketRoundTrip(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	handler := NewWebSocketHandler(HandlerConfig{
		Runner:         &fakeRunner{},
		Persona:        &fakePersona{},
		Tracker:        tracker,
		WakeWord:       "hey vuddy",
		LLMProvider:    "ollama",
		TurnsPerMinute: 60,
		Burst:          5,
		IsDev:          true,
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	hello := readEvent(ctx, t, conn)
	assert.Equal(t, agent.StateIdle, hello.State)
	assert.Equal(t, "hey vuddy", hello.WakeWord)
	assert.Equal(t, "jmu", hello.School)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`not json`)))
	bad := readEvent(ctx, t, conn)
	assert.Equal(t, agent.TypeError, bad.Type)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"chat","text":"hi"}`)))

	var seen []string
	for len(seen) < 4 {
		ev := readEvent(ctx, t, conn)
		if ev.Type == agent.TypeAssistantText {
			seen = append(seen, "text:"+ev.Text)
			continue
		}
		seen = append(seen, ev.State)
	}
	assert.Equal(t, []string{agent.StateThinking, "text:re: hi", agent.StateSpeaking, agent.StateIdle}, seen)
	assert.Equal(t, 1, tracker.Count())
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	handler := NewWebSocketHandler(HandlerConfig{
		Runner:         &fakeRunner{},
		AllowedOrigins: []string{"http://localhost:5173"},
	})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
