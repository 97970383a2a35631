package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/vuddy-labs/vuddy/internal/agent"
	"github.com/vuddy-labs/vuddy/internal/hardware"
	"github.com/vuddy-labs/vuddy/internal/identity"
	"golang.org/x/time/rate"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 64 << 10
)

// HandlerConfig holds the collaborators shared by all connections.
type HandlerConfig struct {
	Runner         Runner
	Sink           hardware.Sink
	Persona        Persona
	Tracker        *Tracker
	WakeWord       string
	LLMProvider    string
	TurnsPerMinute int
	Burst          int
	AllowedOrigins []string
	IsDev          bool
	Logger         *slog.Logger
}

// WebSocketHandler serves the /ws voice session endpoint.
type WebSocketHandler struct {
	cfg HandlerConfig
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cfg HandlerConfig) *WebSocketHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = NewTracker()
	}
	return &WebSocketHandler{cfg: cfg}
}

// wsEmitter writes events as JSON text frames. Writes are serialized and an
// event whose context is already cancelled is dropped.
type wsEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
	ctx  context.Context
}

func (w *wsEmitter) Emit(ctx context.Context, ev agent.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if w.ctx.Err() != nil {
		return w.ctx.Err()
	}

	// coder/websocket closes the connection when a write context is cancelled
	// mid-frame, so writes run under the connection context.
	writeCtx, cancel := context.WithTimeout(w.ctx, writeTimeout)
	defer cancel()
	return w.conn.Write(writeCtx, websocket.MessageText, data)
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	log := h.cfg.Logger.With("user_id", userID, "session_id", sessionID)
	log.Info("WebSocket connection request", "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			log.Debug("Failed to close websocket", "error", closeErr)
		}
	}()
	ws.SetReadLimit(readLimit)

	h.cfg.Tracker.Register(userID, sessionID, ws)
	defer h.cfg.Tracker.Unregister(userID, sessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var limiter *rate.Limiter
	if h.cfg.TurnsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(h.cfg.TurnsPerMinute)), max(h.cfg.Burst, 1))
	}

	emitter := &wsEmitter{conn: ws, ctx: ctx}
	ctrl := NewController(Options{
		ID:          sessionID,
		UserID:      userID,
		Runner:      h.cfg.Runner,
		Emitter:     emitter,
		Sink:        h.cfg.Sink,
		Persona:     h.cfg.Persona,
		Limiter:     limiter,
		WakeWord:    h.cfg.WakeWord,
		LLMProvider: h.cfg.LLMProvider,
		Logger:      h.cfg.Logger,
	})

	ctrl.OnOpen(ctx)
	h.readLoop(ctx, ws, ctrl, emitter, log)
	cancel()
	ctrl.OnClose()
	log.Info("Voice session ended")
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, ctrl *Controller, emitter *wsEmitter, log *slog.Logger) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				log.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("Invalid client message", "error", err)
			if err := emitter.Emit(ctx, agent.ErrorEvent("invalid message")); err != nil {
				return
			}
			continue
		}
		ctrl.OnMessage(ctx, msg)
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.cfg.Logger.Warn("WebSocket origin rejected", "origin", origin)
	return false
}
