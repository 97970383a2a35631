package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vuddy-labs/vuddy/internal/domain"
	"github.com/vuddy-labs/vuddy/internal/events"
)

// EventSource looks up campus events. Reload rereads the seed catalog.
type EventSource interface {
	GetEvents(timeRange string, tags []string) ([]domain.Event, error)
	Reload() []domain.Event
}

// Recommender ranks upcoming events for the user.
type Recommender interface {
	Recommend(ctx context.Context, count int) ([]events.Recommendation, error)
}

// CalendarService reads and writes calendar items.
type CalendarService interface {
	Summary(ctx context.Context, hoursAhead int) ([]domain.CalendarItem, error)
	Add(ctx context.Context, title, timeISO, notes string) (string, error)
}

// DataHandler serves events, recommendations and calendar endpoints.
type DataHandler struct {
	events   EventSource
	rec      Recommender
	calendar CalendarService
}

// NewDataHandler creates a data handler.
func NewDataHandler(ev EventSource, rec Recommender, cal CalendarService) *DataHandler {
	return &DataHandler{events: ev, rec: rec, calendar: cal}
}

// RegisterRoutes registers data routes.
func (h *DataHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/events", h.GetEvents)
		r.Get("/events/recommendations", h.GetRecommendations)
		r.Post("/events/reload", h.ReloadEvents)
		r.Get("/calendar/summary", h.GetCalendarSummary)
		r.Post("/calendar/add", h.AddCalendarItem)
	})
}

// GetEvents lists events for ?time_range= with optional ?tags=a,b.
func (h *DataHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	timeRange := r.URL.Query().Get("time_range")
	if timeRange == "" {
		timeRange = "today"
	}
	found, err := h.events.GetEvents(timeRange, queryList(r, "tags"))
	if err != nil {
		slog.Error("Failed to list events", "error", err, "time_range", timeRange)
		Error(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"events": found})
}

// ReloadEvents rereads the events seed file so edits show up without a restart.
func (h *DataHandler) ReloadEvents(w http.ResponseWriter, r *http.Request) {
	catalog := h.events.Reload()
	slog.Info("Events catalog reloaded", "count", len(catalog))
	JSON(w, http.StatusOK, map[string]int{"count": len(catalog)})
}

type recommendationView struct {
	Event  domain.Event `json:"event"`
	Reason string       `json:"reason"`
}

// GetRecommendations returns up to ?count= ranked events.
func (h *DataHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	count := clamp(queryInt(r, "count", 3), 1, 10)
	recs, err := h.rec.Recommend(r.Context(), count)
	if err != nil {
		slog.Error("Failed to build recommendations", "error", err)
		Error(w, http.StatusInternalServerError, "failed to build recommendations")
		return
	}
	out := make([]recommendationView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recommendationView{Event: rec.Event, Reason: rec.Reason})
	}
	JSON(w, http.StatusOK, map[string]interface{}{"recommendations": out})
}

// GetCalendarSummary lists items starting within ?hours= (default 24).
func (h *DataHandler) GetCalendarSummary(w http.ResponseWriter, r *http.Request) {
	hours := clamp(queryInt(r, "hours", 24), 1, 744)
	items, err := h.calendar.Summary(r.Context(), hours)
	if err != nil {
		slog.Error("Failed to summarize calendar", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load calendar")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"items": items, "hours_ahead": hours})
}

type addCalendarRequest struct {
	Title   string `json:"title"`
	TimeISO string `json:"time_iso"`
	Notes   string `json:"notes"`
}

// AddCalendarItem stores a new calendar item.
func (h *DataHandler) AddCalendarItem(w http.ResponseWriter, r *http.Request) {
	var req addCalendarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.TimeISO) == "" {
		Error(w, http.StatusBadRequest, "title and time_iso are required")
		return
	}

	id, err := h.calendar.Add(r.Context(), req.Title, req.TimeISO, req.Notes)
	if err != nil {
		slog.Error("Failed to add calendar item", "error", err)
		Error(w, http.StatusInternalServerError, "failed to add calendar item")
		return
	}
	JSON(w, http.StatusCreated, map[string]string{"id": id})
}
