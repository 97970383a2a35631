package tools

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/vuddy-labs/vuddy/internal/domain"
	"github.com/vuddy-labs/vuddy/internal/events"
)

// Built-in tool names.
const (
	GetEvents          = "get_events"
	GetRecommendations = "get_recommendations"
	GetCalendarSummary = "get_calendar_summary"
	AddCalendarItem    = "add_calendar_item"
	StartStudySession  = "start_study_session"
	StopStudySession   = "stop_study_session"
	SpotifySearchLink  = "spotify_search_link"
)

// EventFinder looks up catalog events.
type EventFinder interface {
	GetEvents(timeRange string, tags []string) ([]domain.Event, error)
}

// Recommender ranks events for the user.
type Recommender interface {
	Recommend(ctx context.Context, count int) ([]events.Recommendation, error)
}

// Calendar reads and writes calendar items.
type Calendar interface {
	Summary(ctx context.Context, hoursAhead int) ([]domain.CalendarItem, error)
	Add(ctx context.Context, title, timeISO, notes string) (string, error)
}

// StudyTimer runs study sessions.
type StudyTimer interface {
	Start(ctx context.Context, topic string, durationMin int) (*domain.StudySession, error)
	Stop(ctx context.Context, id string) (float64, error)
}

// Services are the collaborators behind the built-in tools.
type Services struct {
	Events      EventFinder
	Recommender Recommender
	Calendar    Calendar
	Study       StudyTimer
}

// Payloads returned by the built-in tools.
type (
	EventsPayload struct {
		Events []domain.Event `json:"events"`
	}
	RecommendationsPayload struct {
		Events  []domain.Event `json:"events"`
		Reasons []string       `json:"reasons"`
	}
	CalendarSummaryPayload struct {
		Events []domain.CalendarItem `json:"events"`
	}
	CalendarAddPayload struct {
		ID string `json:"id"`
	}
	StudyStartPayload struct {
		SessionID string `json:"session_id"`
		EndTime   string `json:"end_time"`
	}
	StudyStopPayload struct {
		ElapsedMin float64 `json:"elapsed_min"`
	}
	SpotifyPayload struct {
		URL         string `json:"url"`
		DisplayText string `json:"display_text"`
	}
)

// Builtin returns the seven campus tools wired to svc.
func Builtin(svc Services) []Provider {
	return []Provider{
		Func{
			ToolName:    GetEvents,
			Description: "Get campus events happening around a time range",
			Parameters: object(map[string]any{
				"time_range": prop("string", "e.g. 'tonight', 'tomorrow', 'this weekend'"),
				"tags": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Filter by tags like 'social', 'academic', 'sports'",
				},
			}, "time_range"),
			Deadline: 2 * time.Second,
			Run: func(_ context.Context, args Args) (any, error) {
				evs, err := svc.Events.GetEvents(args.String("time_range", "today"), args.Strings("tags"))
				if err != nil {
					return nil, err
				}
				return EventsPayload{Events: evs}, nil
			},
		},
		Func{
			ToolName:    GetRecommendations,
			Description: "Get personalized event recommendations based on user interests",
			Parameters: object(map[string]any{
				"count": withDefault(prop("integer", "Number of recommendations to return"), 3),
			}),
			Deadline: 3 * time.Second,
			Run: func(ctx context.Context, args Args) (any, error) {
				count := clamp(args.Int("count", 3), 1, 10)
				recs, err := svc.Recommender.Recommend(ctx, count)
				if err != nil {
					return nil, err
				}
				out := RecommendationsPayload{Events: []domain.Event{}, Reasons: []string{}}
				for _, r := range recs {
					out.Events = append(out.Events, r.Event)
					out.Reasons = append(out.Reasons, r.Reason)
				}
				return out, nil
			},
		},
		Func{
			ToolName:    GetCalendarSummary,
			Description: "Get upcoming calendar events",
			Parameters: object(map[string]any{
				"hours_ahead": withDefault(prop("integer", "How many hours ahead to look"), 24),
			}),
			Deadline: 2 * time.Second,
			Run: func(ctx context.Context, args Args) (any, error) {
				items, err := svc.Calendar.Summary(ctx, clamp(args.Int("hours_ahead", 24), 1, 24*31))
				if err != nil {
					return nil, err
				}
				return CalendarSummaryPayload{Events: items}, nil
			},
		},
		Func{
			ToolName:    AddCalendarItem,
			Description: "Add a reminder or event to the calendar",
			Parameters: object(map[string]any{
				"title":    map[string]any{"type": "string"},
				"time_iso": prop("string", "ISO 8601 datetime"),
				"notes":    map[string]any{"type": "string"},
			}, "title", "time_iso"),
			Deadline: 2 * time.Second,
			Run: func(ctx context.Context, args Args) (any, error) {
				title, err := args.Require("title")
				if err != nil {
					return nil, err
				}
				when, err := args.Require("time_iso")
				if err != nil {
					return nil, err
				}
				id, err := svc.Calendar.Add(ctx, title, when, args.String("notes", ""))
				if err != nil {
					return nil, err
				}
				return CalendarAddPayload{ID: id}, nil
			},
		},
		Func{
			ToolName:    StartStudySession,
			Description: "Start a Pomodoro-style study session",
			Parameters: object(map[string]any{
				"topic":        map[string]any{"type": "string"},
				"duration_min": withDefault(prop("integer", "Duration in minutes"), 25),
			}, "topic"),
			Deadline: time.Second,
			Run: func(ctx context.Context, args Args) (any, error) {
				topic, err := args.Require("topic")
				if err != nil {
					return nil, err
				}
				session, err := svc.Study.Start(ctx, topic, clamp(args.Int("duration_min", 25), 1, 240))
				if err != nil {
					return nil, err
				}
				return StudyStartPayload{SessionID: session.ID, EndTime: domain.FormatISO(session.EndTime)}, nil
			},
		},
		Func{
			ToolName:    StopStudySession,
			Description: "End an active study session",
			Parameters: object(map[string]any{
				"session_id": map[string]any{"type": "string"},
			}, "session_id"),
			Deadline: time.Second,
			Run: func(ctx context.Context, args Args) (any, error) {
				id, err := args.Require("session_id")
				if err != nil {
					return nil, err
				}
				elapsed, err := svc.Study.Stop(ctx, id)
				if err != nil {
					return nil, err
				}
				return StudyStopPayload{ElapsedMin: elapsed}, nil
			},
		},
		Func{
			ToolName:    SpotifySearchLink,
			Description: "Generate a Spotify search URL (no OAuth needed)",
			Parameters: object(map[string]any{
				"query": map[string]any{"type": "string"},
			}, "query"),
			Deadline: time.Second,
			Run: func(_ context.Context, args Args) (any, error) {
				return SpotifyLink(args.String("query", ""))
			},
		},
	}
}

// SpotifyLink builds a Spotify search URL for query.
func SpotifyLink(query string) (SpotifyPayload, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SpotifyPayload{}, errors.New("empty query")
	}
	return SpotifyPayload{
		URL:         "https://open.spotify.com/search/" + url.PathEscape(query),
		DisplayText: "Open in Spotify: " + query,
	}, nil
}

func object(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	if required == nil {
		required = []string{}
	}
	return map[string]any{"type": "object", "properties": properties, "required": required}
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func withDefault(p map[string]any, v any) map[string]any {
	p["default"] = v
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
