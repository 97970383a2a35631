// Package events serves the seeded campus event catalog and personalized
// recommendations drawn from it.
package events

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vuddy-labs/vuddy/internal/domain"
)

// Service loads events from a JSON seed file and filters them by time window and tags.
type Service struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	cached []domain.Event
	loaded bool
}

// NewService creates an events service reading from the seed file at path.
// The file is loaded lazily on first use.
func NewService(path string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{path: path, logger: logger, now: time.Now}
}

// Load returns the cached catalog, reading the seed file on first call.
// A missing or malformed file yields an empty catalog.
func (s *Service) Load() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cached
	}

	s.cached = []domain.Event{}
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Events seed file not found, using empty list", "path", s.path)
		return s.cached
	}
	if err != nil {
		s.logger.Warn("Failed to read events seed file", "path", s.path, "error", err)
		return s.cached
	}
	if err := json.Unmarshal(data, &s.cached); err != nil {
		s.logger.Warn("Invalid JSON in events seed file", "path", s.path, "error", err)
		s.cached = []domain.Event{}
	}
	return s.cached
}

// Reload drops the cache and reads the seed file again.
func (s *Service) Reload() []domain.Event {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
	return s.Load()
}

// GetEvents returns events overlapping the named time range. When tags is
// non-empty only events sharing at least one tag are kept.
func (s *Service) GetEvents(timeRange string, tags []string) ([]domain.Event, error) {
	start, end := ParseTimeRange(timeRange, s.now())

	wanted := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		wanted[t] = struct{}{}
	}

	filtered := []domain.Event{}
	for _, ev := range s.Load() {
		evStart, err := domain.ParseISO(ev.Start)
		if err != nil {
			continue
		}
		evEnd, err := domain.ParseISO(ev.End)
		if err != nil {
			continue
		}
		if evEnd.Before(start) || evStart.After(end) {
			continue
		}
		if len(wanted) > 0 && !hasAnyTag(ev.Tags, wanted) {
			continue
		}
		if ev.Tags == nil {
			ev.Tags = []string{}
		}
		filtered = append(filtered, ev)
	}
	return filtered, nil
}

func hasAnyTag(tags []string, wanted map[string]struct{}) bool {
	for _, t := range tags {
		if _, ok := wanted[t]; ok {
			return true
		}
	}
	return false
}

// ParseTimeRange maps a natural-language range onto a [start, end] window
// relative to now. Unknown phrases mean the next 24 hours.
func ParseTimeRange(timeRange string, now time.Time) (time.Time, time.Time) {
	day := func(t time.Time) (time.Time, time.Time) {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location()),
			time.Date(y, m, d, 23, 59, 59, 0, t.Location())
	}

	switch strings.ToLower(strings.TrimSpace(timeRange)) {
	case "tonight", "this evening":
		y, m, d := now.Date()
		return time.Date(y, m, d, 17, 0, 0, 0, now.Location()),
			time.Date(y, m, d, 23, 59, 59, 0, now.Location())
	case "tomorrow":
		return day(now.AddDate(0, 0, 1))
	case "this weekend", "weekend":
		daysUntilSaturday := (int(time.Saturday) - int(now.Weekday()) + 7) % 7
		saturday := now.AddDate(0, 0, daysUntilSaturday)
		start, _ := day(saturday)
		_, end := day(saturday.AddDate(0, 0, 1))
		return start, end
	case "today":
		return day(now)
	default:
		return now, now.Add(24 * time.Hour)
	}
}
