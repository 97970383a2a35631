package events

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vuddy-labs/vuddy/internal/domain"
)

// Wednesday afternoon.
var fixedNow = time.Date(2026, 3, 4, 14, 0, 0, 0, time.Local)

func writeSeed(t *testing.T, evs []domain.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events_seed.json")
	data, err := json.Marshal(evs)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func newTestService(t *testing.T, evs []domain.Event) *Service {
	t.Helper()
	svc := NewService(writeSeed(t, evs), nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func at(day, hour int) string {
	return domain.FormatISO(time.Date(2026, 3, day, hour, 0, 0, 0, time.Local))
}

func TestGetEventsTonight(t *testing.T) {
	svc := newTestService(t, []domain.Event{
		{Title: "Open Mic", Start: at(4, 19), End: at(4, 21), Tags: []string{"social", "music"}},
		{Title: "Morning Yoga", Start: at(4, 7), End: at(4, 8), Tags: []string{"wellness"}},
		{Title: "Broken", Start: "soon", End: "later"},
	})

	got, err := svc.GetEvents("tonight", nil)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Open Mic" {
		t.Fatalf("Expected only Open Mic, got %+v", got)
	}
}

func TestGetEventsTagFilter(t *testing.T) {
	svc := newTestService(t, []domain.Event{
		{Title: "Open Mic", Start: at(4, 19), End: at(4, 21), Tags: []string{"social"}},
		{Title: "Study Jam", Start: at(4, 18), End: at(4, 20), Tags: []string{"academic"}},
	})

	got, err := svc.GetEvents("today", []string{"academic"})
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Study Jam" {
		t.Fatalf("Expected only Study Jam, got %+v", got)
	}
}

func TestLoadMissingSeedIsEmpty(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "missing.json"), nil)
	if got := svc.Load(); len(got) != 0 {
		t.Fatalf("Expected empty catalog, got %d events", len(got))
	}
}

func TestReloadPicksUpSeedChanges(t *testing.T) {
	path := writeSeed(t, []domain.Event{{Title: "Open Mic", Start: at(4, 19), End: at(4, 21)}})
	svc := NewService(path, nil)
	if got := svc.Load(); len(got) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(got))
	}

	data, err := json.Marshal([]domain.Event{
		{Title: "Open Mic", Start: at(4, 19), End: at(4, 21)},
		{Title: "Trivia", Start: at(4, 20), End: at(4, 22)},
	})
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("rewrite seed: %v", err)
	}

	if got := svc.Load(); len(got) != 1 {
		t.Fatalf("Load should serve the cache until reload, got %d", len(got))
	}
	if got := svc.Reload(); len(got) != 2 || got[1].Title != "Trivia" {
		t.Fatalf("Expected reloaded catalog with Trivia, got %+v", got)
	}
	if got := svc.Load(); len(got) != 2 {
		t.Fatalf("Expected cache to hold reloaded catalog, got %d", len(got))
	}
}

func TestParseTimeRange(t *testing.T) {
	start, end := ParseTimeRange("this weekend", fixedNow)
	if start.Weekday() != time.Saturday || start.Day() != 7 {
		t.Errorf("Expected weekend to start Saturday the 7th, got %v", start)
	}
	if end.Weekday() != time.Sunday || end.Hour() != 23 {
		t.Errorf("Expected weekend to end late Sunday, got %v", end)
	}

	start, end = ParseTimeRange("whenever", fixedNow)
	if !start.Equal(fixedNow) || end.Sub(start) != 24*time.Hour {
		t.Errorf("Expected next 24h default, got %v - %v", start, end)
	}
}

type staticProfiles struct{ p *domain.Profile }

func (s staticProfiles) GetProfile(context.Context) (*domain.Profile, error) { return s.p, nil }

func TestRecommendRanksByInterestOverlap(t *testing.T) {
	svc := newTestService(t, []domain.Event{
		{Title: "Chess Club", Start: at(4, 18), End: at(4, 19), Tags: []string{"games"}},
		{Title: "Jazz Night", Start: at(5, 20), End: at(5, 22), Tags: []string{"music"}, Description: "live music downtown"},
		{Title: "Jazz Night", Start: at(5, 20), End: at(5, 22), Tags: []string{"music"}},
	})
	profile := domain.DefaultProfile()
	profile.Interests = []string{"Music"}

	recs, err := NewRecommender(svc, staticProfiles{profile}).Recommend(context.Background(), 3)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 deduplicated recommendations, got %d", len(recs))
	}
	if recs[0].Event.Title != "Jazz Night" {
		t.Errorf("Expected Jazz Night first, got %s", recs[0].Event.Title)
	}
	if recs[0].Reason != "Matches your interest in music" {
		t.Errorf("Unexpected reason %q", recs[0].Reason)
	}
	if recs[1].Reason != "You might enjoy Chess Club" {
		t.Errorf("Unexpected reason %q", recs[1].Reason)
	}
}

func TestRecommendWithoutInterests(t *testing.T) {
	svc := newTestService(t, []domain.Event{
		{Title: "Chess Club", Start: at(4, 18), End: at(4, 19), Tags: []string{"games"}},
	})

	recs, err := NewRecommender(svc, staticProfiles{domain.DefaultProfile()}).Recommend(context.Background(), 3)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Reason != "Popular games event on campus" {
		t.Fatalf("Unexpected recommendations: %+v", recs)
	}
}
