package events

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vuddy-labs/vuddy/internal/domain"
)

// ProfileSource provides the user interests recommendations are scored against.
type ProfileSource interface {
	GetProfile(ctx context.Context) (*domain.Profile, error)
}

// Recommendation pairs an event with a human-readable reason.
type Recommendation struct {
	Event  domain.Event
	Reason string
}

// Recommender scores upcoming events by keyword overlap with the user's interests.
type Recommender struct {
	events   *Service
	profiles ProfileSource
}

// NewRecommender creates a recommender over the given catalog and profile source.
func NewRecommender(events *Service, profiles ProfileSource) *Recommender {
	return &Recommender{events: events, profiles: profiles}
}

// Recommend returns up to count events from today, tomorrow and the coming
// weekend, best interest match first.
func (r *Recommender) Recommend(ctx context.Context, count int) ([]Recommendation, error) {
	profile, err := r.profiles.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	interests := make(map[string]struct{}, len(profile.Interests))
	for _, i := range profile.Interests {
		interests[strings.ToLower(i)] = struct{}{}
	}

	pool, err := r.pool()
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 || count <= 0 {
		return []Recommendation{}, nil
	}

	type scored struct {
		score int
		rec   Recommendation
	}
	ranked := make([]scored, 0, len(pool))
	for _, ev := range pool {
		overlap := overlapWith(keywords(ev), interests)
		score := len(overlap)
		if len(interests) == 0 {
			score = 1
		}
		ranked = append(ranked, scored{
			score: score,
			rec:   Recommendation{Event: ev, Reason: reasonFor(ev, overlap, len(interests) > 0)},
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if count > len(ranked) {
		count = len(ranked)
	}
	out := make([]Recommendation, 0, count)
	for _, s := range ranked[:count] {
		out = append(out, s.rec)
	}
	return out, nil
}

// pool gathers today, tomorrow and weekend events deduplicated by title and start.
func (r *Recommender) pool() ([]domain.Event, error) {
	var pool []domain.Event
	seen := make(map[string]struct{})
	for _, tr := range []string{"today", "tomorrow", "this weekend"} {
		evs, err := r.events.GetEvents(tr, nil)
		if err != nil {
			return nil, err
		}
		for _, ev := range evs {
			key := ev.Title + "\x00" + ev.Start
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pool = append(pool, ev)
		}
	}
	return pool, nil
}

// keywords are the lower-cased tags plus title and description words longer
// than three characters.
func keywords(ev domain.Event) map[string]struct{} {
	kw := make(map[string]struct{})
	for _, t := range ev.Tags {
		kw[strings.ToLower(t)] = struct{}{}
	}
	for _, field := range []string{ev.Title, ev.Description} {
		for _, w := range strings.Fields(strings.ToLower(field)) {
			if len(w) > 3 {
				kw[w] = struct{}{}
			}
		}
	}
	return kw
}

func overlapWith(kw, interests map[string]struct{}) []string {
	var out []string
	for i := range interests {
		if _, ok := kw[i]; ok {
			out = append(out, i)
		}
	}
	sort.Strings(out)
	return out
}

func reasonFor(ev domain.Event, overlap []string, hasInterests bool) string {
	if len(overlap) > 0 {
		if len(overlap) > 3 {
			overlap = overlap[:3]
		}
		return "Matches your interest in " + strings.Join(overlap, ", ")
	}
	if !hasInterests {
		if len(ev.Tags) > 0 {
			return fmt.Sprintf("Popular %s event on campus", ev.Tags[0])
		}
		return "Happening soon on campus"
	}
	title := ev.Title
	if title == "" {
		title = "this event"
	}
	return "You might enjoy " + title
}
