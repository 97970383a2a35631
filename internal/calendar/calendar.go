// Package calendar manages the local reminder calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vuddy-labs/vuddy/internal/domain"
	"github.com/vuddy-labs/vuddy/internal/store"
)

// Service reads and writes calendar items through the repository.
type Service struct {
	repo store.Repository
	now  func() time.Time
}

// NewService creates a calendar service.
func NewService(repo store.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Summary returns items starting between now and hoursAhead hours from now,
// earliest first.
func (s *Service) Summary(ctx context.Context, hoursAhead int) ([]domain.CalendarItem, error) {
	now := s.now()
	items, err := s.repo.ListCalendarItems(ctx, now, now.Add(time.Duration(hoursAhead)*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list calendar items: %w", err)
	}
	return items, nil
}

// Add stores a new item starting at timeISO and returns its ID. When timeISO
// parses, the item ends an hour later; otherwise the end mirrors the start.
func (s *Service) Add(ctx context.Context, title, timeISO, notes string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("title is required")
	}
	if strings.TrimSpace(timeISO) == "" {
		return "", errors.New("time_iso is required")
	}

	end := timeISO
	if start, err := domain.ParseISO(timeISO); err == nil {
		end = domain.FormatISO(start.Add(time.Hour))
	}

	item := domain.CalendarItem{
		ID:    "cal_" + shortID(8),
		Title: title,
		Start: timeISO,
		End:   end,
		Notes: notes,
	}
	if err := s.repo.AddCalendarItem(ctx, item); err != nil {
		return "", fmt.Errorf("add calendar item: %w", err)
	}
	return item.ID, nil
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
