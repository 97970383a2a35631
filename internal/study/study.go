// Package study runs Pomodoro-style study session timers.
package study

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

// DefaultDurationMin is the session length used when none is given.
const DefaultDurationMin = 25

// Service starts and stops study sessions persisted in the repository.
type Service struct {
	repo store.Repository
	now  func() time.Time
}

// NewService creates a study session service.
func NewService(repo store.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Start begins a new session on topic lasting durationMin minutes.
func (s *Service) Start(ctx context.Context, topic string, durationMin int) (*domain.StudySession, error) {
	if durationMin <= 0 {
		durationMin = DefaultDurationMin
	}
	now := s.now()
	session := &domain.StudySession{
		ID:          "study_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6],
		Topic:       topic,
		DurationMin: durationMin,
		StartTime:   now,
		EndTime:     now.Add(time.Duration(durationMin) * time.Minute),
		Active:      true,
	}
	if err := s.repo.CreateStudySession(ctx, session); err != nil {
		return nil, fmt.Errorf("create study session: %w", err)
	}
	return session, nil
}

// Stop ends the session and returns the elapsed minutes.
func (s *Service) Stop(ctx context.Context, id string) (float64, error) {
	session, err := s.repo.GetStudySession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("Session %s not found", id)
	}
	if err != nil {
		return 0, fmt.Errorf("get study session: %w", err)
	}
	if !session.Active {
		return 0, fmt.Errorf("Session %s already stopped", id)
	}

	elapsed := session.Stop(s.now())
	if err := s.repo.UpdateStudySession(ctx, session); err != nil {
		return 0, fmt.Errorf("update study session: %w", err)
	}
	return elapsed, nil
}

// Active lists sessions that are still running.
func (s *Service) Active(ctx context.Context) ([]*domain.StudySession, error) {
	return s.repo.ListActiveStudySessions(ctx)
}
