// Package profile exposes the user's profile to the assistant and the REST API.
package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vuddy-labs/vuddy/internal/domain"
	"github.com/vuddy-labs/vuddy/internal/store"
)

// Update is a partial profile change. Nil fields are left untouched.
type Update struct {
	Interests      []string          `json:"interests,omitempty"`
	PreferredTimes []string          `json:"preferred_times,omitempty"`
	StudyHabits    map[string]string `json:"study_habits,omitempty"`
	Preferences    map[string]string `json:"preferences,omitempty"`
}

// Service loads and updates the single stored profile.
type Service struct {
	repo   store.Repository
	logger *slog.Logger
}

// NewService creates a profile service.
func NewService(repo store.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// GetProfile returns the stored profile.
func (s *Service) GetProfile(ctx context.Context) (*domain.Profile, error) {
	return s.repo.GetProfile(ctx)
}

// Update merges the given fields into the stored profile and returns the result.
// Present fields replace the stored value wholesale.
func (s *Service) Update(ctx context.Context, u Update) (*domain.Profile, error) {
	p, err := s.repo.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if u.Interests != nil {
		p.Interests = u.Interests
	}
	if u.PreferredTimes != nil {
		p.PreferredTimes = u.PreferredTimes
	}
	if u.StudyHabits != nil {
		p.StudyHabits = u.StudyHabits
	}
	if u.Preferences != nil {
		p.Preferences = u.Preferences
	}
	if err := s.repo.SaveProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	s.logger.Info("Profile updated", "interests", len(p.Interests))
	return p, nil
}

// Context renders the profile for the system prompt.
func (s *Service) Context(ctx context.Context) (string, error) {
	p, err := s.repo.GetProfile(ctx)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}
	return p.PromptContext(), nil
}
