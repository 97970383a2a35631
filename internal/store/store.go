// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vuddy-labs/vuddy/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the interface for persisting profile, calendar and study data.
type Repository interface {
	// GetProfile returns the stored profile, or the default profile if none was saved.
	GetProfile(ctx context.Context) (*domain.Profile, error)

	// SaveProfile replaces the stored profile.
	SaveProfile(ctx context.Context, profile *domain.Profile) error

	// ListCalendarItems returns items whose start falls within [from, to], ordered by start.
	ListCalendarItems(ctx context.Context, from, to time.Time) ([]domain.CalendarItem, error)

	// AddCalendarItem stores a new calendar item.
	AddCalendarItem(ctx context.Context, item domain.CalendarItem) error

	// CreateStudySession stores a new study session.
	CreateStudySession(ctx context.Context, session *domain.StudySession) error

	// GetStudySession retrieves a study session by ID. Returns ErrNotFound if absent.
	GetStudySession(ctx context.Context, id string) (*domain.StudySession, error)

	// UpdateStudySession persists the mutable fields of a study session.
	UpdateStudySession(ctx context.Context, session *domain.StudySession) error

	// ListActiveStudySessions returns sessions that have not been stopped.
	ListActiveStudySessions(ctx context.Context) ([]*domain.StudySession, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
