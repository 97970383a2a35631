package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vuddy-labs/vuddy/internal/domain"
	"github.com/vuddy-labs/vuddy/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	profileKey     = "default"
	writeRetries   = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writers to avoid SQLITE_BUSY under WAL
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS profiles (
		profile_key TEXT PRIMARY KEY,
		profile_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS calendar_items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		start_iso TEXT NOT NULL,
		end_iso TEXT NOT NULL,
		start_unix INTEGER,
		notes TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_calendar_start ON calendar_items(start_unix);

	CREATE TABLE IF NOT EXISTS study_sessions (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		duration_min INTEGER NOT NULL,
		start_unix_ms INTEGER NOT NULL,
		end_unix_ms INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		stopped_unix_ms INTEGER,
		elapsed_min REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_study_active ON study_sessions(active);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// withWriteRetry runs fn under the write lock, retrying SQLite busy/locked
// errors with exponential backoff.
func (s *SQLiteStore) withWriteRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < writeRetries; i++ {
		s.writeMu.Lock()
		err = fn()
		s.writeMu.Unlock()
		if err == nil || !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i == writeRetries-1 {
			break
		}
		delay := writeBaseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("SQLite write conflict, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, writeRetries, err)
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetProfile returns the stored profile, or the default profile if none was saved.
func (s *SQLiteStore) GetProfile(ctx context.Context) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT profile_json FROM profiles WHERE profile_key = ?`, profileKey)

	var raw string
	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultProfile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile row: %w", err)
	}

	profile := domain.DefaultProfile()
	if err := json.Unmarshal([]byte(raw), profile); err != nil {
		slog.Warn("Invalid stored profile, using default", "error", err)
		return domain.DefaultProfile(), nil
	}
	profile.Normalize()
	return profile, nil
}

// SaveProfile replaces the stored profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, profile *domain.Profile) error {
	profile.Normalize()
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	query := `
	INSERT INTO profiles (profile_key, profile_json, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(profile_key) DO UPDATE SET
		profile_json = excluded.profile_json,
		updated_at = excluded.updated_at`

	return s.withWriteRetry(ctx, "save profile", func() error {
		if _, err := s.db.ExecContext(ctx, query, profileKey, string(data), time.Now().Unix()); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		return nil
	})
}

// ListCalendarItems returns items whose start falls within [from, to], ordered by start.
func (s *SQLiteStore) ListCalendarItems(ctx context.Context, from, to time.Time) ([]domain.CalendarItem, error) {
	query := `
		SELECT id, title, start_iso, end_iso, notes
		FROM calendar_items
		WHERE start_unix IS NOT NULL AND start_unix >= ? AND start_unix <= ?
		ORDER BY start_unix ASC`

	rows, err := s.db.QueryContext(ctx, query, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("query calendar items: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close calendar rows", "error", closeErr)
		}
	}()

	items := []domain.CalendarItem{}
	for rows.Next() {
		var item domain.CalendarItem
		if err := rows.Scan(&item.ID, &item.Title, &item.Start, &item.End, &item.Notes); err != nil {
			return nil, fmt.Errorf("scan calendar row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calendar items: %w", err)
	}
	return items, nil
}

// AddCalendarItem stores a new calendar item.
func (s *SQLiteStore) AddCalendarItem(ctx context.Context, item domain.CalendarItem) error {
	var startUnix interface{}
	if t, err := domain.ParseISO(item.Start); err == nil {
		startUnix = t.Unix()
	}

	query := `
	INSERT INTO calendar_items (id, title, start_iso, end_iso, start_unix, notes, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	return s.withWriteRetry(ctx, "add calendar item", func() error {
		_, err := s.db.ExecContext(ctx, query,
			item.ID, item.Title, item.Start, item.End, startUnix, item.Notes, time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert calendar item: %w", err)
		}
		return nil
	})
}

// CreateStudySession stores a new study session.
func (s *SQLiteStore) CreateStudySession(ctx context.Context, session *domain.StudySession) error {
	query := `
	INSERT INTO study_sessions (id, topic, duration_min, start_unix_ms, end_unix_ms, active)
	VALUES (?, ?, ?, ?, ?, ?)`

	return s.withWriteRetry(ctx, "create study session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			session.ID, session.Topic, session.DurationMin,
			session.StartTime.UnixMilli(), session.EndTime.UnixMilli(), session.Active,
		)
		if err != nil {
			return fmt.Errorf("insert study session: %w", err)
		}
		return nil
	})
}

// GetStudySession retrieves a study session by ID.
func (s *SQLiteStore) GetStudySession(ctx context.Context, id string) (*domain.StudySession, error) {
	query := `
		SELECT id, topic, duration_min, start_unix_ms, end_unix_ms, active, stopped_unix_ms, elapsed_min
		FROM study_sessions WHERE id = ?`

	session, err := scanStudySession(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan study session: %w", err)
	}
	return session, nil
}

// UpdateStudySession persists the mutable fields of a study session.
func (s *SQLiteStore) UpdateStudySession(ctx context.Context, session *domain.StudySession) error {
	var stopped interface{}
	if session.StoppedAt != nil {
		stopped = session.StoppedAt.UnixMilli()
	}

	query := `UPDATE study_sessions SET active = ?, stopped_unix_ms = ?, elapsed_min = ? WHERE id = ?`

	return s.withWriteRetry(ctx, "update study session", func() error {
		result, err := s.db.ExecContext(ctx, query, session.Active, stopped, session.ElapsedMin, session.ID)
		if err != nil {
			return fmt.Errorf("update study session: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListActiveStudySessions returns sessions that have not been stopped.
func (s *SQLiteStore) ListActiveStudySessions(ctx context.Context) ([]*domain.StudySession, error) {
	query := `
		SELECT id, topic, duration_min, start_unix_ms, end_unix_ms, active, stopped_unix_ms, elapsed_min
		FROM study_sessions WHERE active = 1 ORDER BY start_unix_ms ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active study sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close study session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.StudySession
	for rows.Next() {
		session, err := scanStudySession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan study session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate study sessions: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudySession(row rowScanner) (*domain.StudySession, error) {
	var session domain.StudySession
	var startMs, endMs int64
	var stoppedMs sql.NullInt64

	if err := row.Scan(
		&session.ID, &session.Topic, &session.DurationMin,
		&startMs, &endMs, &session.Active, &stoppedMs, &session.ElapsedMin,
	); err != nil {
		return nil, err
	}

	session.StartTime = time.UnixMilli(startMs)
	session.EndTime = time.UnixMilli(endMs)
	if stoppedMs.Valid {
		ts := time.UnixMilli(stoppedMs.Int64)
		session.StoppedAt = &ts
	}
	return &session, nil
}
