package calendar

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vuddy-labs/vuddy/internal/domain"
	"github.com/vuddy-labs/vuddy/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return NewService(repo)
}

func TestAddAndSummary(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	soon := domain.FormatISO(time.Now().Add(2 * time.Hour))
	later := domain.FormatISO(time.Now().Add(72 * time.Hour))

	id, err := svc.Add(ctx, "Office hours", soon, "bring laptop")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !strings.HasPrefix(id, "cal_") || len(id) != len("cal_")+8 {
		t.Errorf("Unexpected id format %q", id)
	}
	if _, err := svc.Add(ctx, "Far away", later, ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	items, err := svc.Summary(ctx, 24)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != id {
		t.Fatalf("Expected only the nearby item, got %+v", items)
	}

	start, _ := domain.ParseISO(items[0].Start)
	end, err := domain.ParseISO(items[0].End)
	if err != nil {
		t.Fatalf("End should parse: %v", err)
	}
	if end.Sub(start) != time.Hour {
		t.Errorf("Expected one hour duration, got %v", end.Sub(start))
	}
}

func TestAddUnparseableTimeKeepsRawEnd(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	if _, err := svc.Add(context.Background(), "Someday", "next tuesday", ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	items, err := svc.Summary(context.Background(), 24*365)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Unparseable items should not appear in summaries, got %+v", items)
	}
}

func TestAddRequiresTitle(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	if _, err := svc.Add(context.Background(), "  ", "2026-01-01T10:00:00", ""); err == nil {
		t.Fatal("Expected error for empty title")
	}
}
