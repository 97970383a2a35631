package shared

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestIsSQLiteConflictError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("constraint failed"), false},
		{errors.New("SQLITE_BUSY: cannot commit"), true},
		{fmt.Errorf("insert: %w", errors.New("database is locked (5)")), true},
	}
	for _, tc := range cases {
		if got := IsSQLiteConflictError(tc.err); got != tc.want {
			t.Errorf("IsSQLiteConflictError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func openNoWait(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(0)")
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Two connections racing for the write lock must yield a driver error that
// classifies as busy, both bare and wrapped.
func TestIsSQLiteConflictErrorFromDriver(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), "busy.db")
	holder := openNoWait(t, path)
	writer := openNoWait(t, path)

	if _, err := holder.ExecContext(ctx, `CREATE TABLE calendar (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	tx, err := holder.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `INSERT INTO calendar (id) VALUES ('cal_1')`); err != nil {
		t.Fatalf("insert in holder: %v", err)
	}

	_, err = writer.ExecContext(ctx, `INSERT INTO calendar (id) VALUES ('cal_2')`)
	if err == nil {
		t.Fatal("Expected second writer to fail while the lock is held")
	}
	if !IsSQLiteBusyError(err) {
		t.Errorf("IsSQLiteBusyError(%v) = false, want true", err)
	}
	if !IsSQLiteConflictError(fmt.Errorf("add calendar item: %w", err)) {
		t.Errorf("wrapped driver error %v not classified as conflict", err)
	}
}
