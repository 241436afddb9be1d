package db

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sen66-server/internal/config"
)

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		dsn  string
		path string
		want string
	}{
		{name: "explicit dsn wins", dsn: "file::memory:?cache=shared", path: "ignored.db", want: "file::memory:?cache=shared"},
		{name: "plain path", path: filepath.Join(dir, "a.db"), want: "file:" + filepath.Join(dir, "a.db") + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"},
		{name: "file uri with query", path: "file:x.db?mode=rwc", want: "file:x.db?mode=rwc&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildDSN(tt.dsn, tt.path)
			if err != nil {
				t.Fatalf("BuildDSN: %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildDSN = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildDSN_createsParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "app.db")
	if _, err := BuildDSN("", path); err != nil {
		t.Fatalf("BuildDSN: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent dir not created: %v", err)
	}
}

func TestOpen_debugUsesLoggingConnector(t *testing.T) {
	handler := &captureHandler{}
	cfg := config.Config{
		LogLevel:           slog.LevelDebug,
		SQLiteDriver:       "sqlite3",
		SQLitePath:         filepath.Join(t.TempDir(), "app.db"),
		SQLiteMaxOpenConns: 1,
		SQLiteMaxIdleConns: 1,
	}

	conn, err := Open(context.Background(), cfg, slog.New(handler))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = Close(conn) }()

	if _, err := conn.Exec(`CREATE TABLE t (id INTEGER)`); err != nil {
		t.Fatalf("exec: %v", err)
	}
	recs := handler.recordsFor(t, "sql")
	if len(recs) == 0 {
		t.Fatal("no sql records logged in debug mode")
	}
	if !strings.Contains(recs[len(recs)-1]["sql"].String(), "CREATE TABLE t") {
		t.Errorf("sql = %q", recs[len(recs)-1]["sql"].String())
	}
}

func TestOpen_infoDoesNotLogSQL(t *testing.T) {
	handler := &captureHandler{}
	cfg := config.Config{
		LogLevel:     slog.LevelInfo,
		SQLiteDriver: "sqlite3",
		SQLitePath:   filepath.Join(t.TempDir(), "app.db"),
	}

	conn, err := Open(context.Background(), cfg, slog.New(handler))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = Close(conn) }()

	if _, err := conn.Exec(`SELECT 1`); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if recs := handler.recordsFor(t, "sql"); len(recs) != 0 {
		t.Errorf("got %d sql records at info level", len(recs))
	}
}

func TestClose_nil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) = %v", err)
	}
}
