// Package snapshot persists the most recent reading per station in SQLite so
// a restarted server can show data before its first remote query completes.
package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sen66-server/internal/telemetry"
)

//go:embed sql/load-snapshot.sql
var loadSnapshotSQL string

//go:embed sql/save-snapshot.sql
var saveSnapshotSQL string

//go:embed sql/list-snapshots.sql
var listSnapshotsSQL string

// Snapshot is one persisted row.
type Snapshot struct {
	Station string
	Reading telemetry.Reading
	SavedAt time.Time
}

type Repository interface {
	Load(ctx context.Context, station string) (telemetry.Reading, bool, error)
	Save(ctx context.Context, station string, r telemetry.Reading) error
	List(ctx context.Context) ([]Snapshot, error)
}

type repositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) Repository {
	return &repositoryImpl{db: db, now: time.Now}
}

func (r *repositoryImpl) Load(ctx context.Context, station string) (telemetry.Reading, bool, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, loadSnapshotSQL, station).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return telemetry.Reading{}, false, nil
	}
	if err != nil {
		return telemetry.Reading{}, false, fmt.Errorf("load snapshot %q: %w", station, err)
	}
	var out telemetry.Reading
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return telemetry.Reading{}, false, fmt.Errorf("decode snapshot %q: %w", station, err)
	}
	return out, true, nil
}

func (r *repositoryImpl) Save(ctx context.Context, station string, reading telemetry.Reading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	var readingTime any
	if !reading.Time.IsZero() {
		readingTime = reading.Time.UTC().Format(time.RFC3339Nano)
	}
	_, err = r.db.ExecContext(ctx, saveSnapshotSQL,
		station,
		readingTime,
		string(payload),
		r.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", station, err)
	}
	return nil
}

func (r *repositoryImpl) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, listSnapshotsSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close snapshot rows", "error", err)
		}
	}()

	var out []Snapshot
	for rows.Next() {
		var (
			s           Snapshot
			readingTime sql.NullString
			payload     string
			savedAt     string
		)
		if err := rows.Scan(&s.Station, &readingTime, &payload, &savedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &s.Reading); err != nil {
			return nil, fmt.Errorf("decode snapshot %q: %w", s.Station, err)
		}
		if s.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
			return nil, fmt.Errorf("parse saved_at %q: %w", savedAt, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StationStore binds a Repository to one station. It is the durable tier of
// the latest-reading cache lane.
type StationStore struct {
	repo    Repository
	station string
}

func ForStation(repo Repository, station string) *StationStore {
	return &StationStore{repo: repo, station: station}
}

func (s *StationStore) Load(ctx context.Context) (telemetry.Reading, bool, error) {
	return s.repo.Load(ctx, s.station)
}

func (s *StationStore) Save(ctx context.Context, r telemetry.Reading) error {
	return s.repo.Save(ctx, s.station, r)
}
