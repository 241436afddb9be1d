package snapshot

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sen66-server/internal/db/migrate"
	"sen66-server/internal/telemetry"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := migrate.Run(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func ptr(v float64) *float64 { return &v }

func TestRepository_LoadMissing(t *testing.T) {
	repo := NewRepository(setupDB(t))

	_, ok, err := repo.Load(context.Background(), "home")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("Load ok = true on empty table")
	}
}

func TestRepository_SaveThenLoad(t *testing.T) {
	repo := NewRepository(setupDB(t))
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := telemetry.Reading{Time: ts, PM2_5: ptr(12.5), CO2: ptr(640)}
	if err := repo.Save(ctx, "home", first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := telemetry.Reading{Time: ts.Add(time.Minute), PM2_5: ptr(13), VOC: ptr(110)}
	if err := repo.Save(ctx, "home", second); err != nil {
		t.Fatalf("Save (upsert): %v", err)
	}

	got, ok, err := repo.Load(ctx, "home")
	if err != nil || !ok {
		t.Fatalf("Load = (%v, %v)", ok, err)
	}
	if !got.Time.Equal(second.Time) {
		t.Errorf("Time = %v, want %v", got.Time, second.Time)
	}
	if got.PM2_5 == nil || *got.PM2_5 != 13 || got.VOC == nil || *got.VOC != 110 {
		t.Errorf("reading = %+v", got)
	}
	if got.CO2 != nil {
		t.Errorf("CO2 = %v, want nil (row replaced wholesale)", *got.CO2)
	}
}

func TestRepository_ListAndStations(t *testing.T) {
	repo := NewRepository(setupDB(t))
	ctx := context.Background()

	if err := repo.Save(ctx, "office", telemetry.Reading{NOx: ptr(1)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, "home", telemetry.Reading{NOx: ptr(2)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Station != "home" || list[1].Station != "office" {
		t.Fatalf("List = %+v", list)
	}
	if list[0].SavedAt.IsZero() {
		t.Error("SavedAt is zero")
	}
}

func TestStationStore(t *testing.T) {
	store := ForStation(NewRepository(setupDB(t)), "home")
	ctx := context.Background()

	if err := store.Save(ctx, telemetry.Reading{CO2: ptr(900)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := store.Load(ctx)
	if err != nil || !ok || got.CO2 == nil || *got.CO2 != 900 {
		t.Fatalf("Load = (%+v, %v, %v)", got, ok, err)
	}
}
