package uptime_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/makestack-ai/makestack/internal/clock"
	"github.com/makestack-ai/makestack/internal/uptime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_uptime_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := db.Exec(`CREATE TABLE downtime_events (
		id INTEGER PRIMARY KEY,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		duration_seconds INTEGER,
		reason TEXT,
		created_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func newTestTracker(t *testing.T, db *gorm.DB) (*uptime.Tracker, *clock.FakeClock) {
	t.Helper()

	node, err := snowflake.NewNode(30)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	tracker := uptime.NewTracker(uptime.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
	})
	return tracker, fake
}

func TestDowntimeRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	tracker, fake := newTestTracker(t, db)

	tracker.RecordDowntimeStart(ctx, "deploy gone wrong")
	if tracker.OpenDowntimeID() == 0 {
		t.Fatalf("expected open interval after start")
	}

	fake.Advance(3600 * time.Second)
	tracker.RecordDowntimeEnd(ctx)

	if tracker.OpenDowntimeID() != 0 {
		t.Fatalf("expected interval closed after end")
	}

	var row struct {
		DurationSeconds *int64
		EndedAt         *time.Time
		Reason          string
	}
	if err := db.Raw("SELECT duration_seconds, ended_at, reason FROM downtime_events LIMIT 1").Scan(&row).Error; err != nil {
		t.Fatalf("scan event: %v", err)
	}
	if row.DurationSeconds == nil || *row.DurationSeconds != 3600 {
		t.Fatalf("expected duration 3600, got %v", row.DurationSeconds)
	}
	if row.EndedAt == nil {
		t.Fatalf("expected ended_at to be set")
	}
	if row.Reason != "deploy gone wrong" {
		t.Fatalf("unexpected reason %q", row.Reason)
	}
}

func TestDowntimeStartIsReentrantGuarded(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	tracker, _ := newTestTracker(t, db)

	tracker.RecordDowntimeStart(ctx, "first")
	open := tracker.OpenDowntimeID()
	tracker.RecordDowntimeStart(ctx, "second")

	if tracker.OpenDowntimeID() != open {
		t.Fatalf("second start replaced the open interval")
	}

	var count int64
	if err := db.Raw("SELECT COUNT(1) FROM downtime_events").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 event, got %d", count)
	}
}

func TestDowntimeEndWithoutStart(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	tracker, _ := newTestTracker(t, db)

	tracker.RecordDowntimeEnd(ctx)

	var count int64
	if err := db.Raw("SELECT COUNT(1) FROM downtime_events").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("end without start created rows")
	}
}

func TestDowntimeEndMissingRowResetsTracker(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	tracker, fake := newTestTracker(t, db)

	tracker.RecordDowntimeStart(ctx, "test")
	if err := db.Exec("DELETE FROM downtime_events").Error; err != nil {
		t.Fatalf("delete row: %v", err)
	}

	fake.Advance(time.Minute)
	tracker.RecordDowntimeEnd(ctx)

	if tracker.OpenDowntimeID() != 0 {
		t.Fatalf("tracker stuck on deleted event")
	}
}

func TestDowntimeStartStoreFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	tracker, _ := newTestTracker(t, db)

	if err := db.Exec("DROP TABLE downtime_events").Error; err != nil {
		t.Fatalf("drop table: %v", err)
	}

	tracker.RecordDowntimeStart(ctx, "test")
	if tracker.OpenDowntimeID() != 0 {
		t.Fatalf("failed start should leave no open interval")
	}
}

func TestUptimePercent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	tracker, fake := newTestTracker(t, db)

	tracker.RecordDowntimeStart(ctx, "incident")
	fake.Advance(3600 * time.Second)
	tracker.RecordDowntimeEnd(ctx)

	percent, err := tracker.UptimePercent(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("uptime percent: %v", err)
	}
	// 2,592,000s window with 3,600s down: 99.861%.
	if percent < 99.85 || percent > 99.87 {
		t.Fatalf("expected ~99.86, got %f", percent)
	}
}

func TestUptimePercentNoDowntime(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	tracker, _ := newTestTracker(t, db)

	percent, err := tracker.UptimePercent(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("uptime percent: %v", err)
	}
	if percent != 100 {
		t.Fatalf("expected 100, got %f", percent)
	}
}

func TestPurgeClosedBeforeKeepsOpenIntervals(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	tracker, fake := newTestTracker(t, db)

	// One closed event, then an open one.
	tracker.RecordDowntimeStart(ctx, "old incident")
	fake.Advance(10 * time.Minute)
	tracker.RecordDowntimeEnd(ctx)

	fake.Advance(200 * 24 * time.Hour)
	tracker.RecordDowntimeStart(ctx, "ongoing")

	cutoff := fake.Now().AddDate(0, 0, -90)
	purged, err := tracker.PurgeClosedBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged event, got %d", purged)
	}

	var count int64
	if err := db.Raw("SELECT COUNT(1) FROM downtime_events").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the open event to survive, got %d rows", count)
	}
}
