package scheduler_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/makestack-ai/makestack/internal/clock"
	"github.com/makestack-ai/makestack/internal/config"
	"github.com/makestack-ai/makestack/internal/scheduler"
	"github.com/makestack-ai/makestack/internal/uptime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_sched_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

func TestRunOncePurgesAgedDowntime(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(40)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	tracker := uptime.NewTracker(uptime.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
	})

	tracker.RecordDowntimeStart(ctx, "old incident")
	fake.Advance(time.Hour)
	tracker.RecordDowntimeEnd(ctx)

	// Jump past the retention window, then record a fresh incident.
	fake.Advance(120 * 24 * time.Hour)
	tracker.RecordDowntimeStart(ctx, "fresh incident")
	fake.Advance(time.Minute)
	tracker.RecordDowntimeEnd(ctx)

	s := scheduler.New(scheduler.Params{
		Log:     zap.NewNop(),
		Cfg:     config.Config{RetentionDays: 90, SchedulerInterval: 60},
		Clock:   fake,
		Tracker: tracker,
	})

	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	var count int64
	if err := db.Raw("SELECT COUNT(1) FROM downtime_events").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the fresh event to remain, got %d", count)
	}

	var reason string
	if err := db.Raw("SELECT reason FROM downtime_events LIMIT 1").Scan(&reason).Error; err != nil {
		t.Fatalf("scan reason: %v", err)
	}
	if reason != "fresh incident" {
		t.Fatalf("wrong event survived: %q", reason)
	}
}
