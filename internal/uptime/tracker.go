package uptime

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/makestack-ai/makestack/internal/clock"
	"github.com/makestack-ai/makestack/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

// Tracker records the boundaries of downtime intervals. The open-interval
// pointer is process-local, so "at most one open interval" holds per
// tracker instance only. Store failures are logged and swallowed; downtime
// tracking is instrumentation, not a correctness-critical path.
type Tracker struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.Metrics

	mu     sync.Mutex
	openID snowflake.ID
}

func NewTracker(p Params) *Tracker {
	return &Tracker{
		db:      p.DB,
		log:     p.Log.Named("uptime.tracker"),
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

// RecordDowntimeStart opens a downtime interval. A second start while one
// is open is a warned no-op. A failed insert leaves the tracker believing
// nothing is open; that drift is accepted for best-effort monitoring.
func (t *Tracker) RecordDowntimeStart(ctx context.Context, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.openID != 0 {
		t.log.Warn("downtime interval already open, ignoring start",
			zap.String("open_id", t.openID.String()),
		)
		return
	}

	now := t.clock.Now()
	id := t.genID.Generate()
	err := t.db.WithContext(ctx).Exec(
		`INSERT INTO downtime_events (id, started_at, reason, created_at)
		 VALUES (?, ?, ?, ?)`,
		id,
		now,
		strings.TrimSpace(reason),
		now,
	).Error
	if err != nil {
		t.log.Warn("failed to record downtime start", zap.Error(err))
		return
	}

	t.openID = id
	t.log.Info("downtime started",
		zap.String("downtime_id", id.String()),
		zap.String("reason", reason),
	)
	t.metrics.RecordDowntimeStarted()
}

// RecordDowntimeEnd closes the open interval, computing its duration. An
// end without an open interval is a warned no-op. If the row was deleted
// out-of-band the in-memory state is reset so the tracker cannot get stuck.
func (t *Tracker) RecordDowntimeEnd(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.openID == 0 {
		t.log.Warn("no open downtime interval, ignoring end")
		return
	}

	var row struct {
		ID        snowflake.ID
		StartedAt time.Time
	}
	err := t.db.WithContext(ctx).Raw(
		`SELECT id, started_at FROM downtime_events WHERE id = ? LIMIT 1`,
		t.openID,
	).Scan(&row).Error
	if err != nil {
		t.log.Warn("failed to load open downtime event", zap.Error(err))
		return
	}
	if row.ID == 0 {
		t.log.Warn("open downtime event missing, resetting tracker",
			zap.String("downtime_id", t.openID.String()),
		)
		t.openID = 0
		return
	}

	now := t.clock.Now()
	duration := int64(now.Sub(row.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	err = t.db.WithContext(ctx).Exec(
		`UPDATE downtime_events
		 SET ended_at = ?, duration_seconds = ?
		 WHERE id = ?`,
		now,
		duration,
		t.openID,
	).Error
	if err != nil {
		t.log.Warn("failed to record downtime end", zap.Error(err))
		return
	}

	t.log.Info("downtime ended",
		zap.String("downtime_id", t.openID.String()),
		zap.Int64("duration_seconds", duration),
	)
	t.openID = 0
	t.metrics.RecordDowntimeClosed()
}

// OpenDowntimeID returns the id of the currently open interval, or zero.
func (t *Tracker) OpenDowntimeID() snowflake.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openID
}

// UptimePercent computes availability over the trailing window from closed
// downtime events, as (window - downtime) / window * 100.
func (t *Tracker) UptimePercent(ctx context.Context, window time.Duration) (float64, error) {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	since := t.clock.Now().Add(-window)

	var downtimeSeconds int64
	err := t.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(duration_seconds), 0)
		 FROM downtime_events
		 WHERE ended_at IS NOT NULL AND ended_at >= ?`,
		since,
	).Scan(&downtimeSeconds).Error
	if err != nil {
		return 0, err
	}

	windowSeconds := window.Seconds()
	percent := (windowSeconds - float64(downtimeSeconds)) / windowSeconds * 100
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return percent, nil
}

// PurgeClosedBefore deletes closed downtime events that ended before the
// cutoff. Open intervals are never purged.
func (t *Tracker) PurgeClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := t.db.WithContext(ctx).Exec(
		`DELETE FROM downtime_events
		 WHERE ended_at IS NOT NULL AND ended_at < ?`,
		cutoff,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
