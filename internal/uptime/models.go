package uptime

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DowntimeEvent is one bounded span of recorded service unavailability.
// EndedAt and DurationSeconds stay null while the interval is open.
type DowntimeEvent struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	StartedAt       time.Time    `json:"started_at" gorm:"not null;index"`
	EndedAt         *time.Time   `json:"ended_at" gorm:"index"`
	DurationSeconds *int64       `json:"duration_seconds"`
	Reason          string       `json:"reason" gorm:"type:text"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
}

func (DowntimeEvent) TableName() string { return "downtime_events" }
