// Package models contains the database model definitions.
// These models map directly to the SQLite database tables.
package models

import (
	"time"
)

// Run status values stored in PatternRun.Status.
const (
	RunStatusPending   = "PENDING"
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusCancelled = "CANCELLED"
	RunStatusFailed    = "FAILED"
)

// PatternRun records one execution of a color pattern on a device.
// Table: pattern_runs
type PatternRun struct {
	ID              string     `gorm:"column:id;primaryKey"`
	DeviceID        string     `gorm:"column:device_id;index"`
	PatternType     string     `gorm:"column:pattern_type"`
	Transition      string     `gorm:"column:transition"`
	RepeatCount     int        `gorm:"column:repeat_count"`
	StepCount       int        `gorm:"column:step_count"`
	Status          string     `gorm:"column:status;default:PENDING;index"`
	Error           *string    `gorm:"column:error"`
	CyclesCompleted int        `gorm:"column:cycles_completed;default:0"`
	StartedAt       time.Time  `gorm:"column:started_at"`
	FinishedAt      *time.Time `gorm:"column:finished_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (PatternRun) TableName() string { return "pattern_runs" }

// IsFinished reports whether the run reached a terminal status.
func (r PatternRun) IsFinished() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusCancelled, RunStatusFailed:
		return true
	}
	return false
}

// Schedule starts a stored pattern request on a cron spec.
// Table: schedules
type Schedule struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	Spec      string    `gorm:"column:spec"`
	DeviceID  string    `gorm:"column:device_id;index"`
	Request   string    `gorm:"column:request"` // JSON pattern request
	Enabled   bool      `gorm:"column:enabled"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Schedule) TableName() string { return "schedules" }

// All returns every model for migrations.
func All() []any {
	return []any{&PatternRun{}, &Schedule{}}
}
