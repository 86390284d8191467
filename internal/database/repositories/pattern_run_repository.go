// Package repositories provides data access for pattern runs and schedules.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/bbernstein/lacylights-bulbs/internal/database/models"
)

// DefaultHistoryLimit caps history queries that do not set a limit.
const DefaultHistoryLimit = 50

// PatternRunRepository handles pattern run history.
type PatternRunRepository struct {
	db *gorm.DB
}

// NewPatternRunRepository creates a new PatternRunRepository.
func NewPatternRunRepository(db *gorm.DB) *PatternRunRepository {
	return &PatternRunRepository{db: db}
}

// Create inserts a run record. An ID is generated when empty.
func (r *PatternRunRepository) Create(ctx context.Context, run *models.PatternRun) error {
	if run.ID == "" {
		run.ID = cuid.New()
	}
	if run.Status == "" {
		run.Status = models.RunStatusPending
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// Finish stores the terminal status of a run. An empty errMsg clears the error column.
func (r *PatternRunRepository) Finish(ctx context.Context, id, status, errMsg string, cyclesCompleted int, finishedAt time.Time) error {
	var errValue *string
	if errMsg != "" {
		errValue = &errMsg
	}

	result := r.db.WithContext(ctx).
		Model(&models.PatternRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           status,
			"error":            errValue,
			"cycles_completed": cyclesCompleted,
			"finished_at":      finishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID returns a run by ID, or nil when it does not exist.
func (r *PatternRunRepository) FindByID(ctx context.Context, id string) (*models.PatternRun, error) {
	var run models.PatternRun
	result := r.db.WithContext(ctx).First(&run, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &run, nil
}

// FindRecent returns the most recently started runs, newest first.
func (r *PatternRunRepository) FindRecent(ctx context.Context, limit int) ([]models.PatternRun, error) {
	var runs []models.PatternRun
	result := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(normalizeLimit(limit)).
		Find(&runs)
	return runs, result.Error
}

// FindByDevice returns the most recent runs for one device, newest first.
func (r *PatternRunRepository) FindByDevice(ctx context.Context, deviceID string, limit int) ([]models.PatternRun, error) {
	var runs []models.PatternRun
	result := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("started_at DESC").
		Limit(normalizeLimit(limit)).
		Find(&runs)
	return runs, result.Error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
