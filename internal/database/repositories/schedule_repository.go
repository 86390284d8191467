package repositories

import (
	"context"
	"errors"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/bbernstein/lacylights-bulbs/internal/database/models"
)

// ScheduleRepository handles schedule data access.
type ScheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new ScheduleRepository.
func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// FindAll returns all schedules ordered by name.
func (r *ScheduleRepository) FindAll(ctx context.Context) ([]models.Schedule, error) {
	var schedules []models.Schedule
	result := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&schedules)
	return schedules, result.Error
}

// FindEnabled returns the schedules that should be registered at startup.
func (r *ScheduleRepository) FindEnabled(ctx context.Context) ([]models.Schedule, error) {
	var schedules []models.Schedule
	result := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("name ASC").
		Find(&schedules)
	return schedules, result.Error
}

// FindByID returns a schedule by ID, or nil when it does not exist.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	var schedule models.Schedule
	result := r.db.WithContext(ctx).First(&schedule, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &schedule, nil
}

// Create inserts a schedule. An ID is generated when empty.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = cuid.New()
	}
	return r.db.WithContext(ctx).Create(schedule).Error
}

// Delete removes a schedule by ID.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Schedule{}, "id = ?", id).Error
}
