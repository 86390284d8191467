package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bbernstein/lacylights-bulbs/internal/database/models"
)

// setupTestDB creates an in-memory SQLite database for testing repositories.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newRun(deviceID string, startedAt time.Time) *models.PatternRun {
	return &models.PatternRun{
		DeviceID:    deviceID,
		PatternType: "SEQUENTIAL",
		Transition:  "INSTANT",
		RepeatCount: 1,
		StepCount:   2,
		Status:      models.RunStatusRunning,
		StartedAt:   startedAt,
	}
}

func TestPatternRunRepository_CreateAndFind(t *testing.T) {
	repo := NewPatternRunRepository(setupTestDB(t))
	ctx := context.Background()

	run := newRun("192.168.1.50", time.Now())
	require.NoError(t, repo.Create(ctx, run))
	assert.NotEmpty(t, run.ID, "ID should be generated")

	found, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "192.168.1.50", found.DeviceID)
	assert.Equal(t, models.RunStatusRunning, found.Status)
	assert.Equal(t, 2, found.StepCount)
	assert.Nil(t, found.FinishedAt)
	assert.False(t, found.IsFinished())
}

func TestPatternRunRepository_CreateDefaultsStatus(t *testing.T) {
	repo := NewPatternRunRepository(setupTestDB(t))
	ctx := context.Background()

	run := newRun("10.0.0.1", time.Now())
	run.Status = ""
	run.ID = "run-fixed-id"
	require.NoError(t, repo.Create(ctx, run))

	found, err := repo.FindByID(ctx, "run-fixed-id")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, models.RunStatusPending, found.Status)
}

func TestPatternRunRepository_FindByIDMissing(t *testing.T) {
	repo := NewPatternRunRepository(setupTestDB(t))

	found, err := repo.FindByID(context.Background(), "does-not-exist")

	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestPatternRunRepository_Finish(t *testing.T) {
	repo := NewPatternRunRepository(setupTestDB(t))
	ctx := context.Background()

	run := newRun("10.0.0.1", time.Now())
	require.NoError(t, repo.Create(ctx, run))

	finishedAt := time.Now().Add(time.Second)
	require.NoError(t, repo.Finish(ctx, run.ID, models.RunStatusFailed, "connection refused", 3, finishedAt))

	found, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, models.RunStatusFailed, found.Status)
	require.NotNil(t, found.Error)
	assert.Equal(t, "connection refused", *found.Error)
	assert.Equal(t, 3, found.CyclesCompleted)
	require.NotNil(t, found.FinishedAt)
	assert.WithinDuration(t, finishedAt, *found.FinishedAt, time.Millisecond)
	assert.True(t, found.IsFinished())

	require.NoError(t, repo.Finish(ctx, run.ID, models.RunStatusCompleted, "", 4, finishedAt))
	found, err = repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, found.Error)
}

func TestPatternRunRepository_FinishMissing(t *testing.T) {
	repo := NewPatternRunRepository(setupTestDB(t))

	err := repo.Finish(context.Background(), "missing", models.RunStatusCompleted, "", 1, time.Now())

	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPatternRunRepository_History(t *testing.T) {
	repo := NewPatternRunRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		device := "10.0.0.1"
		if i%2 == 1 {
			device = "10.0.0.2"
		}
		run := newRun(device, base.Add(time.Duration(i)*time.Minute))
		run.ID = string(rune('a' + i))
		require.NoError(t, repo.Create(ctx, run))
	}

	recent, err := repo.FindRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"e", "d", "c"}, []string{recent[0].ID, recent[1].ID, recent[2].ID})

	all, err := repo.FindRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	byDevice, err := repo.FindByDevice(ctx, "10.0.0.2", 10)
	require.NoError(t, err)
	require.Len(t, byDevice, 2)
	assert.Equal(t, "d", byDevice[0].ID)
	assert.Equal(t, "b", byDevice[1].ID)
}

func TestScheduleRepository_CRUD(t *testing.T) {
	repo := NewScheduleRepository(setupTestDB(t))
	ctx := context.Background()

	evening := &models.Schedule{
		Name:     "Evening",
		Spec:     "0 19 * * *",
		DeviceID: "10.0.0.1",
		Request:  `{"deviceId":"10.0.0.1","colors":[{"hex":"#FF8800"}]}`,
		Enabled:  true,
	}
	disabled := &models.Schedule{
		Name:     "Disabled",
		Spec:     "*/5 * * * *",
		DeviceID: "10.0.0.2",
		Request:  `{}`,
		Enabled:  false,
	}
	require.NoError(t, repo.Create(ctx, evening))
	require.NoError(t, repo.Create(ctx, disabled))
	assert.NotEmpty(t, evening.ID)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Disabled", all[0].Name)
	assert.Equal(t, "Evening", all[1].Name)

	enabled, err := repo.FindEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, evening.ID, enabled[0].ID)

	found, err := repo.FindByID(ctx, evening.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "0 19 * * *", found.Spec)
	assert.Equal(t, evening.Request, found.Request)

	require.NoError(t, repo.Delete(ctx, evening.ID))
	found, err = repo.FindByID(ctx, evening.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}
