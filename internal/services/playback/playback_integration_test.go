package playback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacylights-bulbs/internal/database/models"
	"github.com/bbernstein/lacylights-bulbs/internal/services/pattern"
	"github.com/bbernstein/lacylights-bulbs/internal/services/testutil"
)

// setupPlaybackTest creates a test database and a playback service that persists to it.
func setupPlaybackTest(t *testing.T, runner Runner) (*testutil.TestDB, *Service, func()) {
	t.Helper()

	testDB, cleanupDB := testutil.SetupTestDB(t)
	playbackService := NewService(runner, testDB.RunRepo, PolicyReplace)

	cleanup := func() {
		playbackService.Cleanup()
		cleanupDB()
	}

	return testDB, playbackService, cleanup
}

func TestIntegration_CompletedRunIsPersisted(t *testing.T) {
	testDB, s, cleanup := setupPlaybackTest(t, newInstantSequencer())
	defer cleanup()

	deviceID := testutil.UniqueDeviceID("bulb")
	req := request(deviceID, "#FF0000")
	req.Settings.Type = pattern.PatternPingPong
	req.Settings.RepeatCount = 2
	req.Steps = append(req.Steps, pattern.ColorStep{Hex: "#0000FF", DurationMs: 200})

	run, err := s.Submit(req)
	require.NoError(t, err)
	wait(t, run)

	stored, err := testDB.RunRepo.FindByID(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.Equal(t, deviceID, stored.DeviceID)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.Equal(t, "PING_PONG", stored.PatternType)
	assert.Equal(t, 2, stored.StepCount)
	assert.Equal(t, 2, stored.CyclesCompleted)
	assert.Nil(t, stored.Error)
	assert.True(t, stored.IsFinished())
	require.NotNil(t, stored.FinishedAt)
}

func TestIntegration_CancelledAndFailedRunsArePersisted(t *testing.T) {
	runner := newBlockingRunner()
	testDB, s, cleanup := setupPlaybackTest(t, runner)
	defer cleanup()

	deviceID := testutil.UniqueDeviceID("bulb")
	cancelled, err := s.Submit(labeled(deviceID, "A"))
	require.NoError(t, err)
	runner.waitStarted(t, "A")
	require.NoError(t, s.CancelRun(cancelled.ID))
	wait(t, cancelled)

	failing := RunnerFunc(func(context.Context, pattern.PatternRequest, ...pattern.RunOption) pattern.RunOutcome {
		return pattern.RunOutcome{Status: pattern.OutcomeFailed, Err: errors.New("color command on bulb: refused")}
	})
	failingService := NewService(failing, testDB.RunRepo, PolicyReplace)
	defer failingService.Cleanup()

	failed, err := failingService.Submit(request(deviceID, "#FFFFFF"))
	require.NoError(t, err)
	wait(t, failed)

	runs, err := testDB.RunRepo.FindByDevice(context.Background(), deviceID, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]models.PatternRun{}
	for _, r := range runs {
		byID[r.ID] = r
	}

	assert.Equal(t, models.RunStatusCancelled, byID[cancelled.ID].Status)
	assert.Nil(t, byID[cancelled.ID].Error)

	assert.Equal(t, models.RunStatusFailed, byID[failed.ID].Status)
	require.NotNil(t, byID[failed.ID].Error)
	assert.Equal(t, "color command on bulb: refused", *byID[failed.ID].Error)
}
