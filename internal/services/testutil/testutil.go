// Package testutil provides shared test utilities for integration tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bbernstein/lacylights-bulbs/internal/database"
	"github.com/bbernstein/lacylights-bulbs/internal/database/repositories"
)

// TestDB holds the test database and repositories.
type TestDB struct {
	DB           *gorm.DB
	RunRepo      *repositories.PatternRunRepository
	ScheduleRepo *repositories.ScheduleRepository
}

// SetupTestDB creates an in-memory SQLite database for testing.
// It returns a TestDB with all repositories initialized and a cleanup function.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	// Create in-memory SQLite database
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// Each pooled connection would otherwise get its own empty database
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	testDB := &TestDB{
		DB:           db,
		RunRepo:      repositories.NewPatternRunRepository(db),
		ScheduleRepo: repositories.NewScheduleRepository(db),
	}

	// Cleanup function - close the database connection
	cleanup := func() {
		_ = sqlDB.Close()
	}

	return testDB, cleanup
}

// UniqueDeviceID generates a unique device ID for testing.
// This ensures tests don't conflict with each other.
func UniqueDeviceID(prefix string) string {
	return prefix + "-" + cuid.New()[:8]
}
