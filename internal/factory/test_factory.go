package factory

import (
	"time"

	"github.com/mcoot/playerrelay/internal/dependencies/mocks"
	"github.com/mcoot/playerrelay/internal/storage"
	"github.com/mcoot/playerrelay/internal/storage/memory"
	"github.com/mcoot/playerrelay/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
}

// NewTestApp creates an App on in-memory storage with a mock clock
func NewTestApp() *TestApp {
	return NewTestAppWith(memory.New(), Config{})
}

// NewTestAppWith creates a test App on the given store and configuration
func NewTestAppWith(store storage.PlayerStore, cfg Config) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	logger := cfg.Logger
	if logger == nil {
		logger = testutil.NopLogger()
	}

	return &TestApp{
		App:       newWithDependencies(store, mockClock, cfg, logger),
		MockClock: mockClock,
	}
}
