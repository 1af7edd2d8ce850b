package factory

import (
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/movienight/internal/dependencies/mocks"
	"github.com/mcoot/movienight/internal/services/credential"
	"github.com/mcoot/movienight/internal/services/membership"
	"github.com/mcoot/movienight/internal/services/session"
	"github.com/mcoot/movienight/internal/storage/memory"
)

// TestSecret signs the sessions of a TestApp
const TestSecret = "test-secret"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
	MockIDs   *mocks.MockIDs
	Memory    *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies
// and a cheap password hash
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockIDs := mocks.NewMockIDs()

	hasher := credential.New(credential.Config{Time: 1, Memory: 1024, Threads: 1})

	sessionCfg := session.DefaultConfig()
	sessionCfg.Secret = TestSecret

	app, err := newWithDependencies(
		store,
		mockClock,
		mockIDs,
		hasher,
		sessionCfg,
		membership.DefaultConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:       app,
		MockClock: mockClock,
		MockIDs:   mockIDs,
		Memory:    store,
	}
}
