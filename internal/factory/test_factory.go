package factory

import (
	"time"

	"github.com/mcoot/geoduel/internal/dependencies/mocks"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/chat"
	"github.com/mcoot/geoduel/internal/services/game"
	"github.com/mcoot/geoduel/internal/services/heartbeat"
	"github.com/mcoot/geoduel/internal/storage/memory"
	"github.com/mcoot/geoduel/internal/testutil"
)

// TestLocation is the only target a TestApp ever generates
var TestLocation = model.Location{Lat: 48.8584, Long: 2.2945, Country: "FR"}

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(
		store,
		mockClock,
		mockRandom,
		game.NewStaticProvider(mockRandom, []model.Location{TestLocation}),
		chat.NewProfanityFilter(),
		heartbeat.DefaultConfig(),
		testutil.NopLogger(),
	)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
	}
}

// Advance moves the mock clock forward and runs one game tick
func (t *TestApp) Advance(d time.Duration) {
	t.MockClock.Advance(d)
	t.GameController.Tick(t.MockClock.Now())
}
