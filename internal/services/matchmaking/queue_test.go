package matchmaking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/geoduel/internal/dependencies/mocks"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/chat"
	"github.com/mcoot/geoduel/internal/services/game"
	"github.com/mcoot/geoduel/internal/services/rating"
	"github.com/mcoot/geoduel/internal/services/registry"
	"github.com/mcoot/geoduel/internal/services/scoring"
	"github.com/mcoot/geoduel/internal/testutil"
)

type nopSink struct{}

func (nopSink) ApplyDuel(a, b rating.Participant) {}

type nopFilter struct{}

func (nopFilter) Clean(text string) string { return text }

type QueueSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	registry *registry.Registry
	games    *game.Controller
	queue    *Queue
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueSuite))
}

func (s *QueueSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.registry = registry.New(s.clock, s.random, testutil.NopLogger())
	s.games = game.NewController(
		game.NewStaticProvider(s.random, []model.Location{{Lat: 1, Long: 2, Country: "AA"}}),
		scoring.New(),
		nopSink{},
		chat.New(nopFilter{}, s.clock),
		s.clock,
		s.random,
		testutil.NopLogger(),
	)
	s.queue = New(s.registry, s.games, testutil.NopLogger())
	s.registry.OnUnregister(s.queue.Dequeue)
}

func (s *QueueSuite) newPlayer() *model.Player {
	player := s.registry.Register(testutil.NewFakeConn())
	player.SetIdentity(model.Identity{Verified: true, Name: fmt.Sprintf("Guest #%s", player.ID)})
	return player
}

func (s *QueueSuite) enqueue(n int) []*model.Player {
	players := make([]*model.Player, n)
	for i := range n {
		players[i] = s.newPlayer()
		s.Require().True(s.queue.Enqueue(players[i]))
	}
	return players
}

func (s *QueueSuite) TestEnqueueAndDequeue() {
	player := s.newPlayer()

	s.True(s.queue.Enqueue(player))
	s.True(s.queue.Enqueue(player))
	s.True(player.Queued())
	s.True(s.queue.Contains(player.ID))
	s.Equal(1, s.queue.Len())

	s.queue.Dequeue(player)
	s.False(player.Queued())
	s.False(s.queue.Contains(player.ID))
	s.Equal(0, s.queue.Len())
}

func (s *QueueSuite) TestEnqueueRejectsPlayerInSession() {
	player := s.newPlayer()
	_, err := s.games.CreatePrivate(player, game.PrivateOptions{
		Rounds:       3,
		TimePerRound: 30 * time.Second,
		Location:     model.DefaultLocationPool,
	})
	s.Require().NoError(err)

	s.False(s.queue.Enqueue(player))
	s.Equal(0, s.queue.Len())
}

func (s *QueueSuite) TestUnregisterDequeues() {
	players := s.enqueue(2)

	s.registry.Unregister(players[0].ID)

	s.Equal(1, s.queue.Len())
	s.False(s.queue.Contains(players[0].ID))
}

func (s *QueueSuite) TestSinglePlayerWaits() {
	s.enqueue(1)

	s.queue.Tick(s.ctx)

	s.Equal(0, s.games.Count())
	s.Equal(1, s.queue.Len())
}

func (s *QueueSuite) TestTwoPlayersAreMatched() {
	players := s.enqueue(2)

	s.queue.Tick(s.ctx)

	s.Equal(0, s.queue.Len())
	s.Require().Equal(1, s.games.Count())
	session := s.games.Sessions()[0]
	s.True(session.Public)
	s.Equal(2, session.Info().Players)
	for _, p := range players {
		s.Equal(session.ID, p.SessionID())
		s.False(p.Queued())
	}
	s.Equal(model.SessionStateWaiting, session.Info().State)

	// The next tick starts it
	s.queue.Tick(s.ctx)
	s.Equal(model.SessionStateGetReady, session.Info().State)
}

func (s *QueueSuite) TestLateArrivalJoinsRunningSession() {
	s.enqueue(2)
	s.queue.Tick(s.ctx)
	s.queue.Tick(s.ctx)
	session := s.games.Sessions()[0]
	s.Require().Equal(model.SessionStateGetReady, session.Info().State)

	late := s.enqueue(1)[0]
	s.queue.Tick(s.ctx)

	s.Equal(session.ID, late.SessionID())
	s.Equal(3, session.Info().Players)
	s.Equal(1, s.games.Count())
}

func (s *QueueSuite) TestSessionNearEndIsNotJoinable() {
	s.enqueue(2)
	s.queue.Tick(s.ctx)
	s.queue.Tick(s.ctx)
	session := s.games.Sessions()[0]

	// Run the clock until fewer than three rounds remain
	for range 1000 {
		info := session.Info()
		if info.Rounds-info.CurRound < 3 {
			break
		}
		s.clock.Advance(time.Second)
		s.games.Tick(s.clock.Now())
	}
	s.Require().Equal(0, session.OpenSlots())

	late := s.enqueue(1)[0]
	s.queue.Tick(s.ctx)

	s.Equal(model.SessionID(""), late.SessionID())
	s.True(s.queue.Contains(late.ID))
}

func (s *QueueSuite) TestOverflowOpensSecondSession() {
	s.enqueue(model.PublicPlayerCap + 2)

	s.queue.Tick(s.ctx)
	s.Require().Equal(1, s.games.Count())
	first := s.games.Sessions()[0]
	s.Equal(model.PublicPlayerCap, first.Info().Players)
	s.Equal(2, s.queue.Len())

	s.queue.Tick(s.ctx)
	s.Equal(model.SessionStateGetReady, first.Info().State)
	s.Require().Equal(2, s.games.Count())
	second := s.games.Sessions()[1]
	s.Equal(2, second.Info().Players)
	s.Equal(0, s.queue.Len())
}

func (s *QueueSuite) TestUnregisteredEntriesAreDropped() {
	// Never registered, so the lookup fails at tick time
	stray := model.NewPlayer("stray", testutil.NewFakeConn(), s.clock.Now())
	s.Require().True(s.queue.Enqueue(stray))
	s.enqueue(2)

	s.queue.Tick(s.ctx)

	s.Equal(0, s.queue.Len())
	s.Require().Equal(1, s.games.Count())
	s.Equal(2, s.games.Sessions()[0].Info().Players)
	s.Equal(model.SessionID(""), stray.SessionID())
}

func (s *QueueSuite) TestPlayerWhoJoinedElsewhereIsSkipped() {
	players := s.enqueue(3)
	_, err := s.games.CreatePrivate(players[0], game.PrivateOptions{
		Rounds:       3,
		TimePerRound: 30 * time.Second,
		Location:     model.DefaultLocationPool,
	})
	s.Require().NoError(err)
	s.Require().True(s.queue.Contains(players[0].ID))

	s.queue.Tick(s.ctx)

	s.Equal(0, s.queue.Len())
	s.Require().Equal(2, s.games.Count())
	public := s.games.Sessions()[1]
	s.True(public.Public)
	s.Equal(2, public.Info().Players)
	s.False(public.HasMember(players[0].ID))
}

func (s *QueueSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.queue.Run(ctx, time.Millisecond) }()

	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("Run did not return after cancel")
	}
}
