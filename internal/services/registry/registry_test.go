package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/geoduel/internal/dependencies/mocks"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.registry = New(s.clock, s.random, testutil.NopLogger())
}

func (s *RegistrySuite) TestRegisterAssignsIDAndDefaults() {
	s.random.QueueUUID("conn-1")

	player := s.registry.Register(testutil.NewFakeConn())

	s.Equal(model.ConnID("conn-1"), player.ID)
	s.Equal(model.ScreenHome, player.Screen())
	s.False(player.Identity().Verified)
	s.True(s.clock.Now().Equal(player.LastPong()))

	got, ok := s.registry.Get("conn-1")
	s.True(ok)
	s.Same(player, got)
	s.Equal(1, s.registry.Count())
}

func (s *RegistrySuite) TestUnregisterRunsCallbacksInOrder() {
	player := s.registry.Register(testutil.NewFakeConn())

	var calls []string
	s.registry.OnUnregister(func(p *model.Player) {
		s.Same(player, p)
		calls = append(calls, "queue")
	})
	s.registry.OnUnregister(func(p *model.Player) {
		calls = append(calls, "session")
	})

	s.True(s.registry.Unregister(player.ID))
	s.Equal([]string{"queue", "session"}, calls)

	_, ok := s.registry.Get(player.ID)
	s.False(ok)
	s.False(s.registry.Unregister(player.ID))
	s.Len(calls, 2)
}

func (s *RegistrySuite) TestClaimAccountRejectsSecondConnection() {
	first := s.registry.Register(testutil.NewFakeConn())
	second := s.registry.Register(testutil.NewFakeConn())

	s.Require().NoError(s.registry.ClaimAccount(first.ID, "acct-1"))
	s.ErrorIs(s.registry.ClaimAccount(second.ID, "acct-1"), model.ErrAccountInUse)
	// Reclaiming from the same connection is fine
	s.NoError(s.registry.ClaimAccount(first.ID, "acct-1"))

	s.ErrorIs(s.registry.ClaimAccount("missing", "acct-2"), model.ErrPlayerNotFound)
}

func (s *RegistrySuite) TestUnregisterReleasesAccount() {
	first := s.registry.Register(testutil.NewFakeConn())
	s.Require().NoError(s.registry.ClaimAccount(first.ID, "acct-1"))
	first.SetIdentity(model.Identity{Verified: true, AccountID: "acct-1"})

	found, ok := s.registry.FindByAccount("acct-1")
	s.True(ok)
	s.Same(first, found)

	s.registry.Unregister(first.ID)
	_, ok = s.registry.FindByAccount("acct-1")
	s.False(ok)

	second := s.registry.Register(testutil.NewFakeConn())
	s.NoError(s.registry.ClaimAccount(second.ID, "acct-1"))
}

func (s *RegistrySuite) TestUnregisterReleasesClaimWithoutIdentity() {
	first := s.registry.Register(testutil.NewFakeConn())
	s.Require().NoError(s.registry.ClaimAccount(first.ID, "acct-1"))
	s.Require().Empty(first.Identity().AccountID)

	// Disconnect lands between the claim and the identity being set
	s.registry.Unregister(first.ID)
	_, ok := s.registry.FindByAccount("acct-1")
	s.False(ok)

	second := s.registry.Register(testutil.NewFakeConn())
	s.NoError(s.registry.ClaimAccount(second.ID, "acct-1"))
}

func (s *RegistrySuite) TestBroadcastFiltersByPredicate() {
	connA := testutil.NewFakeConn()
	connB := testutil.NewFakeConn()
	a := s.registry.Register(connA)
	s.registry.Register(connB)
	a.SetIdentity(model.Identity{Verified: true})

	msg := model.CountMessage{Type: model.MsgCount, Count: 2}
	s.registry.Broadcast(func(p *model.Player) bool { return p.Identity().Verified }, msg)
	s.Equal([]any{msg}, connA.Messages())
	s.Empty(connB.Messages())

	s.registry.Broadcast(nil, msg)
	s.Len(connA.Messages(), 2)
	s.Len(connB.Messages(), 1)
}

func (s *RegistrySuite) TestConcurrentClaimsHaveOneWinner() {
	const n = 20
	players := make([]*model.Player, n)
	for i := range players {
		players[i] = s.registry.Register(testutil.NewFakeConn())
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for _, p := range players {
		wg.Add(1)
		go func(p *model.Player) {
			defer wg.Done()
			if s.registry.ClaimAccount(p.ID, "acct-1") == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	s.Equal(1, winners)
}
