package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/geoduel/internal/dependencies/mocks"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/registry"
	"github.com/mcoot/geoduel/internal/testutil"
)

type MonitorSuite struct {
	suite.Suite
	clock    *mocks.MockClock
	registry *registry.Registry
	monitor  *Monitor
}

func TestMonitorSuite(t *testing.T) {
	suite.Run(t, new(MonitorSuite))
}

func (s *MonitorSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = registry.New(s.clock, mocks.NewMockRandom(), testutil.NopLogger())
	s.monitor = New(s.registry, s.clock, testutil.NopLogger(), DefaultConfig())
}

func (s *MonitorSuite) connect(verified bool) (*model.Player, *testutil.FakeConn) {
	conn := testutil.NewFakeConn()
	player := s.registry.Register(conn)
	if verified {
		player.SetIdentity(model.Identity{Verified: true, Name: "Guest #0001"})
	}
	return player, conn
}

func (s *MonitorSuite) TestBeatSendsTimeToEveryone() {
	_, unverified := s.connect(false)
	_, verified := s.connect(true)

	s.monitor.Beat(s.clock.Now())

	want := model.TimeMessage{Type: model.MsgTime, Time: s.clock.Now().UnixMilli()}
	for _, conn := range []*testutil.FakeConn{unverified, verified} {
		msg, ok := testutil.LastOf[model.TimeMessage](conn)
		s.Require().True(ok)
		s.Equal(want, msg)
	}
}

func (s *MonitorSuite) TestBeatSendsCountToIdleVerifiedPlayers() {
	_, unverified := s.connect(false)
	_, idle := s.connect(true)
	playing, playingConn := s.connect(true)
	s.Require().True(playing.ClaimSession("session-1"))

	s.monitor.Beat(s.clock.Now())

	msg, ok := testutil.LastOf[model.CountMessage](idle)
	s.Require().True(ok)
	s.Equal(model.CountMessage{Type: model.MsgCount, Count: 3}, msg)
	s.Empty(testutil.MessagesOf[model.CountMessage](unverified))
	s.Empty(testutil.MessagesOf[model.CountMessage](playingConn))
}

func (s *MonitorSuite) TestSweepClosesSilentConnections() {
	quiet, quietConn := s.connect(true)
	chatty, chattyConn := s.connect(true)

	s.clock.Advance(45 * time.Second)
	chatty.TouchPong(s.clock.Now())
	s.clock.Advance(30 * time.Second)

	s.Equal(1, s.monitor.Sweep(s.clock.Now()))
	s.True(quietConn.Closed())
	s.False(chattyConn.Closed())
	s.NotEqual(quiet.ID, chatty.ID)
}

func (s *MonitorSuite) TestSweepKeepsConnectionsWithinTimeout() {
	_, conn := s.connect(false)

	s.clock.Advance(60 * time.Second)

	s.Equal(0, s.monitor.Sweep(s.clock.Now()))
	s.False(conn.Closed())
}

func (s *MonitorSuite) TestZeroConfigUsesDefaults() {
	m := New(s.registry, s.clock, testutil.NopLogger(), Config{})
	s.Equal(DefaultConfig(), m.cfg)
}

func (s *MonitorSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.monitor.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("Run did not return after cancel")
	}
}
