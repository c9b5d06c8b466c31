package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/geoduel/internal/dependencies/mocks"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/auth"
	"github.com/mcoot/geoduel/internal/services/chat"
	"github.com/mcoot/geoduel/internal/services/game"
	"github.com/mcoot/geoduel/internal/services/matchmaking"
	"github.com/mcoot/geoduel/internal/services/rating"
	"github.com/mcoot/geoduel/internal/services/registry"
	"github.com/mcoot/geoduel/internal/services/scoring"
	"github.com/mcoot/geoduel/internal/services/social"
	"github.com/mcoot/geoduel/internal/storage/memory"
	"github.com/mcoot/geoduel/internal/testutil"
)

type nopSink struct{}

func (nopSink) ApplyDuel(a, b rating.Participant) {}

type nopFilter struct{}

func (nopFilter) Clean(text string) string { return text }

type DispatcherSuite struct {
	suite.Suite
	ctx        context.Context
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	storage    *memory.Storage
	registry   *registry.Registry
	games      *game.Controller
	queue      *matchmaking.Queue
	dispatcher *Dispatcher
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.storage = memory.New()
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
	s.queue = matchmaking.New(s.registry, s.games, testutil.NopLogger())
	s.registry.OnUnregister(s.queue.Dequeue)
	s.registry.OnUnregister(func(p *model.Player) { s.games.Leave(p, true) })

	authService := auth.New(s.storage, s.registry, s.clock, s.random, testutil.NopLogger())
	socialService := social.New(s.storage, s.registry, s.games, s.queue, s.clock, testutil.NopLogger())
	s.dispatcher = NewDispatcher(s.registry, authService, socialService, s.games, s.queue, s.clock, testutil.NopLogger())
}

func frame(fields map[string]any) []byte {
	data, _ := json.Marshal(fields)
	return data
}

func (s *DispatcherSuite) open() (*model.Player, *testutil.FakeConn) {
	conn := testutil.NewFakeConn()
	return s.dispatcher.Open(conn), conn
}

// guest opens a connection and verifies it without an account
func (s *DispatcherSuite) guest() (*model.Player, *testutil.FakeConn) {
	player, conn := s.open()
	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "verify"}))
	s.Require().True(player.Identity().Verified)
	conn.Reset()
	return player, conn
}

// Connection lifecycle

func (s *DispatcherSuite) TestOpenSendsTimeAndMaintenanceFlag() {
	_, conn := s.open()

	msgs := conn.Messages()
	s.Require().Len(msgs, 2)
	s.Equal(model.TimeMessage{Type: model.MsgTime, Time: s.clock.Now().UnixMilli()}, msgs[0])
	s.Equal(model.RestartQueuedMessage{Type: model.MsgRestartQueued, Value: false}, msgs[1])
	s.Equal(1, s.registry.Count())
}

func (s *DispatcherSuite) TestSetMaintenanceBroadcastsOnce() {
	_, conn := s.guest()

	s.dispatcher.SetMaintenance(true)
	s.dispatcher.SetMaintenance(true)

	s.Equal([]model.RestartQueuedMessage{{Type: model.MsgRestartQueued, Value: true}},
		testutil.MessagesOf[model.RestartQueuedMessage](conn))
	s.True(s.dispatcher.Maintenance())

	_, late := s.open()
	msg, ok := testutil.LastOf[model.RestartQueuedMessage](late)
	s.Require().True(ok)
	s.True(msg.Value)
}

func (s *DispatcherSuite) TestDisconnectLeavesQueueAndSession() {
	queued, _ := s.guest()
	host, _ := s.guest()
	s.dispatcher.Handle(s.ctx, queued, frame(map[string]any{"type": "publicDuel"}))
	s.dispatcher.Handle(s.ctx, host, frame(map[string]any{
		"type": "createPrivateGame", "rounds": 3, "timePerRound": 30, "location": "all",
	}))
	s.Require().NotEmpty(host.SessionID())

	s.dispatcher.Disconnect(queued)
	s.dispatcher.Disconnect(host)

	s.False(s.queue.Contains(queued.ID))
	s.Equal(0, s.games.Count())
	s.Equal(0, s.registry.Count())
}

func (s *DispatcherSuite) TestCloseAllClosesEveryConnection() {
	_, a := s.open()
	_, b := s.guest()

	s.dispatcher.CloseAll()

	s.True(a.Closed())
	s.True(b.Closed())
}

// Gate and framing

func (s *DispatcherSuite) TestUnverifiedPlayerCanOnlyVerifyOrPong() {
	player, conn := s.open()
	conn.Reset()

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "publicDuel"}))
	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "getFriends"}))
	s.False(s.queue.Contains(player.ID))
	s.Empty(conn.Messages())

	s.clock.Advance(30 * time.Second)
	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "pong"}))
	s.Equal(s.clock.Now(), player.LastPong())
}

func (s *DispatcherSuite) TestVerifyAsGuest() {
	player, conn := s.open()

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "verify", "secret": auth.GuestSecret}))

	s.True(player.Identity().Verified)
	s.True(player.Identity().IsGuest())
	msg, ok := testutil.LastOf[model.VerifyMessage](conn)
	s.Require().True(ok)
	s.NotEmpty(msg.GuestName)
}

func (s *DispatcherSuite) TestVerifyWithUnknownSecretClosesConnection() {
	player, conn := s.open()

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "verify", "secret": "nope"}))

	s.False(player.Identity().Verified)
	msg, ok := testutil.LastOf[model.ErrorMessage](conn)
	s.Require().True(ok)
	s.Equal(model.ErrTextFailedToLogin, msg.Message)
	s.True(conn.Closed())
}

func (s *DispatcherSuite) TestVerifyWithNonStringTimeZone() {
	player, conn := s.open()

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "verify", "secret": "whatever", "tz": 123}))

	s.False(player.Identity().Verified)
	msg, ok := testutil.LastOf[model.ErrorMessage](conn)
	s.Require().True(ok)
	s.True(msg.FailedToLogin)
	s.True(conn.Closed())

	guest, guestConn := s.open()
	s.dispatcher.Handle(s.ctx, guest, frame(map[string]any{"type": "verify", "tz": []int{1}}))

	s.True(guest.Identity().Verified)
	_, ok = testutil.LastOf[model.VerifyMessage](guestConn)
	s.True(ok)
	s.False(guestConn.Closed())
}

func (s *DispatcherSuite) TestMalformedAndUnknownFramesAreDropped() {
	player, conn := s.guest()

	s.dispatcher.Handle(s.ctx, player, []byte("not json"))
	s.dispatcher.Handle(s.ctx, player, []byte(`{"screen":"home"}`))
	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "selfDestruct"}))

	s.Empty(conn.Messages())
	s.False(conn.Closed())
}

func (s *DispatcherSuite) TestScreen() {
	player, _ := s.guest()

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "screen", "screen": "multiplayer"}))
	s.Equal(model.ScreenMultiplayer, player.Screen())

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "screen", "screen": "admin"}))
	s.Equal(model.ScreenMultiplayer, player.Screen())
}

// Matchmaking

func (s *DispatcherSuite) TestPublicDuelAndLeaveQueue() {
	player, _ := s.guest()

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "publicDuel"}))
	s.True(s.queue.Contains(player.ID))
	s.True(player.Queued())

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "leaveQueue"}))
	s.False(s.queue.Contains(player.ID))
	s.False(player.Queued())
}

// Private sessions

func (s *DispatcherSuite) TestCreatePrivateGame() {
	player, conn := s.guest()
	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "publicDuel"}))

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{
		"type": "createPrivateGame", "rounds": 3, "timePerRound": 30, "location": "all", "maxDist": 5000,
	}))

	session, ok := s.games.SessionFor(player)
	s.Require().True(ok)
	s.False(session.Public)
	s.False(s.queue.Contains(player.ID))

	snapshot, ok := testutil.LastOf[model.GameMessage](conn)
	s.Require().True(ok)
	s.Equal(3, snapshot.Rounds)
	s.Equal(int64(30000), snapshot.TimePerRound)
	s.Equal(5000.0, snapshot.MaxDist)
}

func (s *DispatcherSuite) TestCreatePrivateGameOutOfBoundsIsDropped() {
	player, conn := s.guest()

	for _, fields := range []map[string]any{
		{"type": "createPrivateGame", "rounds": 0, "timePerRound": 30, "location": "all"},
		{"type": "createPrivateGame", "rounds": 21, "timePerRound": 30, "location": "all"},
		{"type": "createPrivateGame", "rounds": 3, "timePerRound": 9, "location": "all"},
		{"type": "createPrivateGame", "rounds": 3, "timePerRound": 301, "location": "all"},
		{"type": "createPrivateGame", "rounds": 3, "timePerRound": 30},
		{"type": "createPrivateGame", "rounds": 3, "timePerRound": 30, "location": "all", "maxDist": -1},
		{"type": "createPrivateGame", "rounds": "three", "timePerRound": 30, "location": "all"},
	} {
		s.dispatcher.Handle(s.ctx, player, frame(fields))
	}

	s.Empty(player.SessionID())
	s.Equal(0, s.games.Count())
	s.Empty(conn.Messages())
}

func (s *DispatcherSuite) TestCreatePrivateGameDuringMaintenance() {
	player, conn := s.guest()
	s.dispatcher.SetMaintenance(true)

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{
		"type": "createPrivateGame", "rounds": 3, "timePerRound": 30, "location": "all",
	}))

	s.Equal(0, s.games.Count())
	s.Equal([]string{model.ToastMaintenanceStarted}, testutil.Toasts(conn))
	toast, _ := testutil.LastOf[model.ToastMessage](conn)
	s.Equal(model.ToastError, toast.ToastType)
}

func (s *DispatcherSuite) TestJoinPrivateGame() {
	host, _ := s.guest()
	s.dispatcher.Handle(s.ctx, host, frame(map[string]any{
		"type": "createPrivateGame", "rounds": 3, "timePerRound": 30, "location": "all",
	}))
	session, ok := s.games.SessionFor(host)
	s.Require().True(ok)

	joiner, conn := s.guest()
	s.dispatcher.Handle(s.ctx, joiner, frame(map[string]any{"type": "publicDuel"}))
	s.dispatcher.Handle(s.ctx, joiner, frame(map[string]any{"type": "joinPrivateGame", "gameCode": session.Code}))

	s.Equal(session.ID, joiner.SessionID())
	s.False(s.queue.Contains(joiner.ID))
	s.Empty(testutil.MessagesOf[model.GameJoinErrorMessage](conn))
}

func (s *DispatcherSuite) TestJoinPrivateGameWithBadCode() {
	player, conn := s.guest()

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "joinPrivateGame", "gameCode": "999999"}))
	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "joinPrivateGame"}))

	s.Equal([]model.GameJoinErrorMessage{
		{Type: model.MsgGameJoinError, Error: model.ErrTextInvalidCode},
		{Type: model.MsgGameJoinError, Error: model.ErrTextInvalidCode},
	}, testutil.MessagesOf[model.GameJoinErrorMessage](conn))
}

func (s *DispatcherSuite) TestStartGameHostAndPlace() {
	host, hostConn := s.guest()
	s.dispatcher.Handle(s.ctx, host, frame(map[string]any{
		"type": "createPrivateGame", "rounds": 1, "timePerRound": 30, "location": "all",
	}))
	session, _ := s.games.SessionFor(host)
	other, _ := s.guest()
	s.dispatcher.Handle(s.ctx, other, frame(map[string]any{"type": "joinPrivateGame", "gameCode": session.Code}))

	s.dispatcher.Handle(s.ctx, other, frame(map[string]any{"type": "startGameHost"}))
	s.Equal(model.SessionStateWaiting, session.Info().State)

	s.dispatcher.Handle(s.ctx, host, frame(map[string]any{"type": "startGameHost"}))
	s.Equal(model.SessionStateGetReady, session.Info().State)

	s.clock.Advance(game.GetReadyDuration + time.Millisecond)
	s.games.Tick(s.clock.Now())
	s.Require().Equal(model.SessionStateGuess, session.Info().State)
	hostConn.Reset()

	// Malformed guesses are dropped before reaching the session
	s.dispatcher.Handle(s.ctx, host, frame(map[string]any{"type": "place", "latLong": []float64{1}, "final": true}))
	s.dispatcher.Handle(s.ctx, host, frame(map[string]any{"type": "place", "latLong": []float64{1, 2}}))
	s.Empty(testutil.MessagesOf[model.PlaceMessage](hostConn))

	s.dispatcher.Handle(s.ctx, host, frame(map[string]any{"type": "place", "latLong": []float64{1, 2}, "final": true, "round": 1}))
	place, ok := testutil.LastOf[model.PlaceMessage](hostConn)
	s.Require().True(ok)
	s.Equal(model.PlaceMessage{Type: model.MsgPlace, ID: host.ID, Final: true, LatLong: model.LatLong{1, 2}}, place)
}

func (s *DispatcherSuite) TestChatAndLeaveGame() {
	host, hostConn := s.guest()
	s.dispatcher.Handle(s.ctx, host, frame(map[string]any{
		"type": "createPrivateGame", "rounds": 1, "timePerRound": 30, "location": "all",
	}))
	session, _ := s.games.SessionFor(host)
	other, _ := s.guest()
	s.dispatcher.Handle(s.ctx, other, frame(map[string]any{"type": "joinPrivateGame", "gameCode": session.Code}))

	s.dispatcher.Handle(s.ctx, other, frame(map[string]any{"type": "chat", "message": "hello"}))
	msg, ok := testutil.LastOf[model.ChatMessage](hostConn)
	s.Require().True(ok)
	s.Equal("hello", msg.Message)
	s.Equal(other.ID, msg.ID)

	s.dispatcher.Handle(s.ctx, other, frame(map[string]any{"type": "leaveGame"}))
	s.Empty(other.SessionID())
	s.False(session.HasMember(other.ID))
}

// Social

func (s *DispatcherSuite) TestSendFriendRequestWithBadNameIsInvalid() {
	player, conn := s.guest()

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "sendFriendRequest", "name": "a b"}))

	s.Equal([]model.FriendReqStateMessage{{Type: model.MsgFriendReqState, State: model.FriendReqInvalid}},
		testutil.MessagesOf[model.FriendReqStateMessage](conn))
}

func (s *DispatcherSuite) TestFriendRequestRoundTrip() {
	for _, name := range []string{"alice", "bobby"} {
		account := model.NewAccount(model.AccountID("acct-"+name), name, "tok-"+name, s.clock.Now())
		s.Require().NoError(s.storage.CreateAccount(s.ctx, account))
	}
	alice, _ := s.open()
	bob, bobConn := s.open()
	s.dispatcher.Handle(s.ctx, alice, frame(map[string]any{"type": "verify", "secret": "tok-alice"}))
	s.dispatcher.Handle(s.ctx, bob, frame(map[string]any{"type": "verify", "secret": "tok-bobby"}))

	s.dispatcher.Handle(s.ctx, alice, frame(map[string]any{"type": "sendFriendRequest", "name": "bobby"}))
	req, ok := testutil.LastOf[model.FriendReqMessage](bobConn)
	s.Require().True(ok)
	s.Equal(model.AccountID("acct-alice"), req.ID)

	s.dispatcher.Handle(s.ctx, bob, frame(map[string]any{"type": "acceptFriend", "id": "acct-alice"}))
	s.Len(alice.Social().Friends, 1)
	s.Len(bob.Social().Friends, 1)

	s.dispatcher.Handle(s.ctx, bob, frame(map[string]any{"type": "removeFriend", "id": "acct-alice"}))
	s.Empty(alice.Social().Friends)
	s.Empty(bob.Social().Friends)
}

func (s *DispatcherSuite) TestSetAllowFriendReqRequiresBoolean() {
	account := model.NewAccount("acct-carol", "carol", "tok-carol", s.clock.Now())
	s.Require().NoError(s.storage.CreateAccount(s.ctx, account))
	player, conn := s.open()
	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "verify", "secret": "tok-carol"}))

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "setAllowFriendReq", "allow": "no"}))
	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "setAllowFriendReq"}))
	s.True(player.Social().AllowFriendReq)

	s.dispatcher.Handle(s.ctx, player, frame(map[string]any{"type": "setAllowFriendReq", "allow": false}))
	s.False(player.Social().AllowFriendReq)
	s.Contains(testutil.Toasts(conn), model.ToastPreferenceUpdated)
}
