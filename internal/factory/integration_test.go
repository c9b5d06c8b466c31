package factory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/game"
	"github.com/mcoot/geoduel/internal/testutil"
)

type client struct {
	player *model.Player
	conn   *testutil.FakeConn
}

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
	for _, name := range []string{"alice", "bobby"} {
		account := model.NewAccount(model.AccountID("acct-"+name), name, "tok-"+name, s.app.MockClock.Now())
		s.Require().NoError(s.app.Storage.CreateAccount(s.ctx, account))
	}
}

func (s *IntegrationSuite) send(c client, fields map[string]any) {
	data, err := json.Marshal(fields)
	s.Require().NoError(err)
	s.app.Dispatcher.Handle(s.ctx, c.player, data)
}

// connect opens a connection and verifies it; an empty token logs in as a guest
func (s *IntegrationSuite) connect(token string) client {
	conn := testutil.NewFakeConn()
	c := client{player: s.app.Dispatcher.Open(conn), conn: conn}
	if token == "" {
		s.send(c, map[string]any{"type": "verify"})
	} else {
		s.send(c, map[string]any{"type": "verify", "secret": token, "tz": "UTC"})
	}
	s.Require().True(c.player.Identity().Verified)
	return c
}

func (s *IntegrationSuite) rating(id model.AccountID) int {
	account, err := s.app.Storage.GetAccount(s.ctx, id)
	s.Require().NoError(err)
	return account.Rating
}

// startDuel queues both clients and runs the queue until their session starts
func (s *IntegrationSuite) startDuel(a, b client) *game.Session {
	s.send(a, map[string]any{"type": "publicDuel"})
	s.send(b, map[string]any{"type": "publicDuel"})

	s.app.Queue.Tick(s.ctx)
	s.app.Queue.Tick(s.ctx)

	session, ok := s.app.GameController.SessionFor(a.player)
	s.Require().True(ok)
	s.Require().Equal(session.ID, b.player.SessionID())
	info := session.Info()
	s.Require().Equal(model.SessionStateGetReady, info.State)
	s.Require().True(info.Ranked)
	return session
}

func (s *IntegrationSuite) waitForGuess(session *game.Session) {
	s.app.Advance(model.DefaultWaitBetweenRounds + time.Millisecond)
	s.Require().Equal(model.SessionStateGuess, session.Info().State)
}

func (s *IntegrationSuite) place(c client, latLong model.LatLong, round int) {
	s.send(c, map[string]any{"type": "place", "latLong": latLong, "final": true, "round": round})
}

// Test: two accounts are matched, play every round, and both ratings move
func (s *IntegrationSuite) TestRankedDuel() {
	alice := s.connect("tok-alice")
	bob := s.connect("tok-bobby")
	session := s.startDuel(alice, bob)

	target := model.LatLong{TestLocation.Lat, TestLocation.Long}
	for round := 1; round <= model.DefaultRounds; round++ {
		s.waitForGuess(session)
		s.place(alice, target, round)
		s.place(bob, model.LatLong{-40, -170}, round)
		s.app.Advance(2 * time.Second)
		s.Require().Equal(model.SessionStateGetReady, session.Info().State)
	}

	// The last get-ready only ends the game
	s.app.Advance(model.DefaultWaitBetweenRounds + time.Millisecond)
	s.Equal(model.SessionStateEnd, session.Info().State)
	s.app.RatingUpdater.Wait()

	s.Greater(s.rating("acct-alice"), model.InitialRating)
	s.Less(s.rating("acct-bobby"), model.InitialRating)
	elo, ok := testutil.LastOf[model.EloMessage](alice.conn)
	s.Require().True(ok)
	s.Equal(s.rating("acct-alice"), elo.Elo)
	s.Equal(elo.Elo, alice.player.Identity().Rating)

	last, ok := testutil.LastOf[model.GameMessage](alice.conn)
	s.Require().True(ok)
	s.Len(last.Results, model.DefaultRounds)

	s.app.Advance(game.EndDuration + time.Millisecond)
	s.Equal(0, s.app.GameController.Count())
	s.NotEmpty(testutil.MessagesOf[model.GameShutdownMessage](bob.conn))
	s.Empty(alice.player.SessionID())
}

// Test: a private session waits for its host however long it takes
func (s *IntegrationSuite) TestPrivateSessionWaitsForHost() {
	host := s.connect("")
	guest := s.connect("")

	s.send(host, map[string]any{"type": "createPrivateGame", "rounds": 2, "timePerRound": 20, "location": "all"})
	session, ok := s.app.GameController.SessionFor(host.player)
	s.Require().True(ok)
	s.send(guest, map[string]any{"type": "joinPrivateGame", "gameCode": session.Code})
	s.Require().True(session.HasMember(guest.player.ID))

	s.app.Advance(time.Hour)
	s.app.Queue.Tick(s.ctx)
	s.Equal(model.SessionStateWaiting, session.Info().State)

	s.send(guest, map[string]any{"type": "startGameHost"})
	s.Equal(model.SessionStateWaiting, session.Info().State)

	s.send(host, map[string]any{"type": "leaveGame"})
	s.Equal(0, s.app.GameController.Count())
	s.NotEmpty(testutil.MessagesOf[model.GameShutdownMessage](guest.conn))
	s.Empty(guest.player.SessionID())
}

// Test: a player who drops mid-guess forfeits the ranked duel
func (s *IntegrationSuite) TestDisconnectMidGuessForfeits() {
	alice := s.connect("tok-alice")
	bob := s.connect("tok-bobby")
	session := s.startDuel(alice, bob)
	s.waitForGuess(session)

	// Bob is ahead on the round but leaves before it is scored
	s.place(bob, model.LatLong{TestLocation.Lat, TestLocation.Long}, 1)
	s.app.Dispatcher.Disconnect(bob.player)
	s.app.RatingUpdater.Wait()

	s.Less(s.rating("acct-bobby"), model.InitialRating)
	s.Greater(s.rating("acct-alice"), model.InitialRating)
	s.False(session.HasMember(bob.player.ID))
	s.True(session.HasMember(alice.player.ID))
	s.Equal(1, s.app.Registry.Count())

	removed, ok := testutil.LastOf[model.PlayerMessage](alice.conn)
	s.Require().True(ok)
	s.Equal(model.PlayerMessage{Type: model.MsgPlayer, Action: model.PlayerActionRemove, ID: bob.player.ID}, removed)
	s.False(session.Info().Ranked)
}

// Test: a second login with the same account is refused
func (s *IntegrationSuite) TestDuplicateLogin() {
	s.connect("tok-alice")

	conn := testutil.NewFakeConn()
	second := client{player: s.app.Dispatcher.Open(conn), conn: conn}
	s.send(second, map[string]any{"type": "verify", "secret": "tok-alice"})

	s.False(second.player.Identity().Verified)
	msg, ok := testutil.LastOf[model.ErrorMessage](conn)
	s.Require().True(ok)
	s.Equal(model.ErrTextDuplicate, msg.Message)
	s.True(conn.Closed())
}

// Test: friends invite each other into a private session
func (s *IntegrationSuite) TestFriendInviteFlow() {
	alice := s.connect("tok-alice")
	bob := s.connect("tok-bobby")

	s.send(alice, map[string]any{"type": "sendFriendRequest", "name": "bobby"})
	s.send(bob, map[string]any{"type": "acceptFriend", "id": "acct-alice"})
	s.Require().Len(alice.player.Social().Friends, 1)

	s.send(alice, map[string]any{"type": "createPrivateGame", "rounds": 3, "timePerRound": 60, "location": "FR"})
	session, ok := s.app.GameController.SessionFor(alice.player)
	s.Require().True(ok)

	s.send(alice, map[string]any{"type": "inviteFriend", "friendId": bob.player.ID})
	invite, ok := testutil.LastOf[model.InviteMessage](bob.conn)
	s.Require().True(ok)
	s.Equal(session.Code, invite.Code)
	s.Equal("alice", invite.InvitedByName)

	s.send(bob, map[string]any{"type": "acceptInvite", "code": invite.Code, "invitedById": invite.InvitedByID})
	s.True(session.HasMember(bob.player.ID))
	s.Contains(testutil.Toasts(alice.conn), model.ToastInviteAcceptedBy)

	s.send(alice, map[string]any{"type": "startGameHost"})
	s.Equal(model.SessionStateGetReady, session.Info().State)
}
