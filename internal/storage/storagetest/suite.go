// Package storagetest holds the behavior every AccountStore backend must share.
// Backend test packages embed AccountStoreSuite and set NewStore in SetupTest.
package storagetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/storage"
)

// AccountStoreSuite exercises the AccountStore contract
type AccountStoreSuite struct {
	suite.Suite
	Store storage.AccountStore
	Ctx   context.Context
	Now   time.Time
}

// Init sets the store under test; call it from the embedding suite's SetupTest
func (s *AccountStoreSuite) Init(store storage.AccountStore) {
	s.Store = store
	s.Ctx = context.Background()
	s.Now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *AccountStoreSuite) createAccount(id, name, secret string) *model.Account {
	account := model.NewAccount(model.AccountID(id), name, secret, s.Now)
	s.Require().NoError(s.Store.CreateAccount(s.Ctx, account))
	return account
}

// Account tests

func (s *AccountStoreSuite) TestCreateAndGetAccount() {
	s.createAccount("u1", "Alice", "secret-1")

	account, err := s.Store.GetAccount(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal(model.AccountID("u1"), account.ID)
	s.Equal("Alice", account.Username)
	s.Equal(model.InitialRating, account.Rating)
	s.True(account.AllowFriendReq)
	s.Empty(account.Secret)
}

func (s *AccountStoreSuite) TestGetAccountNotFound() {
	_, err := s.Store.GetAccount(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *AccountStoreSuite) TestCreateAccountRejectsDuplicateUsername() {
	s.createAccount("u1", "Alice", "secret-1")

	err := s.Store.CreateAccount(s.Ctx, model.NewAccount("u2", "alice", "secret-2", s.Now))
	s.ErrorIs(err, model.ErrUsernameExists)
}

func (s *AccountStoreSuite) TestGetAccountByToken() {
	s.createAccount("u1", "Alice", "secret-1")

	account, err := s.Store.GetAccountByToken(s.Ctx, "secret-1")
	s.Require().NoError(err)
	s.Equal(model.AccountID("u1"), account.ID)

	_, err = s.Store.GetAccountByToken(s.Ctx, "wrong")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *AccountStoreSuite) TestGetAccountByUsernameIsCaseInsensitive() {
	s.createAccount("u1", "Alice_99", "secret-1")

	account, err := s.Store.GetAccountByUsername(s.Ctx, "aLiCe_99")
	s.Require().NoError(err)
	s.Equal(model.AccountID("u1"), account.ID)

	_, err = s.Store.GetAccountByUsername(s.Ctx, "bob")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *AccountStoreSuite) TestGetAccountsSkipsUnknownIDs() {
	s.createAccount("u1", "Alice", "s1")
	s.createAccount("u2", "Bob", "s2")

	accounts, err := s.Store.GetAccounts(s.Ctx, []model.AccountID{"u1", "missing", "u2"})
	s.Require().NoError(err)
	s.Len(accounts, 2)
	s.Equal("Alice", accounts["u1"].Username)
	s.Equal("Bob", accounts["u2"].Username)
}

func (s *AccountStoreSuite) TestRecordLogin() {
	s.createAccount("u1", "Alice", "s1")
	login := s.Now.Add(time.Hour)

	err := s.Store.RecordLogin(s.Ctx, "u1", model.LoginUpdate{LastLogin: login})
	s.Require().NoError(err)

	account, err := s.Store.GetAccount(s.Ctx, "u1")
	s.Require().NoError(err)
	s.True(login.Equal(account.LastLogin))
	s.False(account.FirstLoginComplete)

	err = s.Store.RecordLogin(s.Ctx, "u1", model.LoginUpdate{
		LastLogin: login,
		TimeZone:  "Europe/Berlin",
		Streak:    3,
		SetStreak: true,
	})
	s.Require().NoError(err)

	account, err = s.Store.GetAccount(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal("Europe/Berlin", account.TimeZone)
	s.Equal(3, account.Streak)
	s.True(account.FirstLoginComplete)
}

func (s *AccountStoreSuite) TestRecordLoginUnknownAccount() {
	err := s.Store.RecordLogin(s.Ctx, "missing", model.LoginUpdate{LastLogin: s.Now})
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *AccountStoreSuite) TestSetAllowFriendReq() {
	s.createAccount("u1", "Alice", "s1")

	s.Require().NoError(s.Store.SetAllowFriendReq(s.Ctx, "u1", false))

	account, err := s.Store.GetAccount(s.Ctx, "u1")
	s.Require().NoError(err)
	s.False(account.AllowFriendReq)
}

func (s *AccountStoreSuite) TestApplyRatingChange() {
	s.createAccount("u1", "Alice", "s1")

	err := s.Store.ApplyRatingChange(s.Ctx, "u1", model.RatingChange{
		NewRating: 1042, OldRating: 1000, Winner: true, At: s.Now,
	})
	s.Require().NoError(err)
	err = s.Store.ApplyRatingChange(s.Ctx, "u1", model.RatingChange{
		NewRating: 1030, OldRating: 1042, At: s.Now.Add(time.Minute),
	})
	s.Require().NoError(err)
	err = s.Store.ApplyRatingChange(s.Ctx, "u1", model.RatingChange{
		NewRating: 1031, OldRating: 1030, Draw: true, At: s.Now.Add(2 * time.Minute),
	})
	s.Require().NoError(err)

	account, err := s.Store.GetAccount(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal(1031, account.Rating)
	s.Equal(model.DuelStats{Played: 3, Wins: 1, Losses: 1, Tied: 1}, account.Duels)
	s.Equal(31, account.RatingToday)
	s.Len(account.RatingHistory, 3)
}

func (s *AccountStoreSuite) TestApplyRatingChangeResetsTodayOnNewDay() {
	s.createAccount("u1", "Alice", "s1")

	s.Require().NoError(s.Store.ApplyRatingChange(s.Ctx, "u1", model.RatingChange{
		NewRating: 1020, OldRating: 1000, Winner: true, At: s.Now,
	}))
	s.Require().NoError(s.Store.ApplyRatingChange(s.Ctx, "u1", model.RatingChange{
		NewRating: 1010, OldRating: 1020, At: s.Now.Add(24 * time.Hour),
	}))

	account, err := s.Store.GetAccount(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal(-10, account.RatingToday)
}

// Friend edge tests

func (s *AccountStoreSuite) TestFriendRequestLifecycle() {
	s.createAccount("u1", "Alice", "s1")
	s.createAccount("u2", "Bob", "s2")

	s.Require().NoError(s.Store.CreateFriendRequest(s.Ctx, "u1", "u2"))

	edges, err := s.Store.GetEdges(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal([]model.FriendEdge{{From: "u1", To: "u2", Status: model.EdgePending}}, edges)

	rel := model.RelationshipsFor("u2", mustEdges(s, "u2"))
	s.Equal([]model.AccountID{"u1"}, rel.Received)

	s.Require().NoError(s.Store.AcceptFriendRequest(s.Ctx, "u1", "u2"))

	rel = model.RelationshipsFor("u1", mustEdges(s, "u1"))
	s.Equal([]model.AccountID{"u2"}, rel.Friends)
	s.Empty(rel.Sent)
	rel = model.RelationshipsFor("u2", mustEdges(s, "u2"))
	s.Equal([]model.AccountID{"u1"}, rel.Friends)
	s.Empty(rel.Received)

	s.Require().NoError(s.Store.DeleteFriendship(s.Ctx, "u2", "u1"))
	s.Empty(mustEdges(s, "u1"))
	s.Empty(mustEdges(s, "u2"))
}

func (s *AccountStoreSuite) TestCreateFriendRequestRejectsExistingEdge() {
	s.Require().NoError(s.Store.CreateFriendRequest(s.Ctx, "u1", "u2"))

	s.ErrorIs(s.Store.CreateFriendRequest(s.Ctx, "u1", "u2"), model.ErrEdgeExists)
	// The reverse direction maps onto the same edge
	s.ErrorIs(s.Store.CreateFriendRequest(s.Ctx, "u2", "u1"), model.ErrEdgeExists)
}

func (s *AccountStoreSuite) TestAcceptRequiresPendingFromRequester() {
	s.Require().NoError(s.Store.CreateFriendRequest(s.Ctx, "u1", "u2"))

	// Only the recipient side can accept
	s.ErrorIs(s.Store.AcceptFriendRequest(s.Ctx, "u2", "u1"), model.ErrEdgeNotFound)
	s.ErrorIs(s.Store.AcceptFriendRequest(s.Ctx, "u1", "u3"), model.ErrEdgeNotFound)
}

func (s *AccountStoreSuite) TestDeleteFriendRequest() {
	s.Require().NoError(s.Store.CreateFriendRequest(s.Ctx, "u1", "u2"))

	s.ErrorIs(s.Store.DeleteFriendRequest(s.Ctx, "u2", "u1"), model.ErrEdgeNotFound)
	s.Require().NoError(s.Store.DeleteFriendRequest(s.Ctx, "u1", "u2"))
	s.Empty(mustEdges(s, "u1"))
	s.Empty(mustEdges(s, "u2"))
	s.ErrorIs(s.Store.DeleteFriendRequest(s.Ctx, "u1", "u2"), model.ErrEdgeNotFound)
}

func (s *AccountStoreSuite) TestDeleteFriendshipRequiresAcceptedEdge() {
	s.Require().NoError(s.Store.CreateFriendRequest(s.Ctx, "u1", "u2"))

	s.ErrorIs(s.Store.DeleteFriendship(s.Ctx, "u1", "u2"), model.ErrEdgeNotFound)
	s.Len(mustEdges(s, "u1"), 1)
}

func (s *AccountStoreSuite) TestGetEdgesIsStable() {
	s.Require().NoError(s.Store.CreateFriendRequest(s.Ctx, "u1", "u3"))
	s.Require().NoError(s.Store.CreateFriendRequest(s.Ctx, "u2", "u1"))
	s.Require().NoError(s.Store.CreateFriendRequest(s.Ctx, "u1", "u4"))

	first := mustEdges(s, "u1")
	second := mustEdges(s, "u1")
	s.Equal(first, second)
	s.Len(first, 3)
	s.Equal(model.AccountID("u2"), first[0].Other("u1"))
	s.Equal(model.AccountID("u4"), first[2].Other("u1"))
}

func mustEdges(s *AccountStoreSuite, id model.AccountID) []model.FriendEdge {
	edges, err := s.Store.GetEdges(s.Ctx, id)
	s.Require().NoError(err)
	return edges
}
