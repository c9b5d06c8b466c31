package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.AccountStoreSuite
	store *Storage
}

func (s *StorageSuite) SetupTest() {
	cfg := DefaultConfig()
	cfg.Path = ":memory:"

	store, err := New(cfg)
	s.Require().NoError(err)
	s.store = store
	s.Init(store)
}

func (s *StorageSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) TestSecretIsStoredAsDigest() {
	s.Require().NoError(s.store.CreateAccount(s.Ctx, model.NewAccount("u1", "Alice", "secret-1", s.Now)))

	var digest string
	err := s.store.db.QueryRowContext(s.Ctx, "SELECT secret_digest FROM accounts WHERE id = ?", "u1").Scan(&digest)
	s.Require().NoError(err)
	s.NotEqual("secret-1", digest)
	s.Len(digest, 64)
}

func (s *StorageSuite) TestAccountsWithoutSecretDoNotCollide() {
	s.Require().NoError(s.store.CreateAccount(s.Ctx, model.NewAccount("u1", "Alice", "", s.Now)))
	s.Require().NoError(s.store.CreateAccount(s.Ctx, model.NewAccount("u2", "Bob", "", s.Now)))
}

func (s *StorageSuite) TestEdgeIsOneRowPerPair() {
	s.Require().NoError(s.store.CreateFriendRequest(s.Ctx, "u2", "u1"))

	var a, b, requester string
	err := s.store.db.QueryRowContext(s.Ctx,
		"SELECT account_a, account_b, requester FROM friend_edges").Scan(&a, &b, &requester)
	s.Require().NoError(err)
	s.Equal("u1", a)
	s.Equal("u2", b)
	s.Equal("u2", requester)
}

func (s *StorageSuite) TestDataSurvivesReopen() {
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(s.T().TempDir(), "geoduel.db")

	store, err := New(cfg)
	s.Require().NoError(err)
	s.Require().NoError(store.CreateAccount(s.Ctx, model.NewAccount("u1", "Alice", "s1", s.Now)))
	s.Require().NoError(store.ApplyRatingChange(s.Ctx, "u1", model.RatingChange{
		NewRating: 1016, OldRating: 1000, Winner: true, At: s.Now,
	}))
	s.Require().NoError(store.Close())

	store, err = New(cfg)
	s.Require().NoError(err)
	defer store.Close()

	account, err := store.GetAccountByToken(s.Ctx, "s1")
	s.Require().NoError(err)
	s.Equal(1016, account.Rating)
	s.Len(account.RatingHistory, 1)
	s.True(s.Now.Equal(account.CreatedAt))
}
