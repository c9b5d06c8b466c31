package memory

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.AccountStoreSuite
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.Init(s.storage)
}

func (s *StorageSuite) TestReturnedAccountsAreCopies() {
	s.Require().NoError(s.storage.CreateAccount(s.Ctx, model.NewAccount("u1", "Alice", "s1", s.Now)))

	account, err := s.storage.GetAccount(s.Ctx, "u1")
	s.Require().NoError(err)
	account.Rating = 5

	again, err := s.storage.GetAccount(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal(model.InitialRating, again.Rating)
}
