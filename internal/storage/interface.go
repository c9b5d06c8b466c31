package storage

import (
	"context"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/mcoot/geoduel/internal/model"
)

// AccountStore defines the persistence the session server needs from the
// account database. Friend relationships are stored as one edge per
// account pair and every edge mutation is a single atomic write.
type AccountStore interface {
	// Account operations
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error)
	GetAccountByToken(ctx context.Context, token string) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	// GetAccounts resolves ids in bulk; unknown ids are absent from the result
	GetAccounts(ctx context.Context, ids []model.AccountID) (map[model.AccountID]*model.Account, error)
	RecordLogin(ctx context.Context, id model.AccountID, update model.LoginUpdate) error
	SetAllowFriendReq(ctx context.Context, id model.AccountID, allow bool) error
	ApplyRatingChange(ctx context.Context, id model.AccountID, change model.RatingChange) error

	// Friend edge operations
	GetEdges(ctx context.Context, id model.AccountID) ([]model.FriendEdge, error)
	CreateFriendRequest(ctx context.Context, from, to model.AccountID) error
	AcceptFriendRequest(ctx context.Context, requester, recipient model.AccountID) error
	DeleteFriendRequest(ctx context.Context, requester, recipient model.AccountID) error
	DeleteFriendship(ctx context.Context, a, b model.AccountID) error

	Close() error
}

// TokenDigest is the lookup key stores use for account secrets, so the
// raw secret is never written to the backing store
func TokenDigest(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
