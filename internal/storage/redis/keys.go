package redis

import (
	"fmt"

	"github.com/mcoot/geoduel/internal/model"
)

// Key prefix for all account data
const keyPrefix = "geoduel"

// accountKey returns the Redis key for an Account
func accountKey(id model.AccountID) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, id)
}

// tokenIndexKey returns the Redis key for the token digest -> account_id index
func tokenIndexKey(digest string) string {
	return fmt.Sprintf("%s:idx:token:%s", keyPrefix, digest)
}

// usernameIndexKey returns the Redis key for the lowercased username -> account_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, model.NormalizedUsername(username))
}

// edgeKey returns the Redis key for the single edge between two accounts
func edgeKey(x, y model.AccountID) string {
	a, b := model.EdgeKey(x, y)
	return fmt.Sprintf("%s:edge:%s:%s", keyPrefix, a, b)
}

// adjacencyKey returns the Redis key for the SET of counterparts of an account
func adjacencyKey(id model.AccountID) string {
	return fmt.Sprintf("%s:idx:edges:%s", keyPrefix, id)
}
