package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/storage"
)

var errTxRetriesExhausted = errors.New("redis transaction retries exhausted")

// Storage is a Redis-backed implementation of the account store
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.AccountStore = (*Storage)(nil)

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	nameKey := usernameIndexKey(account.Username)
	return s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, nameKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrUsernameExists
		}

		// Account, username index and token index are written together
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, accountKey(account.ID), data, 0)
			pipe.Set(ctx, nameKey, string(account.ID), 0)
			if account.Secret != "" {
				pipe.Set(ctx, tokenIndexKey(storage.TokenDigest(account.Secret)), string(account.ID), 0)
			}
			return nil
		})
		return err
	}, nameKey)
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	data, err := s.client.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Storage) GetAccountByToken(ctx context.Context, token string) (*model.Account, error) {
	return s.getByIndex(ctx, tokenIndexKey(storage.TokenDigest(token)))
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return s.getByIndex(ctx, usernameIndexKey(username))
}

func (s *Storage) getByIndex(ctx context.Context, indexKey string) (*model.Account, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetAccount(ctx, model.AccountID(id))
}

func (s *Storage) GetAccounts(ctx context.Context, ids []model.AccountID) (map[model.AccountID]*model.Account, error) {
	result := make(map[model.AccountID]*model.Account, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = accountKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // Missing account
		}
		var account model.Account
		if err := json.Unmarshal([]byte(str), &account); err != nil {
			return nil, err
		}
		result[account.ID] = &account
	}
	return result, nil
}

func (s *Storage) RecordLogin(ctx context.Context, id model.AccountID, update model.LoginUpdate) error {
	return s.updateAccount(ctx, id, func(a *model.Account) { a.ApplyLogin(update) })
}

func (s *Storage) SetAllowFriendReq(ctx context.Context, id model.AccountID, allow bool) error {
	return s.updateAccount(ctx, id, func(a *model.Account) { a.AllowFriendReq = allow })
}

func (s *Storage) ApplyRatingChange(ctx context.Context, id model.AccountID, change model.RatingChange) error {
	return s.updateAccount(ctx, id, func(a *model.Account) { a.Apply(change) })
}

// updateAccount performs an optimistic read-modify-write of one account
func (s *Storage) updateAccount(ctx context.Context, id model.AccountID, fn func(*model.Account)) error {
	key := accountKey(id)
	return s.watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrAccountNotFound
			}
			return err
		}

		var account model.Account
		if err := json.Unmarshal(data, &account); err != nil {
			return err
		}
		fn(&account)

		updated, err := json.Marshal(&account)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
}

// Friend edge operations

func (s *Storage) GetEdges(ctx context.Context, id model.AccountID) ([]model.FriendEdge, error) {
	others, err := s.client.SMembers(ctx, adjacencyKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(others) == 0 {
		return []model.FriendEdge{}, nil
	}

	keys := make([]string, len(others))
	for i, other := range others {
		keys[i] = edgeKey(id, model.AccountID(other))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	edges := make([]model.FriendEdge, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var edge model.FriendEdge
		if err := json.Unmarshal([]byte(str), &edge); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}

	slices.SortFunc(edges, func(x, y model.FriendEdge) int {
		return cmp.Compare(x.Other(id), y.Other(id))
	})
	return edges, nil
}

func (s *Storage) CreateFriendRequest(ctx context.Context, from, to model.AccountID) error {
	key := edgeKey(from, to)
	edge := model.FriendEdge{From: from, To: to, Status: model.EdgePending}
	data, err := json.Marshal(edge)
	if err != nil {
		return err
	}

	return s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrEdgeExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, adjacencyKey(from), string(to))
			pipe.SAdd(ctx, adjacencyKey(to), string(from))
			return nil
		})
		return err
	}, key)
}

func (s *Storage) AcceptFriendRequest(ctx context.Context, requester, recipient model.AccountID) error {
	key := edgeKey(requester, recipient)
	return s.watch(ctx, func(tx *redis.Tx) error {
		edge, err := getEdge(ctx, tx, key)
		if err != nil {
			return err
		}
		if edge.Status != model.EdgePending || edge.From != requester {
			return model.ErrEdgeNotFound
		}

		edge.Status = model.EdgeAccepted
		data, err := json.Marshal(edge)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
}

func (s *Storage) DeleteFriendRequest(ctx context.Context, requester, recipient model.AccountID) error {
	return s.deleteEdge(ctx, requester, recipient, func(edge *model.FriendEdge) bool {
		return edge.Status == model.EdgePending && edge.From == requester
	})
}

func (s *Storage) DeleteFriendship(ctx context.Context, a, b model.AccountID) error {
	return s.deleteEdge(ctx, a, b, func(edge *model.FriendEdge) bool {
		return edge.Status == model.EdgeAccepted
	})
}

// deleteEdge removes the edge and both adjacency entries in one transaction
// when match accepts the current edge
func (s *Storage) deleteEdge(ctx context.Context, a, b model.AccountID, match func(*model.FriendEdge) bool) error {
	key := edgeKey(a, b)
	return s.watch(ctx, func(tx *redis.Tx) error {
		edge, err := getEdge(ctx, tx, key)
		if err != nil {
			return err
		}
		if !match(edge) {
			return model.ErrEdgeNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, adjacencyKey(a), string(b))
			pipe.SRem(ctx, adjacencyKey(b), string(a))
			return nil
		})
		return err
	}, key)
}

func getEdge(ctx context.Context, tx *redis.Tx, key string) (*model.FriendEdge, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrEdgeNotFound
		}
		return nil, err
	}

	var edge model.FriendEdge
	if err := json.Unmarshal(data, &edge); err != nil {
		return nil, err
	}
	return &edge, nil
}

// watch runs txf under WATCH on keys, retrying when a watched key changed
func (s *Storage) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for range max(s.cfg.MaxTxRetries, 1) {
		err := s.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return errTxRetriesExhausted
}
