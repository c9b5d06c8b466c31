package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/storage"
)

// Storage is an in-memory implementation of the account store
type Storage struct {
	mu sync.RWMutex

	accounts   map[model.AccountID]*model.Account
	tokenIndex map[string]model.AccountID
	nameIndex  map[string]model.AccountID
	edges      map[edgeKey]model.FriendEdge
	// adjacency lists the counterparts of every edge touching an account
	adjacency map[model.AccountID]map[model.AccountID]struct{}
}

type edgeKey struct {
	a model.AccountID
	b model.AccountID
}

func keyFor(x, y model.AccountID) edgeKey {
	a, b := model.EdgeKey(x, y)
	return edgeKey{a: a, b: b}
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts:   make(map[model.AccountID]*model.Account),
		tokenIndex: make(map[string]model.AccountID),
		nameIndex:  make(map[string]model.AccountID),
		edges:      make(map[edgeKey]model.FriendEdge),
		adjacency:  make(map[model.AccountID]map[model.AccountID]struct{}),
	}
}

// Ensure Storage implements the interface
var _ storage.AccountStore = (*Storage)(nil)

// Close is a no-op for the in-memory store
func (s *Storage) Close() error {
	return nil
}

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := model.NormalizedUsername(account.Username)
	if _, exists := s.nameIndex[name]; exists {
		return model.ErrUsernameExists
	}

	stored := cloneAccount(account)
	stored.Secret = ""
	s.accounts[account.ID] = stored
	s.nameIndex[name] = account.ID
	if account.Secret != "" {
		s.tokenIndex[storage.TokenDigest(account.Secret)] = account.ID
	}
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

func (s *Storage) GetAccountByToken(ctx context.Context, token string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tokenIndex[storage.TokenDigest(token)]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.nameIndex[model.NormalizedUsername(username)]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *Storage) GetAccounts(ctx context.Context, ids []model.AccountID) (map[model.AccountID]*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[model.AccountID]*model.Account, len(ids))
	for _, id := range ids {
		if account, ok := s.accounts[id]; ok {
			result[id] = cloneAccount(account)
		}
	}
	return result, nil
}

func (s *Storage) RecordLogin(ctx context.Context, id model.AccountID, update model.LoginUpdate) error {
	return s.update(id, func(a *model.Account) { a.ApplyLogin(update) })
}

func (s *Storage) SetAllowFriendReq(ctx context.Context, id model.AccountID, allow bool) error {
	return s.update(id, func(a *model.Account) { a.AllowFriendReq = allow })
}

func (s *Storage) ApplyRatingChange(ctx context.Context, id model.AccountID, change model.RatingChange) error {
	return s.update(id, func(a *model.Account) { a.Apply(change) })
}

func (s *Storage) update(id model.AccountID, fn func(*model.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	fn(account)
	return nil
}

// Friend edge operations

func (s *Storage) GetEdges(ctx context.Context, id model.AccountID) ([]model.FriendEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]model.FriendEdge, 0, len(s.adjacency[id]))
	for other := range s.adjacency[id] {
		edges = append(edges, s.edges[keyFor(id, other)])
	}
	slices.SortFunc(edges, func(x, y model.FriendEdge) int {
		return cmp.Compare(x.Other(id), y.Other(id))
	})
	return edges, nil
}

func (s *Storage) CreateFriendRequest(ctx context.Context, from, to model.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(from, to)
	if _, exists := s.edges[key]; exists {
		return model.ErrEdgeExists
	}
	s.edges[key] = model.FriendEdge{From: from, To: to, Status: model.EdgePending}
	s.link(from, to)
	return nil
}

func (s *Storage) AcceptFriendRequest(ctx context.Context, requester, recipient model.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(requester, recipient)
	edge, ok := s.edges[key]
	if !ok || edge.Status != model.EdgePending || edge.From != requester {
		return model.ErrEdgeNotFound
	}
	edge.Status = model.EdgeAccepted
	s.edges[key] = edge
	return nil
}

func (s *Storage) DeleteFriendRequest(ctx context.Context, requester, recipient model.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(requester, recipient)
	edge, ok := s.edges[key]
	if !ok || edge.Status != model.EdgePending || edge.From != requester {
		return model.ErrEdgeNotFound
	}
	s.unlink(key, requester, recipient)
	return nil
}

func (s *Storage) DeleteFriendship(ctx context.Context, a, b model.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(a, b)
	edge, ok := s.edges[key]
	if !ok || edge.Status != model.EdgeAccepted {
		return model.ErrEdgeNotFound
	}
	s.unlink(key, a, b)
	return nil
}

func (s *Storage) link(a, b model.AccountID) {
	for _, pair := range [][2]model.AccountID{{a, b}, {b, a}} {
		if s.adjacency[pair[0]] == nil {
			s.adjacency[pair[0]] = make(map[model.AccountID]struct{})
		}
		s.adjacency[pair[0]][pair[1]] = struct{}{}
	}
}

func (s *Storage) unlink(key edgeKey, a, b model.AccountID) {
	delete(s.edges, key)
	delete(s.adjacency[a], b)
	delete(s.adjacency[b], a)
}

func cloneAccount(a *model.Account) *model.Account {
	c := *a
	c.RatingHistory = slices.Clone(a.RatingHistory)
	return &c
}
