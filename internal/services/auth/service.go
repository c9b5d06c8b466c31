package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/mcoot/geoduel/internal/dependencies/clock"
	"github.com/mcoot/geoduel/internal/dependencies/random"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/rating"
	"github.com/mcoot/geoduel/internal/storage"
)

const (
	// GuestSecret is the placeholder clients send when they have no account
	GuestSecret = "not_logged_in"

	secretLength   = 32
	secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// VerifyRequest is the payload of a verify command. Secret is kept raw so
// a malformed token can be rejected before it reaches the store.
type VerifyRequest struct {
	Secret   json.RawMessage
	TimeZone string
}

// Accounts is the part of the connection registry verification needs
type Accounts interface {
	ClaimAccount(id model.ConnID, accountID model.AccountID) error
	Count() int
}

// Service verifies connections as guests or account holders
type Service struct {
	store    storage.AccountStore
	accounts Accounts
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger
}

// New creates a new AuthService
func New(store storage.AccountStore, accounts Accounts, clock clock.Clock, random random.Random, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		accounts: accounts,
		clock:    clock,
		random:   random,
		logger:   logger,
	}
}

// Verify establishes the identity of player. Replies are sent to the
// player directly; the returned error is for logging only. A player that
// is already verified is left alone.
func (s *Service) Verify(ctx context.Context, player *model.Player, req VerifyRequest) error {
	if player.Identity().Verified {
		return nil
	}

	secret, err := parseSecret(req.Secret)
	if err != nil {
		s.reject(player, model.ErrTextFailedToLogin)
		return err
	}
	if secret == "" || secret == GuestSecret {
		s.verifyGuest(player)
		return nil
	}

	account, err := s.store.GetAccountByToken(ctx, secret)
	if err != nil {
		s.reject(player, model.ErrTextFailedToLogin)
		return fmt.Errorf("resolving token: %w", err)
	}

	social, err := s.LoadSocial(ctx, account)
	if err != nil {
		s.reject(player, model.ErrTextFailedToLogin)
		return fmt.Errorf("loading social graph: %w", err)
	}

	if err := s.accounts.ClaimAccount(player.ID, account.ID); err != nil {
		if errors.Is(err, model.ErrAccountInUse) {
			s.reject(player, model.ErrTextDuplicate)
		} else {
			s.reject(player, model.ErrTextFailedToLogin)
		}
		return err
	}

	player.SetIdentity(model.Identity{
		Verified:  true,
		AccountID: account.ID,
		Name:      account.Username,
		Rating:    account.Rating,
		League:    rating.League(account.Rating),
		Supporter: account.Supporter,
	})
	player.UpdateSocial(func(current *model.Social) {
		*current = social
	})

	player.Send(model.VerifyMessage{Type: model.MsgVerify})
	player.Send(model.CountMessage{Type: model.MsgCount, Count: s.accounts.Count()})

	now := s.clock.Now()
	update := model.LoginUpdate{LastLogin: now}
	if loc, ok := loadZone(req.TimeZone); ok {
		streak, changed := nextStreak(account, loc, now)
		if changed {
			player.Send(model.StreakMessage{Type: model.MsgStreak, Streak: streak})
		}
		update.TimeZone = req.TimeZone
		update.Streak = streak
		update.SetStreak = true
	}
	if err := s.store.RecordLogin(ctx, account.ID, update); err != nil {
		s.logger.Warn("failed to record login",
			slog.String("account_id", string(account.ID)),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("account verified",
		slog.String("conn_id", string(player.ID)),
		slog.String("account_id", string(account.ID)),
	)
	return nil
}

func (s *Service) verifyGuest(player *model.Player) {
	name := fmt.Sprintf("Guest #%04d", s.random.Intn(10000))
	player.SetIdentity(model.Identity{Verified: true, Name: name})
	player.Send(model.VerifyMessage{Type: model.MsgVerify, GuestName: name})
	player.Send(model.CountMessage{Type: model.MsgCount, Count: s.accounts.Count()})
}

// RejectLogin refuses an unreadable verify with the generic login failure
func (s *Service) RejectLogin(player *model.Player) {
	if player.Identity().Verified {
		return
	}
	s.reject(player, model.ErrTextFailedToLogin)
}

func (s *Service) reject(player *model.Player, text string) {
	player.Send(model.ErrorMessage{
		Type:          model.MsgError,
		Message:       text,
		FailedToLogin: text == model.ErrTextFailedToLogin,
	})
	player.Close()
}

// parseSecret accepts an absent, null or string token
func parseSecret(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var secret string
	if err := json.Unmarshal(raw, &secret); err != nil {
		return "", model.ErrInvalidToken
	}
	return secret, nil
}

// LoadSocial resolves the account's friend edges into named references.
// Counterparts that no longer resolve are dropped.
func (s *Service) LoadSocial(ctx context.Context, account *model.Account) (model.Social, error) {
	edges, err := s.store.GetEdges(ctx, account.ID)
	if err != nil {
		return model.Social{}, err
	}
	rel := model.RelationshipsFor(account.ID, edges)

	ids := make([]model.AccountID, 0, len(edges))
	ids = append(ids, rel.Friends...)
	ids = append(ids, rel.Sent...)
	ids = append(ids, rel.Received...)

	var resolved map[model.AccountID]*model.Account
	if len(ids) > 0 {
		resolved, err = s.store.GetAccounts(ctx, ids)
		if err != nil {
			return model.Social{}, err
		}
	}

	refs := func(ids []model.AccountID) []model.FriendRef {
		out := make([]model.FriendRef, 0, len(ids))
		for _, id := range ids {
			if acct, ok := resolved[id]; ok && acct.Username != "" {
				out = append(out, model.FriendRef{ID: id, Name: acct.Username, Supporter: acct.Supporter})
			}
		}
		return out
	}

	return model.Social{
		Friends:        refs(rel.Friends),
		Sent:           refs(rel.Sent),
		Received:       refs(rel.Received),
		AllowFriendReq: account.AllowFriendReq,
	}, nil
}

// CreateAccount registers a new account with a generated secret
func (s *Service) CreateAccount(ctx context.Context, username string) (*model.Account, error) {
	if !model.ValidUsername(username) {
		return nil, fmt.Errorf("invalid username %q", username)
	}

	account := model.NewAccount(
		model.AccountID(s.random.UUID()),
		username,
		s.random.String(secretLength, secretAlphabet),
		s.clock.Now(),
	)
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Streaks

func loadZone(name string) (*time.Location, bool) {
	// LoadLocation treats "" as UTC and "Local" as the server zone
	if name == "" || name == "Local" {
		return nil, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	return loc, true
}

// nextStreak applies the daily login rules: a login on the next calendar
// day extends the streak, a gap resets it, and a first login starts it.
// It reports whether the streak changed by rule.
func nextStreak(account *model.Account, loc *time.Location, now time.Time) (int, bool) {
	if !account.FirstLoginComplete {
		return 1, true
	}

	prev := loc
	if stored, ok := loadZone(account.TimeZone); ok {
		prev = stored
	}

	switch diff := dayDiff(now.In(loc), account.LastLogin.In(prev)); {
	case diff == 1:
		return account.Streak + 1, true
	case diff > 1:
		return 0, true
	}
	return account.Streak, false
}

// dayDiff counts calendar days from b to a, each in its own zone
func dayDiff(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(da.Sub(db).Hours() / 24)
}
