package rating

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/geoduel/internal/dependencies/clock"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/storage"
)

const writeTimeout = 10 * time.Second

// PlayerLookup finds the live connection holding an account
type PlayerLookup interface {
	FindByAccount(accountID model.AccountID) (*model.Player, bool)
}

// Outcome describes one account's side of a finished duel
type Outcome struct {
	OldRating int
	Draw      bool
	Winner    bool
}

// Participant is one side of a ranked duel as the session saw it
type Participant struct {
	AccountID model.AccountID
	Rating    int
	Points    int
	// Forfeit marks a player who left before the end
	Forfeit bool
}

// Updater persists rating changes and notifies live players.
// Duel updates run in the background so session teardown never waits on
// the store.
type Updater struct {
	store   storage.AccountStore
	players PlayerLookup
	clock   clock.Clock
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewUpdater creates a new rating updater
func NewUpdater(
	store storage.AccountStore,
	players PlayerLookup,
	clock clock.Clock,
	logger *slog.Logger,
) *Updater {
	return &Updater{
		store:   store,
		players: players,
		clock:   clock,
		logger:  logger,
	}
}

// Apply persists a new rating for one account and pushes it to the
// account's live connection, if any
func (u *Updater) Apply(ctx context.Context, accountID model.AccountID, newRating int, outcome Outcome) error {
	change := model.RatingChange{
		NewRating: newRating,
		OldRating: outcome.OldRating,
		Draw:      outcome.Draw,
		Winner:    outcome.Winner,
		At:        u.clock.Now(),
	}
	if err := u.store.ApplyRatingChange(ctx, accountID, change); err != nil {
		return err
	}

	if player, ok := u.players.FindByAccount(accountID); ok {
		league := League(newRating)
		player.SetRating(newRating, league)
		player.Send(model.EloMessage{Type: model.MsgElo, Elo: newRating, League: league})
	}
	return nil
}

// ApplyDuel computes both sides of a ranked duel and applies them in the
// background. A forfeiting player loses regardless of points.
func (u *Updater) ApplyDuel(a, b Participant) {
	var resultA float64
	switch {
	case a.Forfeit && !b.Forfeit:
		resultA = Loss
	case b.Forfeit && !a.Forfeit:
		resultA = Win
	default:
		resultA = resultFor(a.Points, b.Points)
	}
	ratingA := NewRating(a.Rating, b.Rating, resultA, a.Points, b.Points)
	ratingB := NewRating(b.Rating, a.Rating, 1-resultA, b.Points, a.Points)

	u.logger.Info("ranked duel finished",
		slog.String("account_a", string(a.AccountID)),
		slog.Int("old_a", a.Rating),
		slog.Int("new_a", ratingA),
		slog.String("account_b", string(b.AccountID)),
		slog.Int("old_b", b.Rating),
		slog.Int("new_b", ratingB),
	)

	u.applyAsync(a.AccountID, ratingA, Outcome{
		OldRating: a.Rating, Draw: resultA == Draw, Winner: resultA == Win,
	})
	u.applyAsync(b.AccountID, ratingB, Outcome{
		OldRating: b.Rating, Draw: resultA == Draw, Winner: resultA == Loss,
	})
}

func (u *Updater) applyAsync(accountID model.AccountID, newRating int, outcome Outcome) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := u.Apply(ctx, accountID, newRating, outcome); err != nil {
			u.logger.Error("failed to apply rating change",
				slog.String("account_id", string(accountID)),
				slog.Int("new_rating", newRating),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until every background update has finished
func (u *Updater) Wait() {
	u.wg.Wait()
}
