package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/storage"
)

const accountColumns = `id, username, rating, supporter, allow_friend_req, time_zone, streak,
	last_login, first_login_complete, duels_played, duels_wins, duels_losses, duels_tied,
	rating_today, rating_today_day, created_at`

// Storage is a SQLite-backed implementation of the account store
type Storage struct {
	db  *sql.DB
	cfg Config
}

// New opens the database and applies the schema
func New(cfg Config) (*Storage, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.inMemory() {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if !cfg.inMemory() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &Storage{db: db, cfg: cfg}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.AccountStore = (*Storage)(nil)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	var digest sql.NullString
	if account.Secret != "" {
		digest = sql.NullString{String: storage.TokenDigest(account.Secret), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO accounts (
		id, username, username_lower, secret_digest, rating, supporter, allow_friend_req,
		time_zone, streak, last_login, first_login_complete, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Username, model.NormalizedUsername(account.Username), digest,
		account.Rating, account.Supporter, account.AllowFriendReq, account.TimeZone,
		account.Streak, toMillis(account.LastLogin), account.FirstLoginComplete,
		toMillis(account.CreatedAt),
	)
	if isConstraint(err) {
		return model.ErrUsernameExists
	}
	return err
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	return s.getAccount(ctx, s.db, "id = ?", id)
}

func (s *Storage) GetAccountByToken(ctx context.Context, token string) (*model.Account, error) {
	return s.getAccount(ctx, s.db, "secret_digest = ?", storage.TokenDigest(token))
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return s.getAccount(ctx, s.db, "username_lower = ?", model.NormalizedUsername(username))
}

func (s *Storage) getAccount(ctx context.Context, q queryer, where string, arg any) (*model.Account, error) {
	row := q.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE "+where, arg)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	history, err := s.ratingHistory(ctx, q, account.ID)
	if err != nil {
		return nil, err
	}
	account.RatingHistory = history
	return account, nil
}

func (s *Storage) GetAccounts(ctx context.Context, ids []model.AccountID) (map[model.AccountID]*model.Account, error) {
	result := make(map[model.AccountID]*model.Account, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result[account.ID] = account
	}
	return result, rows.Err()
}

func (s *Storage) RecordLogin(ctx context.Context, id model.AccountID, update model.LoginUpdate) error {
	return s.update(ctx, id, func(a *model.Account) { a.ApplyLogin(update) })
}

func (s *Storage) SetAllowFriendReq(ctx context.Context, id model.AccountID, allow bool) error {
	return s.update(ctx, id, func(a *model.Account) { a.AllowFriendReq = allow })
}

func (s *Storage) ApplyRatingChange(ctx context.Context, id model.AccountID, change model.RatingChange) error {
	return s.update(ctx, id, func(a *model.Account) { a.Apply(change) })
}

// update loads, mutates and writes back one account in a transaction.
// History entries appended by fn are inserted.
func (s *Storage) update(ctx context.Context, id model.AccountID, fn func(*model.Account)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	account, err := s.getAccount(ctx, tx, "id = ?", id)
	if err != nil {
		return err
	}
	historyLen := len(account.RatingHistory)
	fn(account)

	_, err = tx.ExecContext(ctx, `UPDATE accounts SET
		rating = ?, allow_friend_req = ?, time_zone = ?, streak = ?, last_login = ?,
		first_login_complete = ?, duels_played = ?, duels_wins = ?, duels_losses = ?,
		duels_tied = ?, rating_today = ?, rating_today_day = ?
		WHERE id = ?`,
		account.Rating, account.AllowFriendReq, account.TimeZone, account.Streak,
		toMillis(account.LastLogin), account.FirstLoginComplete, account.Duels.Played,
		account.Duels.Wins, account.Duels.Losses, account.Duels.Tied, account.RatingToday,
		account.RatingTodayDay, id,
	)
	if err != nil {
		return err
	}

	for _, point := range account.RatingHistory[historyLen:] {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rating_history (account_id, rating, at) VALUES (?, ?, ?)",
			id, point.Rating, toMillis(point.At),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Storage) ratingHistory(ctx context.Context, q queryer, id model.AccountID) ([]model.RatingPoint, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT rating, at FROM rating_history WHERE account_id = ? ORDER BY at, rowid", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []model.RatingPoint
	for rows.Next() {
		var point model.RatingPoint
		var at int64
		if err := rows.Scan(&point.Rating, &at); err != nil {
			return nil, err
		}
		point.At = fromMillis(at)
		history = append(history, point)
	}
	return history, rows.Err()
}

// Friend edge operations

func (s *Storage) GetEdges(ctx context.Context, id model.AccountID) ([]model.FriendEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT account_a, account_b, requester, status FROM friend_edges WHERE account_a = ? OR account_b = ?",
		id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := []model.FriendEdge{}
	for rows.Next() {
		var a, b, requester model.AccountID
		var status model.EdgeStatus
		if err := rows.Scan(&a, &b, &requester, &status); err != nil {
			return nil, err
		}
		recipient := a
		if requester == a {
			recipient = b
		}
		edges = append(edges, model.FriendEdge{From: requester, To: recipient, Status: status})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(edges, func(x, y model.FriendEdge) int {
		return cmp.Compare(x.Other(id), y.Other(id))
	})
	return edges, nil
}

func (s *Storage) CreateFriendRequest(ctx context.Context, from, to model.AccountID) error {
	a, b := model.EdgeKey(from, to)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO friend_edges (account_a, account_b, requester, status) VALUES (?, ?, ?, ?)",
		a, b, from, model.EdgePending)
	if isConstraint(err) {
		return model.ErrEdgeExists
	}
	return err
}

func (s *Storage) AcceptFriendRequest(ctx context.Context, requester, recipient model.AccountID) error {
	a, b := model.EdgeKey(requester, recipient)
	return expectOneRow(s.db.ExecContext(ctx,
		`UPDATE friend_edges SET status = ?
		WHERE account_a = ? AND account_b = ? AND requester = ? AND status = ?`,
		model.EdgeAccepted, a, b, requester, model.EdgePending))
}

func (s *Storage) DeleteFriendRequest(ctx context.Context, requester, recipient model.AccountID) error {
	a, b := model.EdgeKey(requester, recipient)
	return expectOneRow(s.db.ExecContext(ctx,
		"DELETE FROM friend_edges WHERE account_a = ? AND account_b = ? AND requester = ? AND status = ?",
		a, b, requester, model.EdgePending))
}

func (s *Storage) DeleteFriendship(ctx context.Context, x, y model.AccountID) error {
	a, b := model.EdgeKey(x, y)
	return expectOneRow(s.db.ExecContext(ctx,
		"DELETE FROM friend_edges WHERE account_a = ? AND account_b = ? AND status = ?",
		a, b, model.EdgeAccepted))
}

// scanner is satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*model.Account, error) {
	var account model.Account
	var lastLogin, createdAt int64
	err := row.Scan(
		&account.ID, &account.Username, &account.Rating, &account.Supporter,
		&account.AllowFriendReq, &account.TimeZone, &account.Streak, &lastLogin,
		&account.FirstLoginComplete, &account.Duels.Played, &account.Duels.Wins,
		&account.Duels.Losses, &account.Duels.Tied, &account.RatingToday,
		&account.RatingTodayDay, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	account.LastLogin = fromMillis(lastLogin)
	account.CreatedAt = fromMillis(createdAt)
	return &account, nil
}

func expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrEdgeNotFound
	}
	return nil
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
