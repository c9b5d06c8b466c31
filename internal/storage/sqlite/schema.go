package sqlite

// schema is applied on open; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id                   TEXT PRIMARY KEY,
		username             TEXT NOT NULL,
		username_lower       TEXT NOT NULL UNIQUE,
		secret_digest        TEXT UNIQUE,
		rating               INTEGER NOT NULL,
		supporter            INTEGER NOT NULL DEFAULT 0,
		allow_friend_req     INTEGER NOT NULL DEFAULT 1,
		time_zone            TEXT NOT NULL DEFAULT '',
		streak               INTEGER NOT NULL DEFAULT 0,
		last_login           INTEGER NOT NULL DEFAULT 0,
		first_login_complete INTEGER NOT NULL DEFAULT 0,
		duels_played         INTEGER NOT NULL DEFAULT 0,
		duels_wins           INTEGER NOT NULL DEFAULT 0,
		duels_losses         INTEGER NOT NULL DEFAULT 0,
		duels_tied           INTEGER NOT NULL DEFAULT 0,
		rating_today         INTEGER NOT NULL DEFAULT 0,
		rating_today_day     TEXT NOT NULL DEFAULT '',
		created_at           INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rating_history (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		rating     INTEGER NOT NULL,
		at         INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rating_history_account ON rating_history(account_id, at)`,
	// One row per unordered account pair: account_a < account_b
	`CREATE TABLE IF NOT EXISTS friend_edges (
		account_a TEXT NOT NULL,
		account_b TEXT NOT NULL,
		requester TEXT NOT NULL,
		status    TEXT NOT NULL,
		PRIMARY KEY (account_a, account_b)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_friend_edges_b ON friend_edges(account_b)`,
}
