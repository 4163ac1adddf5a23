package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS tracked_accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE COLLATE NOCASE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS posts (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id TEXT NOT NULL UNIQUE,
    author TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    has_signals BOOLEAN DEFAULT FALSE,
    should_trade BOOLEAN DEFAULT FALSE,
    token_address TEXT DEFAULT '',
    token_symbol TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS whale_activity (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    time TEXT NOT NULL,
    wallet TEXT NOT NULL,
    amount REAL NOT NULL,
    side TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bot_settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    trade_amount REAL NOT NULL,
    stop_loss REAL NOT NULL,
    risk_reward REAL NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_post_author ON posts(author);
`

// Store persists backend state. Posts and whale events are capped at keep rows.
type Store struct {
	db   *sql.DB
	keep int
}

func NewStore(dbPath string, keep int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, keep: keep}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- Tracked Accounts ----

// NormalizeHandle strips whitespace and a leading "@".
func NormalizeHandle(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}

// AddTrackedAccount inserts a handle, reporting whether it was new.
func (s *Store) AddTrackedAccount(username string) (bool, error) {
	res, err := s.db.Exec(`INSERT OR IGNORE INTO tracked_accounts (username) VALUES (?)`, username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) RemoveTrackedAccount(username string) error {
	res, err := s.db.Exec(`DELETE FROM tracked_accounts WHERE username=?`, username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) TrackedAccounts() ([]string, error) {
	rows, err := s.db.Query(`SELECT username FROM tracked_accounts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		accounts = append(accounts, u)
	}
	return accounts, rows.Err()
}

// ---- Posts ----

// InsertPost stores a post, ignoring duplicates by post ID.
func (s *Store) InsertPost(p Post) (bool, error) {
	var sig TradeSignal
	if p.Signals != nil {
		sig = *p.Signals
	}
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO posts (post_id, author, content, created_at, has_signals, should_trade, token_address, token_symbol)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Author, p.Text, p.CreatedAt, p.Signals != nil, sig.ShouldTrade, sig.TokenAddress, sig.TokenSymbol)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	return true, s.prune("posts")
}

// RecentPosts returns up to limit posts, newest first.
func (s *Store) RecentPosts(limit int) ([]Post, error) {
	rows, err := s.db.Query(`
		SELECT post_id, author, content, created_at, has_signals, should_trade, token_address, token_symbol
		FROM posts ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		var p Post
		var hasSignals bool
		var sig TradeSignal
		if err := rows.Scan(&p.ID, &p.Author, &p.Text, &p.CreatedAt, &hasSignals, &sig.ShouldTrade, &sig.TokenAddress, &sig.TokenSymbol); err != nil {
			return nil, err
		}
		if hasSignals {
			p.Signals = &sig
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ---- Whale Activity ----

func (s *Store) InsertWhaleActivity(w WhaleActivity) error {
	_, err := s.db.Exec(`INSERT INTO whale_activity (time, wallet, amount, side) VALUES (?, ?, ?, ?)`,
		w.Time, w.Wallet, w.Amount, string(w.Type))
	if err != nil {
		return err
	}
	return s.prune("whale_activity")
}

// RecentWhaleActivity returns up to limit events, newest first.
func (s *Store) RecentWhaleActivity(limit int) ([]WhaleActivity, error) {
	rows, err := s.db.Query(`SELECT time, wallet, amount, side FROM whale_activity ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := []WhaleActivity{}
	for rows.Next() {
		var w WhaleActivity
		var side string
		if err := rows.Scan(&w.Time, &w.Wallet, &w.Amount, &side); err != nil {
			return nil, err
		}
		w.Type = Side(side)
		activities = append(activities, w)
	}
	return activities, rows.Err()
}

// prune keeps the newest s.keep rows of table.
func (s *Store) prune(table string) error {
	if s.keep <= 0 {
		return nil
	}
	_, err := s.db.Exec(fmt.Sprintf(
		`DELETE FROM %s WHERE seq NOT IN (SELECT seq FROM %s ORDER BY seq DESC LIMIT ?)`, table, table), s.keep)
	return err
}

// ---- Settings ----

// Settings returns the stored bot settings, or the defaults if none were saved.
func (s *Store) Settings() (BotSettings, error) {
	var b BotSettings
	err := s.db.QueryRow(`SELECT trade_amount, stop_loss, risk_reward FROM bot_settings WHERE id=1`).
		Scan(&b.TradeAmount, &b.StopLoss, &b.RiskReward)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return BotSettings{}, err
	}
	return b, nil
}

func (s *Store) SaveSettings(b BotSettings) error {
	_, err := s.db.Exec(`
		INSERT INTO bot_settings (id, trade_amount, stop_loss, risk_reward) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			trade_amount=excluded.trade_amount,
			stop_loss=excluded.stop_loss,
			risk_reward=excluded.risk_reward,
			updated_at=CURRENT_TIMESTAMP`,
		b.TradeAmount, b.StopLoss, b.RiskReward)
	return err
}

// ---- Stats ----

func (s *Store) Stats() (map[string]int, error) {
	stats := make(map[string]int)
	for _, table := range []string{"tracked_accounts", "posts", "whale_activity"} {
		var n int
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
			return nil, err
		}
		stats[table] = n
	}
	return stats, nil
}
