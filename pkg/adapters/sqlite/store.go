package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements ports.BotStore on SQLite.
// The full bot record is kept as a JSON column so fields the editor does not
// know survive every write.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath.
// It enables WAL mode for concurrency and durability.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS bots (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		trigger_phrase TEXT NOT NULL DEFAULT '',
		record JSON NOT NULL,
		has_instance INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bots_updated_at ON bots(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create bots table: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, bot *domain.Bot) error {
	record, err := json.Marshal(bot)
	if err != nil {
		return fmt.Errorf("failed to marshal bot: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO bots (id, name, trigger_phrase, record, has_instance, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			trigger_phrase = excluded.trigger_phrase,
			record = excluded.record,
			has_instance = excluded.has_instance,
			updated_at = excluded.updated_at
	`, bot.ID, bot.Name, bot.Trigger, string(record), bot.Instance != nil, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert bot %s: %w", bot.ID, err)
	}
	return nil
}

// Put creates or replaces a bot record.
func (s *Store) Put(ctx context.Context, bot *domain.Bot) error {
	if bot == nil || bot.ID == "" {
		return fmt.Errorf("bot id cannot be empty")
	}
	return upsert(ctx, s.db, bot)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func load(ctx context.Context, db queryer, botID string) (*domain.Bot, error) {
	var record string
	err := db.QueryRowContext(ctx, `SELECT record FROM bots WHERE id = ?`, botID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bot %s: %w", botID, err)
	}
	bot, err := domain.ParseBot([]byte(record))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot %s: %w", botID, err)
	}
	return bot, nil
}

// Load retrieves a bot record.
func (s *Store) Load(ctx context.Context, botID string) (*domain.Bot, error) {
	return load(ctx, s.db, botID)
}

// SaveInstance replaces the instance of an existing bot inside a transaction.
func (s *Store) SaveInstance(ctx context.Context, botID string, instance domain.FlowGraph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	bot, err := load(ctx, tx, botID)
	if err != nil {
		return err
	}
	bot.Instance = &instance
	if err := upsert(ctx, tx, bot); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit instance of %s: %w", botID, err)
	}
	return nil
}

// Delete removes the bot record.
func (s *Store) Delete(ctx context.Context, botID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bots WHERE id = ?`, botID); err != nil {
		return fmt.Errorf("failed to delete bot %s: %w", botID, err)
	}
	return nil
}

// List returns bot ids ordered by last update.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM bots ORDER BY updated_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}
	defer rows.Close()

	var bots []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bot id: %w", err)
		}
		bots = append(bots, id)
	}
	return bots, rows.Err()
}
