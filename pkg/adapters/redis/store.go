package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "bozchat:bot:"

// Store implements ports.BotStore using Redis.
// Each bot record is a JSON string; an index ZSET scored by last write time
// lists the bots.
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix for bot records.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to build a Locker on it.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(botID string) string {
	return s.prefix + botID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Put writes the bot record and indexes it.
func (s *Store) Put(ctx context.Context, bot *domain.Bot) error {
	if bot == nil || bot.ID == "" {
		return fmt.Errorf("bot id cannot be empty")
	}
	data, err := json.Marshal(bot)
	if err != nil {
		return fmt.Errorf("failed to marshal bot: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		s.write(ctx, pipe, bot.ID, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, pipe backend.Pipeliner, botID string, data []byte) {
	pipe.Set(ctx, s.key(botID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: botID,
	})
}

// Load retrieves the bot record from Redis.
func (s *Store) Load(ctx context.Context, botID string) (*domain.Bot, error) {
	val, err := s.client.Get(ctx, s.key(botID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrBotNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	bot, err := domain.ParseBot(val)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot %s: %w", botID, err)
	}
	return bot, nil
}

// maxTxRetries bounds optimistic retries when another writer touches the
// record between read and write.
const maxTxRetries = 5

// SaveInstance replaces the instance inside the stored record. The
// read-modify-write runs under WATCH so concurrent Puts are not lost.
func (s *Store) SaveInstance(ctx context.Context, botID string, instance domain.FlowGraph) error {
	key := s.key(botID)
	txf := func(tx *backend.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, backend.Nil) {
				return domain.ErrBotNotFound
			}
			return err
		}
		bot, err := domain.ParseBot(val)
		if err != nil {
			return fmt.Errorf("failed to unmarshal bot %s: %w", botID, err)
		}
		bot.Instance = &instance
		data, err := json.Marshal(bot)
		if err != nil {
			return fmt.Errorf("failed to marshal bot: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			s.write(ctx, pipe, botID, data)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrBotNotFound) {
			return fmt.Errorf("failed to save instance to redis: %w", err)
		}
		return err
	}
	return fmt.Errorf("failed to save instance to redis: %w", backend.TxFailedErr)
}

// Delete removes the bot record and its index entry.
func (s *Store) Delete(ctx context.Context, botID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(botID))
	pipe.ZRem(ctx, s.indexKey(), botID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns bot ids, most recently written last.
func (s *Store) List(ctx context.Context) ([]string, error) {
	bots, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}
	return bots, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
