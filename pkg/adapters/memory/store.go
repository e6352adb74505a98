package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// Store implements ports.BotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Bot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store seeded with the given bots.
func NewStore(bots ...*domain.Bot) *Store {
	s := &Store{
		data: make(map[string]domain.Bot),
	}
	for _, b := range bots {
		s.data[b.ID] = b.Clone()
	}
	return s
}

// Put stores a copy of the bot.
func (s *Store) Put(ctx context.Context, bot *domain.Bot) error {
	if bot == nil || bot.ID == "" {
		return fmt.Errorf("bot id cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[bot.ID] = bot.Clone()
	return nil
}

// Load retrieves a copy of the bot, so callers can't mutate store state by pointer.
func (s *Store) Load(ctx context.Context, botID string) (*domain.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bot, ok := s.data[botID]
	if !ok {
		return nil, domain.ErrBotNotFound
	}
	ret := bot.Clone()
	return &ret, nil
}

// SaveInstance replaces the graph of an existing bot.
func (s *Store) SaveInstance(ctx context.Context, botID string, instance domain.FlowGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bot, ok := s.data[botID]
	if !ok {
		return domain.ErrBotNotFound
	}
	g := instance.Clone()
	bot.Instance = &g
	s.data[botID] = bot
	return nil
}

// Delete removes the bot.
func (s *Store) Delete(ctx context.Context, botID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, botID)
	return nil
}

// List returns the stored bot ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bots := make([]string, 0, len(s.data))
	for id := range s.data {
		bots = append(bots, id)
	}
	return bots, nil
}
