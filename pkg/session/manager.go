package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/internal/logging"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/editor"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/ports"
)

// DefaultLockTTL is the lifetime of a distributed lock taken by the Manager.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates editing sessions, ensuring one session per bot.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	repo ports.BotRepository

	mu       sync.Mutex                 // Global lock for the maps
	locks    map[string]*lockEntry      // Map of active locks
	sessions map[string]*editor.Session // Open sessions by bot id

	locker     ports.DistributedLocker // Optional distributed locker
	lockTTL    time.Duration
	editorOpts []editor.Option
	logger     *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEditorOptions sets the options every opened session is created with.
func WithEditorOptions(opts ...editor.Option) Option {
	return func(m *Manager) {
		m.editorOpts = append(m.editorOpts, opts...)
	}
}

// NewManager creates a new Session Manager over the given repository.
func NewManager(repo ports.BotRepository, opts ...Option) *Manager {
	m := &Manager{
		repo:     repo,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*editor.Session),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(botID) after unlocking.
func (m *Manager) acquire(botID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[botID]
	if !exists {
		entry = &lockEntry{}
		m.locks[botID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(botID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[botID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, botID)
	}
}

// Open returns the session of botID, opening it on first use.
func (m *Manager) Open(ctx context.Context, botID string) (*editor.Session, error) {
	if s, ok := m.Get(botID); ok {
		return s, nil
	}
	var s *editor.Session
	err := m.WithLock(ctx, botID, func(ctx context.Context) error {
		// Another caller may have opened it while we waited.
		if existing, ok := m.Get(botID); ok {
			s = existing
			return nil
		}
		opened, err := editor.Open(ctx, m.repo, botID, m.editorOpts...)
		if err != nil {
			return err
		}
		m.mu.Lock()
		m.sessions[botID] = opened
		m.mu.Unlock()
		m.logger.Info("Editing session opened", "bot_id", botID)
		s = opened
		return nil
	})
	return s, err
}

// Get returns the open session of botID.
func (m *Manager) Get(botID string) (*editor.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[botID]
	return s, ok
}

// Close flushes and closes the session of botID. Closing a bot without an
// open session is not an error. When the final save fails the session stays
// registered with its local graph, so a later Open returns it and Close can
// be retried.
func (m *Manager) Close(ctx context.Context, botID string) error {
	return m.WithLock(ctx, botID, func(ctx context.Context) error {
		s, ok := m.Get(botID)
		if !ok {
			return nil
		}
		if err := s.Close(ctx); err != nil {
			m.logger.Warn("Session kept open after failed close", "bot_id", botID, "err", err)
			return fmt.Errorf("failed to close session of bot %s: %w", botID, err)
		}
		m.mu.Lock()
		delete(m.sessions, botID)
		m.mu.Unlock()
		m.logger.Info("Editing session closed", "bot_id", botID)
		return nil
	})
}

// CloseAll closes every open session and joins their errors.
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, botID := range m.List() {
		if err := m.Close(ctx, botID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns the ids of the bots with an open session, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Repository returns the underlying bot repository.
func (m *Manager) Repository() ports.BotRepository {
	return m.repo
}

// WithLock executes a function while holding the lock for the bot.
func (m *Manager) WithLock(ctx context.Context, botID string, fn func(context.Context) error) error {
	entry := m.acquire(botID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(botID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, botID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"bot_id", botID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
