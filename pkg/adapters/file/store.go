package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// Store implements ports.BotStore using the local filesystem.
// It stores each bot record as a JSON file in a configured directory.
type Store struct {
	BasePath string

	// mu serializes read-modify-write cycles of SaveInstance within the process.
	mu sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".bozchat/bots".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".bozchat", "bots")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(botID string) (string, error) {
	if botID == "" {
		return "", fmt.Errorf("botID cannot be empty")
	}
	if strings.ContainsAny(botID, `/\`) || botID == "." || botID == ".." {
		return "", fmt.Errorf("invalid botID %q", botID)
	}
	return filepath.Join(s.BasePath, botID+".json"), nil
}

// Put writes the bot record atomically.
func (s *Store) Put(ctx context.Context, bot *domain.Bot) error {
	if bot == nil {
		return fmt.Errorf("bot cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(bot)
}

// Load reads the bot record.
func (s *Store) Load(ctx context.Context, botID string) (*domain.Bot, error) {
	filePath, err := s.path(botID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrBotNotFound
		}
		return nil, fmt.Errorf("failed to read bot file: %w", err)
	}

	bot, err := domain.ParseBot(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot %s: %w", botID, err)
	}
	return bot, nil
}

// SaveInstance replaces the instance of an existing bot, keeping every other
// field of the record as stored.
func (s *Store) SaveInstance(ctx context.Context, botID string, instance domain.FlowGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bot, err := s.Load(ctx, botID)
	if err != nil {
		return err
	}
	bot.Instance = &instance
	return s.write(bot)
}

// write persists the bot record to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) write(bot *domain.Bot) error {
	destPath, err := s.path(bot.ID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure bot directory: %w", err)
	}

	data, err := json.MarshalIndent(bot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bot: %w", err)
	}

	// Same directory as the destination, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+bot.ID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing bot file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Delete removes the bot file.
func (s *Store) Delete(ctx context.Context, botID string) error {
	filePath, err := s.path(botID)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete bot file: %w", err)
	}
	return nil
}

// List returns the ids of all stored bots.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}

	var bots []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		bots = append(bots, strings.TrimSuffix(name, ".json"))
	}
	return bots, nil
}
