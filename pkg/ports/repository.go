package ports

import (
	"context"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// BotRepository is the persistence boundary of the editor.
// Every save transmits the complete graph; there is no partial-patch protocol.
type BotRepository interface {
	// Load retrieves the bot record. Instance is nil when the bot was never edited.
	// Returns domain.ErrBotNotFound if the bot does not exist.
	Load(ctx context.Context, botID string) (*domain.Bot, error)

	// SaveInstance replaces the stored instance of the bot.
	// Returns domain.ErrBotNotFound if the bot does not exist.
	SaveInstance(ctx context.Context, botID string, instance domain.FlowGraph) error
}

// BotStore is a BotRepository that also owns the bot records. The adapters in
// this module implement it so they can back both the editor and the bot API.
type BotStore interface {
	BotRepository

	// Put creates or replaces a bot record, instance included.
	Put(ctx context.Context, bot *domain.Bot) error

	// Delete removes the bot record. Deleting a missing bot is not an error.
	Delete(ctx context.Context, botID string) error

	// List returns the ids of all stored bots.
	List(ctx context.Context) ([]string, error)
}
