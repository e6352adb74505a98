package domain

import (
	"encoding/json"
	"time"
)

// Bot is the persisted bot record. The editor only reads Trigger and reads and
// writes Instance; every other field belongs to the platform and is kept in Extra.
type Bot struct {
	ID      string
	Name    string
	Trigger string
	// Instance is the stored conversation graph. Nil means the bot was never
	// edited and a default graph must be synthesized from Trigger.
	Instance *FlowGraph

	Extra Extra
}

// Clone returns a deep copy of the bot.
func (b Bot) Clone() Bot {
	if b.Instance != nil {
		g := b.Instance.Clone()
		b.Instance = &g
	}
	b.Extra = b.Extra.Clone()
	return b
}

func (b Bot) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		KeyID:     b.ID,
		"name":    b.Name,
		"trigger": b.Trigger,
	}
	if b.Instance != nil {
		known["instance"] = b.Instance
	}
	return joinObject(b.Extra, known)
}

func (b *Bot) UnmarshalJSON(data []byte) error {
	raw, err := splitObject(data)
	if err != nil {
		return err
	}
	*b = Bot{}
	for key, dst := range map[string]any{
		KeyID:      &b.ID,
		"name":     &b.Name,
		"trigger":  &b.Trigger,
		"instance": &b.Instance,
	} {
		if err := take(raw, key, dst); err != nil {
			return err
		}
	}
	b.Extra = leftover(raw)
	return nil
}

// ParseBot decodes a bot record.
func ParseBot(data []byte) (*Bot, error) {
	var b Bot
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ActiveBot is the runtime state of a conversation currently driven by a bot.
// It is owned by the bot runtime; the editor only checks that CurrentNodeID
// keeps resolving after edits.
type ActiveBot struct {
	BotID           string    `json:"bot_id"`
	ChatID          string    `json:"chat_id"`
	CurrentNodeID   string    `json:"current_node_id"`
	LastInteraction time.Time `json:"last_interaction"`
	StartedAt       time.Time `json:"started_at"`
}

// PausedInteraction marks a chat where the bot is paused, typically by a
// TargetPauseBot action. Owned by the bot runtime.
type PausedInteraction struct {
	BotID  string    `json:"bot_id"`
	ChatID string    `json:"chat_id"`
	Until  time.Time `json:"until"`
}

// Snapshot is a full copy of a graph captured immediately before a destructive
// operation. Snapshots live in memory for the duration of an editing session.
type Snapshot struct {
	Graph   FlowGraph `json:"graph"`
	Reason  string    `json:"reason"`
	NodeID  string    `json:"node_id,omitempty"`
	TakenAt time.Time `json:"taken_at"`
}
