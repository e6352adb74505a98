package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
)

// GraphFile is a graph read from disk by the offline commands.
type GraphFile struct {
	// Title is the bot name, or its id, when the file held a bot record.
	Title string
	Graph domain.FlowGraph
	// Bot is set when the file held a bot record rather than a bare instance.
	Bot *domain.Bot
}

// ReadGraphFile reads a bot record or a bare instance from path ("-" reads
// stdin). A bot record without an instance yields the default graph.
func ReadGraphFile(path string) (*GraphFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseGraphFile(data)
}

// ParseGraphFile decodes a bot record or a bare instance.
func ParseGraphFile(data []byte) (*GraphFile, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("invalid graph file: %w", err)
	}

	if _, bare := fields["nodes"]; bare {
		g, err := domain.ParseGraph(data)
		if err != nil {
			return nil, err
		}
		return &GraphFile{Graph: g}, nil
	}

	bot, err := domain.ParseBot(data)
	if err != nil {
		return nil, fmt.Errorf("invalid bot record: %w", err)
	}
	f := &GraphFile{Title: bot.Name, Bot: bot}
	if f.Title == "" {
		f.Title = bot.ID
	}
	if bot.Instance != nil {
		f.Graph = *bot.Instance
	} else {
		f.Graph = graph.Default(bot.Trigger)
	}
	return f, nil
}

// WriteGraph encodes g as indented JSON.
func WriteGraph(w io.Writer, g domain.FlowGraph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}
