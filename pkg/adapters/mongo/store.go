package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultCollection is the collection bot records are stored in.
const DefaultCollection = "bots"

// document is the stored shape. The full record is kept as JSON text so
// fields the editor does not know are written back untouched; the top-level
// fields exist for querying.
type document struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Trigger     string    `bson:"trigger"`
	HasInstance bool      `bson:"has_instance"`
	Record      string    `bson:"record"`
	Version     int64     `bson:"version"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toDocument(bot *domain.Bot) (document, error) {
	record, err := json.Marshal(bot)
	if err != nil {
		return document{}, fmt.Errorf("failed to marshal bot: %w", err)
	}
	return document{
		ID:          bot.ID,
		Name:        bot.Name,
		Trigger:     bot.Trigger,
		HasInstance: bot.Instance != nil,
		Record:      string(record),
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

func (d document) bot() (*domain.Bot, error) {
	bot, err := domain.ParseBot([]byte(d.Record))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot %s: %w", d.ID, err)
	}
	return bot, nil
}

// Store implements ports.BotStore on MongoDB.
type Store struct {
	client     *driver.Client
	collection *driver.Collection
}

// Option configures the Store.
type Option func(*storeConfig)

type storeConfig struct {
	collection string
}

// WithCollection overrides the collection name.
func WithCollection(name string) Option {
	return func(c *storeConfig) {
		c.collection = name
	}
}

// Connect dials MongoDB at uri and verifies the connection.
func Connect(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	client, err := driver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return NewFromClient(client, database, opts...), nil
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *driver.Client, database string, opts ...Option) *Store {
	cfg := storeConfig{collection: DefaultCollection}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store{
		client:     client,
		collection: client.Database(database).Collection(cfg.collection),
	}
}

// Put creates or replaces a bot record.
func (s *Store) Put(ctx context.Context, bot *domain.Bot) error {
	if bot == nil || bot.ID == "" {
		return fmt.Errorf("bot id cannot be empty")
	}
	doc, err := toDocument(bot)
	if err != nil {
		return err
	}
	_, err = s.collection.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{
			"$set": bson.M{
				"name":         doc.Name,
				"trigger":      doc.Trigger,
				"has_instance": doc.HasInstance,
				"record":       doc.Record,
				"updated_at":   doc.UpdatedAt,
			},
			"$inc": bson.M{"version": 1},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert bot %s: %w", bot.ID, err)
	}
	return nil
}

func (s *Store) find(ctx context.Context, botID string) (document, error) {
	var doc document
	err := s.collection.FindOne(ctx, bson.M{"_id": botID}).Decode(&doc)
	if errors.Is(err, driver.ErrNoDocuments) {
		return document{}, domain.ErrBotNotFound
	}
	if err != nil {
		return document{}, fmt.Errorf("failed to find bot %s: %w", botID, err)
	}
	return doc, nil
}

// Load retrieves a bot record.
func (s *Store) Load(ctx context.Context, botID string) (*domain.Bot, error) {
	doc, err := s.find(ctx, botID)
	if err != nil {
		return nil, err
	}
	return doc.bot()
}

// maxConflictRetries bounds optimistic retries when another writer updates
// the record between read and write.
const maxConflictRetries = 5

// SaveInstance replaces the instance inside the stored record. The update is
// conditioned on the version read, so concurrent Puts are not overwritten.
func (s *Store) SaveInstance(ctx context.Context, botID string, instance domain.FlowGraph) error {
	for i := 0; i < maxConflictRetries; i++ {
		doc, err := s.find(ctx, botID)
		if err != nil {
			return err
		}
		bot, err := doc.bot()
		if err != nil {
			return err
		}
		bot.Instance = &instance
		next, err := toDocument(bot)
		if err != nil {
			return err
		}

		res, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": botID, "version": doc.Version},
			bson.M{
				"$set": bson.M{
					"has_instance": true,
					"record":       next.Record,
					"updated_at":   next.UpdatedAt,
				},
				"$inc": bson.M{"version": 1},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to save instance of %s: %w", botID, err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	return fmt.Errorf("failed to save instance of %s: concurrent updates", botID)
}

// Delete removes the bot record.
func (s *Store) Delete(ctx context.Context, botID string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": botID}); err != nil {
		return fmt.Errorf("failed to delete bot %s: %w", botID, err)
	}
	return nil
}

// List returns bot ids ordered by last update.
func (s *Store) List(ctx context.Context) ([]string, error) {
	cur, err := s.collection.Find(ctx, bson.M{},
		options.Find().
			SetProjection(bson.M{"_id": 1}).
			SetSort(bson.D{{Key: "updated_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}
	defer cur.Close(ctx)

	var bots []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode bot id: %w", err)
		}
		bots = append(bots, doc.ID)
	}
	return bots, cur.Err()
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
