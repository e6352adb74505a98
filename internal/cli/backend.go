package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/agenciaboz-dev/bozchat-sub001/internal/config"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/file"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/httpclient"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/memory"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/mongo"
	redisadapter "github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/redis"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/sqlite"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/ports"
)

// Backend is an opened bot store with its optional distributed locker.
type Backend struct {
	Kind   string
	Store  ports.BotStore
	Locker ports.DistributedLocker
	close  func(context.Context) error
}

// Close releases the connections held by the store.
func (b *Backend) Close(ctx context.Context) error {
	if b.close == nil {
		return nil
	}
	return b.close(ctx)
}

// OpenBackend builds the bot store selected by cfg.Kind.
func OpenBackend(ctx context.Context, cfg config.Store, logger *slog.Logger) (*Backend, error) {
	b := &Backend{Kind: cfg.Kind}

	switch cfg.Kind {
	case config.StoreMemory:
		b.Store = memory.NewStore()

	case config.StoreFile:
		b.Store = file.New(cfg.Path)

	case config.StoreRedis:
		store := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redisadapter.WithPrefix(cfg.Redis.Prefix))
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		b.Store = store
		if cfg.Redis.Lock {
			b.Locker = redisadapter.NewLocker(store.Client(), cfg.Redis.Prefix)
		}
		b.close = func(context.Context) error { return store.Close() }

	case config.StoreSQLite:
		store, err := sqlite.New(cfg.DSN)
		if err != nil {
			return nil, err
		}
		b.Store = store
		b.close = func(context.Context) error { return store.Close() }

	case config.StoreMongo:
		store, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, mongo.WithCollection(cfg.Mongo.Collection))
		if err != nil {
			return nil, err
		}
		b.Store = store
		b.close = store.Close

	case config.StoreRemote:
		b.Store = httpclient.New(cfg.Remote.BaseURL,
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout.Std()}),
			httpclient.WithLogger(logger),
		)

	default:
		return nil, errors.New("unknown store kind " + cfg.Kind)
	}

	logger.Debug("Bot store opened", "kind", cfg.Kind, "locking", b.Locker != nil)
	return b, nil
}
