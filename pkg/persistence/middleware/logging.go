package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.BotRepository
	logger *slog.Logger
}

// WithLogging logs every repository call at debug level and failures at warn.
func WithLogging(logger *slog.Logger) Middleware {
	return func(next ports.BotRepository) ports.BotRepository {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) Load(ctx context.Context, botID string) (*domain.Bot, error) {
	start := time.Now()
	bot, err := m.next.Load(ctx, botID)
	m.log(ctx, "load", botID, time.Since(start), err)
	return bot, err
}

func (m *loggingMiddleware) SaveInstance(ctx context.Context, botID string, instance domain.FlowGraph) error {
	start := time.Now()
	err := m.next.SaveInstance(ctx, botID, instance)
	m.log(ctx, "save_instance", botID, time.Since(start), err, "nodes", len(instance.Nodes))
	return err
}

func (m *loggingMiddleware) log(ctx context.Context, method, botID string, took time.Duration, err error, extra ...any) {
	attrs := []any{"method", method, "bot_id", botID, "duration", took}
	if rev, ok := ports.RevisionFrom(ctx); ok {
		attrs = append(attrs, "revision", rev)
	}
	attrs = append(attrs, extra...)
	if err != nil {
		m.logger.WarnContext(ctx, "Repository call failed", append(attrs, "err", err)...)
		return
	}
	m.logger.DebugContext(ctx, "Repository call", attrs...)
}
