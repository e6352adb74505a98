package middleware

import (
	"context"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/ports"
)

// Observer receives one observation per repository call.
type Observer interface {
	ObserveRepository(method string, took time.Duration, err error)
}

type metricsMiddleware struct {
	next     ports.BotRepository
	observer Observer
}

// WithMetrics reports the duration and outcome of every repository call.
func WithMetrics(observer Observer) Middleware {
	return func(next ports.BotRepository) ports.BotRepository {
		return &metricsMiddleware{next: next, observer: observer}
	}
}

func (m *metricsMiddleware) Load(ctx context.Context, botID string) (*domain.Bot, error) {
	start := time.Now()
	bot, err := m.next.Load(ctx, botID)
	m.observer.ObserveRepository("load", time.Since(start), err)
	return bot, err
}

func (m *metricsMiddleware) SaveInstance(ctx context.Context, botID string, instance domain.FlowGraph) error {
	start := time.Now()
	err := m.next.SaveInstance(ctx, botID, instance)
	m.observer.ObserveRepository("save_instance", time.Since(start), err)
	return err
}
