// Package middleware decorates a ports.BotRepository with cross-cutting behavior.
package middleware

import "github.com/agenciaboz-dev/bozchat-sub001/pkg/ports"

// Middleware allows wrapping a BotRepository to add behavior.
type Middleware func(ports.BotRepository) ports.BotRepository

// Chain wraps repo with mws. The first middleware is the outermost.
func Chain(repo ports.BotRepository, mws ...Middleware) ports.BotRepository {
	for i := len(mws) - 1; i >= 0; i-- {
		repo = mws[i](repo)
	}
	return repo
}
