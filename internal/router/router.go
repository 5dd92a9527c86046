// Package router fans inbound events out to the sessions of the two
// users involved. It persists non-secret events first, then pushes the
// serialized notification into every relevant mailbox. Persistence
// failures are logged and never block delivery.
package router

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nexuschat/nexusd/internal/metrics"
	"github.com/nexuschat/nexusd/internal/protocol"
	"github.com/nexuschat/nexusd/internal/registry"
)

// Store is the slice of the persistence adapter the router needs.
type Store interface {
	InsertMessage(ctx context.Context, m *protocol.Message) error
	InsertCall(ctx context.Context, c *protocol.MediaCall) error
	UpdateCall(ctx context.Context, c *protocol.MediaCall) (bool, error)
}

// Router routes messages and call events.
type Router struct {
	reg       *registry.Registry
	store     Store
	logger    *slog.Logger
	collector metrics.Collector
}

// New creates a router over the given registry and store.
func New(reg *registry.Registry, store Store, logger *slog.Logger, collector metrics.Collector) *Router {
	return &Router{reg: reg, store: store, logger: logger, collector: collector}
}

// pushAll delivers frame to every session of user, skipping except when
// non-nil. Returns the number of sessions reached.
func (r *Router) pushAll(user uuid.UUID, except *uuid.UUID, frame string) int {
	sessions := r.reg.Sessions(user)
	if len(sessions) == 0 {
		r.collector.FanoutSkipped()
		r.logger.Debug("no live sessions for fan-out", "user", user)
		return 0
	}

	n := 0
	for _, s := range sessions {
		if except != nil && s.ConnectionID == *except {
			continue
		}
		s.Mailbox.Push(frame)
		n++
	}
	return n
}
