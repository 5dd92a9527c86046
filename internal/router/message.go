package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nexuschat/nexusd/internal/protocol"
)

// HandleMessage routes one inbound message envelope from the session
// identified by origin. The message is marked sent, persisted unless
// secret, then delivered to every session of the receiver and to every
// session of the sender except the originating one, so the sender's
// other devices see the outbound message too.
func (r *Router) HandleMessage(ctx context.Context, env *protocol.Envelope, origin uuid.UUID) error {
	req, err := env.DecodeMessage()
	if err != nil {
		return err
	}
	msg := req.Message

	// Sent is stamped before persistence and before fan-out.
	msg.Status.Sent = true

	if !msg.Secret {
		if err := r.store.InsertMessage(ctx, &msg); err != nil {
			r.logger.Error("persist message failed", "uuid", msg.UUID, "error", err)
		}
	}

	frame, err := json.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	r.pushAll(msg.Sides.Receiver, nil, string(frame))
	r.pushAll(msg.Sides.Sender, &origin, string(frame))

	r.collector.MessageRouted(msg.Secret)
	return nil
}
