package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nexuschat/nexusd/internal/protocol"
)

// HandleCall drives the call state machine for one inbound call envelope.
//
// Start rings every receiver session and echoes to the sender's other
// devices. Accept goes back to the dialing connection as Accept and to
// everyone else involved as the synthesized Accepted, so their UIs stop
// ringing. End goes to all sessions of both users unchanged.
func (r *Router) HandleCall(ctx context.Context, env *protocol.Envelope, origin uuid.UUID) error {
	req, err := env.DecodeCall()
	if err != nil {
		if errors.Is(err, protocol.ErrInboundAccepted) {
			// Output-only token; a client sending it is ignored.
			r.logger.Warn("ignoring inbound Accepted index", "origin", origin)
			return nil
		}
		return err
	}

	switch req.Index {
	case protocol.IndexAccept:
		req.Call.Accepted = true
	case protocol.IndexEnd:
		// Accepted state arrives from the client; duration derives from it.
	}

	if !req.Call.Secret {
		switch req.Index {
		case protocol.IndexStart:
			if err := r.store.InsertCall(ctx, &req.Call); err != nil {
				r.logger.Error("persist call failed", "uuid", req.Call.UUID, "error", err)
			}
		case protocol.IndexAccept, protocol.IndexEnd:
			applied, err := r.store.UpdateCall(ctx, &req.Call)
			if err != nil {
				r.logger.Error("update call failed", "uuid", req.Call.UUID, "error", err)
			} else if !applied {
				// End can outrun a Start that was never persisted; nothing to do.
				r.logger.Debug("call row missing on update", "uuid", req.Call.UUID, "index", req.Index.String())
			}
		}
	}

	// Stamp the concrete connection of each participant.
	switch req.Index {
	case protocol.IndexStart:
		o := origin
		req.Call.Peers.Sender = &o
	case protocol.IndexAccept:
		o := origin
		req.Call.Peers.Receiver = &o
	}

	frame, err := encodeCall(&req)
	if err != nil {
		return err
	}

	sender := req.Call.Sides.Sender
	receiver := req.Call.Sides.Receiver

	switch req.Index {
	case protocol.IndexStart:
		r.pushAll(receiver, nil, frame)
		r.pushAll(sender, &origin, frame)

	case protocol.IndexAccept:
		accepted := req
		accepted.Index = protocol.IndexAccepted
		acceptedFrame, err := encodeCall(&accepted)
		if err != nil {
			return err
		}

		// The dialing connection gets Accept; every other sender session
		// learns the call was accepted elsewhere.
		for _, s := range r.reg.Sessions(sender) {
			if req.Call.Peers.Sender != nil && s.ConnectionID == *req.Call.Peers.Sender {
				s.Mailbox.Push(frame)
			} else {
				s.Mailbox.Push(acceptedFrame)
			}
		}
		// The accepting connection already knows; its siblings get Accepted.
		r.pushAll(receiver, req.Call.Peers.Receiver, acceptedFrame)

	case protocol.IndexEnd:
		r.pushAll(sender, nil, frame)
		if receiver != sender {
			r.pushAll(receiver, nil, frame)
		}
	}

	r.collector.CallEvent(req.Index.String())
	return nil
}

func encodeCall(req *protocol.CallRequest) (string, error) {
	out, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode call: %w", err)
	}
	return string(out), nil
}
