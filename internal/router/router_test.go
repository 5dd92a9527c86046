package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/netip"
	"testing"

	"github.com/google/uuid"

	"github.com/nexuschat/nexusd/internal/metrics"
	"github.com/nexuschat/nexusd/internal/protocol"
	"github.com/nexuschat/nexusd/internal/registry"
)

// fakeStore records persistence calls and can simulate a missing call
// row on update.
type fakeStore struct {
	messages []protocol.Message
	calls    []protocol.MediaCall
	updates  []protocol.MediaCall
	applied  bool
}

func (f *fakeStore) InsertMessage(_ context.Context, m *protocol.Message) error {
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeStore) InsertCall(_ context.Context, c *protocol.MediaCall) error {
	f.calls = append(f.calls, *c)
	return nil
}

func (f *fakeStore) UpdateCall(_ context.Context, c *protocol.MediaCall) (bool, error) {
	f.updates = append(f.updates, *c)
	return f.applied, nil
}

func newTestRouter(t *testing.T) (*Router, *registry.Registry, *fakeStore) {
	t.Helper()
	reg := registry.New()
	store := &fakeStore{applied: true}
	r := New(reg, store, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.NewNoopCollector())
	return r, reg, store
}

func register(t *testing.T, reg *registry.Registry, user uuid.UUID) (uuid.UUID, *registry.Mailbox) {
	t.Helper()
	conn := uuid.New()
	mbox, err := reg.Insert(user, conn, netip.MustParseAddrPort("192.0.2.1:5000"))
	if err != nil {
		t.Fatal(err)
	}
	return conn, mbox
}

func messageEnvelope(t *testing.T, sender, receiver uuid.UUID, secret bool) *protocol.Envelope {
	t.Helper()
	body, err := json.Marshal(protocol.MessageRequest{Message: protocol.Message{
		UUID:      uuid.New(),
		Content:   protocol.TextContent{Text: "hi"},
		Sides:     protocol.Sides{Sender: sender, Receiver: receiver},
		Secret:    secret,
		CreatedAt: 1700000000,
	}})
	if err != nil {
		t.Fatal(err)
	}
	return &protocol.Envelope{Command: protocol.CommandMessage, Body: body, Token: "t"}
}

func callEnvelope(t *testing.T, index protocol.IndexToken, call protocol.MediaCall) *protocol.Envelope {
	t.Helper()
	body, err := json.Marshal(protocol.CallRequest{Call: call, Index: index, CreatedAt: call.CreatedAt})
	if err != nil {
		t.Fatal(err)
	}
	return &protocol.Envelope{Command: protocol.CommandCall, Body: body, Token: "t"}
}

func drainOne(t *testing.T, mbox *registry.Mailbox) string {
	t.Helper()
	if mbox.Len() == 0 {
		t.Fatal("mailbox is empty")
	}
	frame, ok := mbox.Receive()
	if !ok {
		t.Fatal("mailbox closed")
	}
	return frame
}

func TestHandleMessageFanOut(t *testing.T) {
	r, reg, store := newTestRouter(t)
	alice := uuid.New()
	bob := uuid.New()

	a1, mboxA1 := register(t, reg, alice)
	_, mboxA2 := register(t, reg, alice)
	_, mboxB1 := register(t, reg, bob)
	_, mboxB2 := register(t, reg, bob)

	env := messageEnvelope(t, alice, bob, false)
	if err := r.HandleMessage(context.Background(), env, a1); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	// Both receiver devices get the message.
	for _, mbox := range []*registry.Mailbox{mboxB1, mboxB2} {
		var msg protocol.Message
		if err := json.Unmarshal([]byte(drainOne(t, mbox)), &msg); err != nil {
			t.Fatalf("receiver frame: %v", err)
		}
		if !msg.Status.Sent {
			t.Error("routed message should carry sent=true")
		}
	}

	// The sender's other device is echoed; the origin is not.
	if mboxA2.Len() != 1 {
		t.Errorf("sender sibling mailbox = %d frames, want 1", mboxA2.Len())
	}
	if mboxA1.Len() != 0 {
		t.Errorf("origin mailbox = %d frames, want 0", mboxA1.Len())
	}

	if len(store.messages) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(store.messages))
	}
	if !store.messages[0].Status.Sent {
		t.Error("persisted message should carry sent=true")
	}
}

func TestHandleMessageSecretNotPersisted(t *testing.T) {
	r, reg, store := newTestRouter(t)
	alice := uuid.New()
	bob := uuid.New()

	a1, _ := register(t, reg, alice)
	_, mboxB := register(t, reg, bob)

	env := messageEnvelope(t, alice, bob, true)
	if err := r.HandleMessage(context.Background(), env, a1); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if len(store.messages) != 0 {
		t.Errorf("secret message persisted %d times, want 0", len(store.messages))
	}
	if mboxB.Len() != 1 {
		t.Errorf("receiver mailbox = %d frames, want 1", mboxB.Len())
	}
}

func TestHandleMessageOfflineReceiver(t *testing.T) {
	r, reg, _ := newTestRouter(t)
	alice := uuid.New()

	a1, mboxA := register(t, reg, alice)

	env := messageEnvelope(t, alice, uuid.New(), false)
	if err := r.HandleMessage(context.Background(), env, a1); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if mboxA.Len() != 0 {
		t.Errorf("origin mailbox = %d frames, want 0", mboxA.Len())
	}
}

func TestHandleCallStart(t *testing.T) {
	r, reg, store := newTestRouter(t)
	alice := uuid.New()
	bob := uuid.New()

	a1, mboxA1 := register(t, reg, alice)
	_, mboxA2 := register(t, reg, alice)
	_, mboxB1 := register(t, reg, bob)

	call := protocol.MediaCall{
		UUID:      uuid.New(),
		Sides:     protocol.Sides{Sender: alice, Receiver: bob},
		CreatedAt: 1700000000,
	}
	if err := r.HandleCall(context.Background(), callEnvelope(t, protocol.IndexStart, call), a1); err != nil {
		t.Fatalf("HandleCall() error = %v", err)
	}

	var req protocol.CallRequest
	if err := json.Unmarshal([]byte(drainOne(t, mboxB1)), &req); err != nil {
		t.Fatal(err)
	}
	if req.Index != protocol.IndexStart {
		t.Errorf("receiver index = %d, want Start", req.Index)
	}
	if req.Call.Peers.Sender == nil || *req.Call.Peers.Sender != a1 {
		t.Errorf("peers.sender = %v, want origin %s", req.Call.Peers.Sender, a1)
	}

	if mboxA2.Len() != 1 {
		t.Errorf("sender sibling mailbox = %d frames, want 1", mboxA2.Len())
	}
	if mboxA1.Len() != 0 {
		t.Errorf("origin mailbox = %d frames, want 0", mboxA1.Len())
	}
	if len(store.calls) != 1 {
		t.Errorf("persisted %d calls, want 1", len(store.calls))
	}
}

func TestHandleCallAcceptRewrite(t *testing.T) {
	r, reg, store := newTestRouter(t)
	alice := uuid.New()
	bob := uuid.New()

	a1, mboxA1 := register(t, reg, alice)
	_, mboxA2 := register(t, reg, alice)
	b1, mboxB1 := register(t, reg, bob)
	_, mboxB2 := register(t, reg, bob)

	call := protocol.MediaCall{
		UUID:      uuid.New(),
		Sides:     protocol.Sides{Sender: alice, Receiver: bob},
		Peers:     protocol.SidesOpt{Sender: &a1},
		CreatedAt: 1700000000,
	}
	if err := r.HandleCall(context.Background(), callEnvelope(t, protocol.IndexAccept, call), b1); err != nil {
		t.Fatalf("HandleCall() error = %v", err)
	}

	// The dialing connection gets Accept with both peers stamped.
	var req protocol.CallRequest
	if err := json.Unmarshal([]byte(drainOne(t, mboxA1)), &req); err != nil {
		t.Fatal(err)
	}
	if req.Index != protocol.IndexAccept {
		t.Errorf("dialer index = %d, want Accept", req.Index)
	}
	if !req.Call.Accepted {
		t.Error("dialer frame should carry accepted=true")
	}
	if req.Call.Peers.Receiver == nil || *req.Call.Peers.Receiver != b1 {
		t.Errorf("peers.receiver = %v, want %s", req.Call.Peers.Receiver, b1)
	}

	// Everyone else involved sees the synthesized Accepted.
	for name, mbox := range map[string]*registry.Mailbox{"sender sibling": mboxA2, "receiver sibling": mboxB2} {
		var sib protocol.CallRequest
		if err := json.Unmarshal([]byte(drainOne(t, mbox)), &sib); err != nil {
			t.Fatal(err)
		}
		if sib.Index != protocol.IndexAccepted {
			t.Errorf("%s index = %d, want Accepted", name, sib.Index)
		}
	}

	// The accepting connection already knows.
	if mboxB1.Len() != 0 {
		t.Errorf("accepting mailbox = %d frames, want 0", mboxB1.Len())
	}

	if len(store.updates) != 1 {
		t.Fatalf("updated %d calls, want 1", len(store.updates))
	}
	if !store.updates[0].Accepted {
		t.Error("updated call should carry accepted=true")
	}
}

func TestHandleCallEnd(t *testing.T) {
	r, reg, _ := newTestRouter(t)
	alice := uuid.New()
	bob := uuid.New()

	a1, mboxA1 := register(t, reg, alice)
	_, mboxB1 := register(t, reg, bob)

	call := protocol.MediaCall{
		UUID:      uuid.New(),
		Sides:     protocol.Sides{Sender: alice, Receiver: bob},
		Accepted:  true,
		CreatedAt: 1700000000,
	}
	if err := r.HandleCall(context.Background(), callEnvelope(t, protocol.IndexEnd, call), a1); err != nil {
		t.Fatalf("HandleCall() error = %v", err)
	}

	// End reaches every session of both users, the origin included.
	for name, mbox := range map[string]*registry.Mailbox{"sender": mboxA1, "receiver": mboxB1} {
		var req protocol.CallRequest
		if err := json.Unmarshal([]byte(drainOne(t, mbox)), &req); err != nil {
			t.Fatal(err)
		}
		if req.Index != protocol.IndexEnd {
			t.Errorf("%s index = %d, want End", name, req.Index)
		}
	}
}

func TestHandleCallEndMissingRow(t *testing.T) {
	r, reg, store := newTestRouter(t)
	store.applied = false

	alice := uuid.New()
	a1, _ := register(t, reg, alice)

	call := protocol.MediaCall{
		UUID:  uuid.New(),
		Sides: protocol.Sides{Sender: alice, Receiver: uuid.New()},
	}
	// A missing row is a no-op, never an error.
	if err := r.HandleCall(context.Background(), callEnvelope(t, protocol.IndexEnd, call), a1); err != nil {
		t.Fatalf("HandleCall() error = %v", err)
	}
}

func TestHandleCallInboundAcceptedIgnored(t *testing.T) {
	r, reg, store := newTestRouter(t)
	alice := uuid.New()
	bob := uuid.New()

	a1, _ := register(t, reg, alice)
	_, mboxB := register(t, reg, bob)

	call := protocol.MediaCall{
		UUID:  uuid.New(),
		Sides: protocol.Sides{Sender: alice, Receiver: bob},
	}
	if err := r.HandleCall(context.Background(), callEnvelope(t, protocol.IndexAccepted, call), a1); err != nil {
		t.Fatalf("HandleCall() error = %v", err)
	}

	if mboxB.Len() != 0 {
		t.Errorf("receiver mailbox = %d frames, want 0", mboxB.Len())
	}
	if len(store.calls)+len(store.updates) != 0 {
		t.Error("inbound Accepted must not touch the store")
	}
}

func TestHandleCallSecretNotPersisted(t *testing.T) {
	r, reg, store := newTestRouter(t)
	alice := uuid.New()
	bob := uuid.New()

	a1, _ := register(t, reg, alice)
	_, mboxB := register(t, reg, bob)

	call := protocol.MediaCall{
		UUID:   uuid.New(),
		Sides:  protocol.Sides{Sender: alice, Receiver: bob},
		Secret: true,
	}
	if err := r.HandleCall(context.Background(), callEnvelope(t, protocol.IndexStart, call), a1); err != nil {
		t.Fatalf("HandleCall() error = %v", err)
	}

	if len(store.calls) != 0 {
		t.Errorf("secret call persisted %d times, want 0", len(store.calls))
	}
	if mboxB.Len() != 1 {
		t.Errorf("receiver mailbox = %d frames, want 1", mboxB.Len())
	}
}
