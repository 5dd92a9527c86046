// Package stream runs the framed TCP session channel: handshake, the
// per-connection read loop, the mailbox-driven write loop, and the raw
// payload mode used for file transfers.
package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"

	"github.com/google/uuid"

	"github.com/nexuschat/nexusd/internal/metrics"
	"github.com/nexuschat/nexusd/internal/protocol"
	"github.com/nexuschat/nexusd/internal/registry"
)

// invalidJWTLine is sent verbatim when the handshake token is rejected.
const invalidJWTLine = "Invalid JWT"

// TokenVerifier authenticates the token carried on every frame.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}

// Dispatcher routes decoded message and call envelopes.
type Dispatcher interface {
	HandleMessage(ctx context.Context, env *protocol.Envelope, origin uuid.UUID) error
	HandleCall(ctx context.Context, env *protocol.Envelope, origin uuid.UUID) error
}

// MediaStore persists file transfer metadata.
type MediaStore interface {
	InsertMedia(ctx context.Context, f *protocol.MediaFile, name, path string) error
}

// Uploader mirrors a received payload into object storage.
type Uploader interface {
	Upload(ctx context.Context, f *protocol.MediaFile, path string) error
}

// Handler owns the lifecycle of framed sessions.
type Handler struct {
	reg       *registry.Registry
	gate      TokenVerifier
	router    Dispatcher
	media     MediaStore
	uploader  Uploader
	mediaRoot string
	logger    *slog.Logger
	collector metrics.Collector
}

// NewHandler wires a session handler. uploader may be nil when object
// storage is disabled.
func NewHandler(reg *registry.Registry, gate TokenVerifier, router Dispatcher, media MediaStore, uploader Uploader, mediaRoot string, logger *slog.Logger, collector metrics.Collector) *Handler {
	return &Handler{
		reg:       reg,
		gate:      gate,
		router:    router,
		media:     media,
		uploader:  uploader,
		mediaRoot: mediaRoot,
		logger:    logger,
		collector: collector,
	}
}

// Handle runs one session to completion. It returns when the client
// disconnects, a fatal protocol error occurs, or ctx is cancelled.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Shutdown closes the connection to unblock the read loop.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	h.collector.ConnectionOpened()
	defer h.collector.ConnectionClosed()

	fr := NewFramer(conn)

	user, ok := h.handshake(ctx, fr)
	if !ok {
		return
	}

	connID := uuid.New()
	addr := remoteAddrPort(conn)
	logger := h.logger.With("user", user, "conn", connID, "remote", addr)

	mbox, err := h.reg.Insert(user, connID, addr)
	if err != nil {
		logger.Warn("session registration failed", "error", err)
		return
	}
	defer h.reg.Remove(user, connID)

	ack, err := protocol.EncodeResponse(protocol.StatusOk, protocol.CodeConnectionEstablished)
	if err != nil {
		logger.Error("encode handshake ack failed", "error", err)
		return
	}
	if err := fr.WriteFrame(ack); err != nil {
		logger.Debug("handshake ack write failed", "error", err)
		return
	}

	logger.Info("session established")

	// The write loop is the only goroutine touching the outbound side
	// after the ack. It exits when the mailbox closes on Remove, or it
	// closes the connection on write failure to unblock the read loop.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			frame, ok := mbox.Receive()
			if !ok {
				return
			}
			if err := fr.WriteFrame(frame); err != nil {
				logger.Debug("frame write failed", "error", err)
				conn.Close()
				return
			}
		}
	}()

	h.readLoop(ctx, fr, logger, user, connID)

	h.reg.Remove(user, connID)
	<-writeDone
	logger.Info("session closed")
}

// handshake authenticates the first frame. On failure the client gets
// the literal line "Invalid JWT" and the connection is dropped.
func (h *Handler) handshake(ctx context.Context, fr *Framer) (uuid.UUID, bool) {
	line, err := fr.ReadFrame()
	if err != nil {
		return uuid.Nil, false
	}

	user, err := h.authenticate(ctx, line)
	if err != nil {
		h.collector.AuthAttempt(false)
		h.logger.Warn("handshake rejected", "remote", fr.RemoteAddr(), "error", err)
		if err := fr.WriteFrame(invalidJWTLine); err != nil {
			h.logger.Debug("handshake rejection write failed", "error", err)
		}
		return uuid.Nil, false
	}

	h.collector.AuthAttempt(true)
	return user, true
}

func (h *Handler) authenticate(ctx context.Context, line []byte) (uuid.UUID, error) {
	env, err := protocol.DecodeEnvelope(line)
	if err != nil {
		return uuid.Nil, err
	}
	return h.gate.Verify(ctx, env.Token)
}

// readLoop pulls frames until the client disconnects or a fatal error
// occurs. Malformed frames are logged and skipped; an invalid token or
// a broken file transfer terminates the session.
func (h *Handler) readLoop(ctx context.Context, fr *Framer, logger *slog.Logger, user, connID uuid.UUID) {
	for {
		line, err := fr.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Debug("frame read failed", "error", err)
			}
			return
		}
		if len(line) == 0 {
			continue
		}

		env, err := protocol.DecodeEnvelope(line)
		if err != nil {
			logger.Warn("malformed frame", "error", err)
			continue
		}

		// Every frame carries the token; a stale or revoked one ends
		// the session without a reply.
		tokenUser, err := h.gate.Verify(ctx, env.Token)
		if err != nil || tokenUser != user {
			h.collector.AuthAttempt(false)
			logger.Warn("frame token rejected", "error", err)
			return
		}

		switch env.Command {
		case protocol.CommandMessage:
			if err := h.router.HandleMessage(ctx, &env, connID); err != nil {
				logger.Warn("message dispatch failed", "error", err)
			}
		case protocol.CommandCall:
			if err := h.router.HandleCall(ctx, &env, connID); err != nil {
				logger.Warn("call dispatch failed", "error", err)
			}
		case protocol.CommandFile:
			// A failed transfer leaves the stream position unknown, so
			// the session cannot continue.
			if err := h.receiveFile(ctx, fr, &env, logger); err != nil {
				logger.Warn("file transfer failed", "error", err)
				return
			}
		}
	}
}

// remoteAddrPort extracts the peer address. Non-TCP test connections
// yield the zero AddrPort.
func remoteAddrPort(conn net.Conn) netip.AddrPort {
	if tcp, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return tcp.AddrPort()
	}
	if ap, err := netip.ParseAddrPort(conn.RemoteAddr().String()); err == nil {
		return ap
	}
	return netip.AddrPort{}
}
