// Package relay forwards media datagrams between call peers. Each frame
// names its target connection; the relay resolves it against the live
// session registry and forwards the datagram bytes untouched. There are
// no retries and no acknowledgements.
package relay

import (
	"context"
	"log/slog"
	"net"
	"net/netip"

	"github.com/google/uuid"

	"github.com/nexuschat/nexusd/internal/metrics"
	"github.com/nexuschat/nexusd/internal/protocol"
)

// maxDatagram bounds one media frame. Larger datagrams are truncated by
// the kernel and fail to decode.
const maxDatagram = 64 * 1024

// AddrResolver resolves a (user, connection) pair to its remote address.
type AddrResolver interface {
	LookupAddr(user, conn uuid.UUID) (netip.AddrPort, bool)
}

// Relay is the UDP forwarding loop.
type Relay struct {
	conn      *net.UDPConn
	resolver  AddrResolver
	logger    *slog.Logger
	collector metrics.Collector
}

// New creates a relay over an already-bound UDP socket.
func New(conn *net.UDPConn, resolver AddrResolver, logger *slog.Logger, collector metrics.Collector) *Relay {
	return &Relay{conn: conn, resolver: resolver, logger: logger, collector: collector}
}

// Run reads datagrams until ctx is cancelled or the socket fails. Each
// datagram is decoded just enough to find the target, then forwarded
// verbatim, so the receiver sees exactly the bytes the sender produced.
func (r *Relay) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		r.conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := r.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		r.forward(buf[:n], from)
	}
}

func (r *Relay) forward(frame []byte, from netip.AddrPort) {
	var call protocol.MediaCall
	if err := call.UnmarshalBinary(frame); err != nil {
		r.collector.UDPDropped("parse")
		r.logger.Debug("dropping undecodable datagram", "from", from, "len", len(frame), "error", err)
		return
	}

	if call.Peers.Receiver == nil {
		r.collector.UDPDropped("no_peer")
		r.logger.Debug("dropping datagram without target peer", "call", call.UUID, "from", from)
		return
	}

	addr, ok := r.resolver.LookupAddr(call.Sides.Receiver, *call.Peers.Receiver)
	if !ok {
		r.collector.UDPDropped("no_session")
		r.logger.Debug("dropping datagram for offline peer", "call", call.UUID, "receiver", call.Sides.Receiver)
		return
	}

	if _, err := r.conn.WriteToUDPAddrPort(frame, addr); err != nil {
		r.collector.UDPDropped("write")
		r.logger.Debug("datagram forward failed", "call", call.UUID, "to", addr, "error", err)
		return
	}
	r.collector.UDPRelayed()
}
