// Package metrics defines the collector interface used across the server
// and its Prometheus and no-op implementations.
package metrics

// Collector receives operational events from the session, routing and
// relay layers.
type Collector interface {
	// ConnectionOpened records a new TCP session.
	ConnectionOpened()

	// ConnectionClosed records a TCP session ending.
	ConnectionClosed()

	// AuthAttempt records a session handshake or per-frame token check.
	AuthAttempt(success bool)

	// MessageRouted records one message fan-out.
	MessageRouted(secret bool)

	// CallEvent records one call-signalling fan-out by index name.
	CallEvent(index string)

	// FanoutSkipped records a fan-out whose receiver had no sessions.
	FanoutSkipped()

	// FileReceived records a completed file transfer and its size.
	FileReceived(sizeBytes int64)

	// UDPRelayed records one forwarded media frame.
	UDPRelayed()

	// UDPDropped records one dropped media frame by reason.
	UDPDropped(reason string)
}
