package metrics

// NoopCollector discards all events. Used when metrics are disabled and
// in tests.
type NoopCollector struct{}

// NewNoopCollector creates a collector that does nothing.
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (*NoopCollector) ConnectionOpened()  {}
func (*NoopCollector) ConnectionClosed()  {}
func (*NoopCollector) AuthAttempt(bool)   {}
func (*NoopCollector) MessageRouted(bool) {}
func (*NoopCollector) CallEvent(string)   {}
func (*NoopCollector) FanoutSkipped()     {}
func (*NoopCollector) FileReceived(int64) {}
func (*NoopCollector) UDPRelayed()        {}
func (*NoopCollector) UDPDropped(string)  {}
