package registry

import "sync"

// Mailbox is the unbounded outbound queue of one session. Producers push
// serialized frames without ever blocking; the single consumer is the
// session's write loop. Pushes after Close are discarded silently, so a
// router fanning out to a session that is tearing down never stalls.
type Mailbox struct {
	mu     sync.Mutex
	queue  []string
	closed bool
	wake   chan struct{}
}

func newMailbox() *Mailbox {
	return &Mailbox{wake: make(chan struct{}, 1)}
}

// Push enqueues one frame. It never blocks.
func (m *Mailbox) Push(frame string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, frame)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Receive blocks until a frame is available or the mailbox is closed and
// drained. The second return value is false once no more frames will be
// delivered.
func (m *Mailbox) Receive() (string, bool) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			frame := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return frame, true
		}
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return "", false
		}
		<-m.wake
	}
}

// Close marks the mailbox dead. Queued frames are dropped: the session is
// gone and nothing will read them.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued frames.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
