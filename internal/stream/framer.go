package stream

import (
	"bufio"
	"errors"
	"io"
	"net"
)

// MaxFrameLen bounds one control frame. A line that does not fit is a
// protocol violation and terminates the session.
const MaxFrameLen = 64 * 1024

// ErrFrameTooLarge reports an inbound line exceeding MaxFrameLen.
var ErrFrameTooLarge = errors.New("stream: frame too large")

// Framer turns a TCP stream into a sequence of newline-delimited JSON
// frames. During a file transfer the session reads the payload straight
// from Raw(), then resumes framing on the same reader, so any payload
// bytes already buffered are not lost.
type Framer struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// NewFramer wraps a connection.
func NewFramer(conn net.Conn) *Framer {
	return &Framer{
		conn: conn,
		r:    bufio.NewReaderSize(conn, MaxFrameLen),
		w:    bufio.NewWriter(conn),
	}
}

// ReadFrame returns the next line without its terminator. The returned
// slice is owned by the caller.
func (f *Framer) ReadFrame() ([]byte, error) {
	line, err := f.r.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, ErrFrameTooLarge
		}
		if len(line) > 0 && errors.Is(err, io.EOF) {
			// Final unterminated line; deliver it.
			return trimFrame(line), nil
		}
		return nil, err
	}
	return trimFrame(line), nil
}

// WriteFrame sends one frame, appending the newline, and flushes.
func (f *Framer) WriteFrame(frame string) error {
	if _, err := f.w.WriteString(frame); err != nil {
		return err
	}
	if err := f.w.WriteByte('\n'); err != nil {
		return err
	}
	return f.w.Flush()
}

// Raw exposes the buffered reader for length-bounded payload reads.
func (f *Framer) Raw() io.Reader {
	return f.r
}

// RemoteAddr returns the peer address of the underlying connection.
func (f *Framer) RemoteAddr() net.Addr {
	return f.conn.RemoteAddr()
}

func trimFrame(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	out := make([]byte, len(line))
	copy(out, line)
	return out
}
