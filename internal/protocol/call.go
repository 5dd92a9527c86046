package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrShortFrame reports a binary call frame that ended before all fields
// were read, typically a datagram truncated by the relay scratch buffer.
var ErrShortFrame = errors.New("protocol: short call frame")

// MediaCall is one call-signalling event. On the TCP channel it travels
// as JSON inside a CallRequest; on the UDP channel it travels in the
// binary form produced by MarshalBinary.
type MediaCall struct {
	UUID      uuid.UUID `json:"uuid"`
	Message   ByteSeq   `json:"message"`
	Nonce     ByteSeq   `json:"nonce"`
	Sides     Sides     `json:"sides"`
	Peers     SidesOpt  `json:"peers"`
	Secret    bool      `json:"secret"`
	Accepted  bool      `json:"accepted"`
	CreatedAt int64     `json:"created_at"`
}

// CreatedTime returns the creation timestamp as time.Time.
func (c *MediaCall) CreatedTime() time.Time {
	return time.Unix(c.CreatedAt, 0)
}

// Duration returns the call duration in seconds, evaluated now.
// An unaccepted call has duration 0.
func (c *MediaCall) Duration() int64 {
	if !c.Accepted {
		return 0
	}
	return time.Now().Unix() - c.CreatedAt
}

// MarshalBinary encodes the call in the UDP frame layout: little-endian,
// with u64 length prefixes on the variable-length fields and a one-byte
// presence tag on each optional peer.
func (c *MediaCall) MarshalBinary() ([]byte, error) {
	size := 16 + 8 + len(c.Message) + 8 + len(c.Nonce) + 32 + 2 + optSize(c.Peers.Sender) + optSize(c.Peers.Receiver) + 2 + 8
	buf := make([]byte, 0, size)

	buf = append(buf, c.UUID[:]...)
	buf = appendBytes(buf, c.Message)
	buf = appendBytes(buf, c.Nonce)
	buf = append(buf, c.Sides.Sender[:]...)
	buf = append(buf, c.Sides.Receiver[:]...)
	buf = appendOpt(buf, c.Peers.Sender)
	buf = appendOpt(buf, c.Peers.Receiver)
	buf = appendBool(buf, c.Secret)
	buf = appendBool(buf, c.Accepted)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(c.CreatedAt))

	return buf, nil
}

// UnmarshalBinary decodes the layout produced by MarshalBinary.
func (c *MediaCall) UnmarshalBinary(data []byte) error {
	d := &frameReader{buf: data}

	d.uuid(&c.UUID)
	c.Message = d.bytes()
	c.Nonce = d.bytes()
	d.uuid(&c.Sides.Sender)
	d.uuid(&c.Sides.Receiver)
	c.Peers.Sender = d.opt()
	c.Peers.Receiver = d.opt()
	c.Secret = d.bool()
	c.Accepted = d.bool()
	c.CreatedAt = int64(d.u64())

	if d.err != nil {
		return d.err
	}
	if len(d.buf) != 0 {
		return fmt.Errorf("protocol: %d trailing bytes in call frame", len(d.buf))
	}
	return nil
}

func optSize(p *uuid.UUID) int {
	if p == nil {
		return 1
	}
	return 17
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(b)))
	return append(buf, b...)
}

func appendOpt(buf []byte, p *uuid.UUID) []byte {
	if p == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return append(buf, p[:]...)
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// frameReader consumes a binary call frame. The first error sticks and
// every later read returns zero values.
type frameReader struct {
	buf []byte
	err error
}

func (d *frameReader) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < n {
		d.err = ErrShortFrame
		return nil
	}
	out := d.buf[:n]
	d.buf = d.buf[n:]
	return out
}

func (d *frameReader) uuid(dst *uuid.UUID) {
	if b := d.take(16); b != nil {
		copy(dst[:], b)
	}
}

func (d *frameReader) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *frameReader) bytes() []byte {
	n := d.u64()
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.buf)) {
		d.err = ErrShortFrame
		return nil
	}
	out := make([]byte, n)
	copy(out, d.take(int(n)))
	return out
}

func (d *frameReader) opt() *uuid.UUID {
	tag := d.take(1)
	if tag == nil || tag[0] == 0 {
		return nil
	}
	var u uuid.UUID
	d.uuid(&u)
	if d.err != nil {
		return nil
	}
	return &u
}

func (d *frameReader) bool() bool {
	b := d.take(1)
	return b != nil && b[0] != 0
}
