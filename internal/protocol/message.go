package protocol

import (
	"time"

	"github.com/google/uuid"
)

// Sides names the two users of a message or call.
type Sides struct {
	Sender   uuid.UUID `json:"sender"`
	Receiver uuid.UUID `json:"receiver"`
}

// SidesOpt names the concrete connections of the two participants of a
// call. Both start unset; the server stamps Sender on Start and Receiver
// on Accept.
type SidesOpt struct {
	Sender   *uuid.UUID `json:"sender"`
	Receiver *uuid.UUID `json:"receiver"`
}

// MessageStatus tracks delivery state. Sent is flipped by the server the
// moment a message arrives, before persistence and fan-out.
type MessageStatus struct {
	Sent   bool `json:"sent"`
	Read   bool `json:"read"`
	Edited bool `json:"edited"`
}

// TextContent is the body of a text message. The text is ciphertext;
// clients encrypt end to end and the server never inspects it.
type TextContent struct {
	Text string `json:"text"`
}

// MessageType classifies message bodies. Only text is routed today; the
// other kinds arrive as file transfers.
type MessageType uint8

const (
	MessageText MessageType = iota
	MessageAudio
	MessageVideo
	MessageFile
)

// Message is one chat message as carried on the wire and persisted when
// not secret.
type Message struct {
	UUID        uuid.UUID     `json:"uuid"`
	Content     TextContent   `json:"content"`
	Nonce       CSVBytes      `json:"nonce"`
	Sides       Sides         `json:"sides"`
	Status      MessageStatus `json:"status"`
	TTL         *int64        `json:"ttl"`
	Secret      bool          `json:"secret"`
	Media       *Media        `json:"media"`
	MessageType MessageType   `json:"message_type"`
	CreatedAt   int64         `json:"created_at"`
	EditedAt    *int64        `json:"edited_at"`
}

// CreatedTime returns the creation timestamp as time.Time.
func (m *Message) CreatedTime() time.Time {
	return time.Unix(m.CreatedAt, 0)
}

// User is an authenticated principal. The password field holds the bcrypt
// hash and is never serialized.
type User struct {
	UUID      uuid.UUID `json:"uuid"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      Role      `json:"role"`
	PublicKey string    `json:"public_key"`
	CreatedAt int64     `json:"created_at"`
}
