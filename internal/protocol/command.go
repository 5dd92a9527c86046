// Package protocol defines the wire types shared by the TCP session
// channel, the UDP media channel and the persistence layer: the outer
// envelope, message/call/file bodies, and their JSON and binary codecs.
package protocol

// Command selects the operation an envelope carries.
// Encoded as a JSON number.
type Command uint8

const (
	CommandMessage Command = iota
	CommandCall
	CommandFile
)

// String returns the command name for logging.
func (c Command) String() string {
	switch c {
	case CommandMessage:
		return "message"
	case CommandCall:
		return "call"
	case CommandFile:
		return "file"
	default:
		return "unknown"
	}
}

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	return c <= CommandFile
}
