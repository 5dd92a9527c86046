package protocol

// IndexToken discriminates call-signalling events.
// Encoded as a JSON number.
type IndexToken uint8

const (
	IndexStart IndexToken = iota
	IndexAccept
	// IndexAccepted is emitted by the server to sessions other than the
	// accepting one. It is never valid on inbound frames.
	IndexAccepted
	IndexEnd
)

// String returns the token name for logging and metrics labels.
func (i IndexToken) String() string {
	switch i {
	case IndexStart:
		return "start"
	case IndexAccept:
		return "accept"
	case IndexAccepted:
		return "accepted"
	case IndexEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Valid reports whether i is a known token.
func (i IndexToken) Valid() bool {
	return i <= IndexEnd
}
