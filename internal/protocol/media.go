package protocol

import "github.com/google/uuid"

// MediaType classifies stored media objects. Encoded as a JSON number.
type MediaType uint8

const (
	MediaAudio MediaType = iota
	MediaFileKind
	MediaImage
	MediaVideo
)

// String returns the lowercase kind name.
func (m MediaType) String() string {
	switch m {
	case MediaAudio:
		return "audio"
	case MediaFileKind:
		return "file"
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Bucket returns the object-store bucket for this media kind.
func (m MediaType) Bucket() string {
	return m.String() + "s"
}

// MediaTypes lists every media kind, in wire order.
func MediaTypes() []MediaType {
	return []MediaType{MediaAudio, MediaFileKind, MediaImage, MediaVideo}
}

// Media carries file attachments riding on a message.
type Media struct {
	Attachments []MediaAttachment `json:"attachments"`
}

// MediaAttachment references one stored media object from a message.
type MediaAttachment struct {
	UUID      uuid.UUID `json:"uuid"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	MediaType MediaType `json:"media_type"`
}
