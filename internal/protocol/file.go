package protocol

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaFile announces a file transfer. After the announcing envelope the
// session stream switches to raw bytes for exactly LenBytes bytes.
type MediaFile struct {
	UUID      uuid.UUID `json:"uuid"`
	LenBytes  int64     `json:"len_bytes"`
	LenChunks int64     `json:"len_chunks"`
	Name      string    `json:"name"`
	MediaType MediaType `json:"media_type"`
	Secret    bool      `json:"secret"`
	Sender    uuid.UUID `json:"sender"`
	CreatedAt int64     `json:"created_at"`
}

// CreatedTime returns the creation timestamp as time.Time.
func (f *MediaFile) CreatedTime() time.Time {
	return time.Unix(f.CreatedAt, 0)
}

// Ext returns the last dot-segment of the announced file name, or "bin"
// when the name carries no extension.
func (f *MediaFile) Ext() string {
	if i := strings.LastIndexByte(f.Name, '.'); i >= 0 && i < len(f.Name)-1 {
		return f.Name[i+1:]
	}
	return "bin"
}

// ObjectName returns the storage name for the payload: "<uuid>.<ext>".
func (f *MediaFile) ObjectName() string {
	return f.UUID.String() + "." + f.Ext()
}
