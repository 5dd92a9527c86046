package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nexuschat/nexusd/internal/protocol"
)

// uploadTimeout bounds the background mirror of one payload into object
// storage.
const uploadTimeout = 5 * time.Minute

// receiveFile handles a File envelope: decode the announcement, then
// consume exactly LenBytes raw bytes from the same buffered reader and
// spool them to the media root. Any failure mid-payload is fatal to the
// session because the framing position is lost.
func (h *Handler) receiveFile(ctx context.Context, fr *Framer, env *protocol.Envelope, logger *slog.Logger) error {
	req, err := env.DecodeFile()
	if err != nil {
		return err
	}
	file := req.File

	if err := os.MkdirAll(h.mediaRoot, 0o755); err != nil {
		return fmt.Errorf("create media root: %w", err)
	}

	name := file.ObjectName()
	path := filepath.Join(h.mediaRoot, name)

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}

	if _, err := io.CopyN(out, fr.Raw(), file.LenBytes); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("read payload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close media file: %w", err)
	}

	logger.Info("file received", "file", file.UUID, "name", file.Name, "bytes", file.LenBytes)
	h.collector.FileReceived(file.LenBytes)

	if !file.Secret {
		if err := h.media.InsertMedia(ctx, &file, name, path); err != nil {
			logger.Error("persist media failed", "file", file.UUID, "error", err)
		}
	}

	if h.uploader != nil {
		go func() {
			uctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
			defer cancel()
			if err := h.uploader.Upload(uctx, &file, path); err != nil {
				logger.Error("object upload failed", "file", file.UUID, "error", err)
			}
		}()
	}

	return nil
}
