// Package objstore mirrors received media payloads into a MinIO
// deployment, one bucket per media kind. The object store is optional;
// when it is disabled payloads stay on local disk only.
package objstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nexuschat/nexusd/internal/protocol"
)

// Client wraps a MinIO connection.
type Client struct {
	mc     *minio.Client
	logger *slog.Logger
}

// Connect builds a client against host:port with static credentials.
func Connect(host, port, user, password string, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(host+":"+port, &minio.Options{
		Creds:  credentials.NewStaticV4(user, password, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connect: %w", err)
	}
	return &Client{mc: mc, logger: logger}, nil
}

// EnsureBuckets creates the per-kind media buckets that do not exist yet.
func (c *Client) EnsureBuckets(ctx context.Context) error {
	for _, kind := range protocol.MediaTypes() {
		bucket := kind.Bucket()
		exists, err := c.mc.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		c.logger.Info("bucket created", "bucket", bucket)
	}
	return nil
}

// Upload copies the payload at path into the bucket of the file's media
// kind, under the file's object name.
func (c *Client) Upload(ctx context.Context, f *protocol.MediaFile, path string) error {
	bucket := f.MediaType.Bucket()
	info, err := c.mc.FPutObject(ctx, bucket, f.ObjectName(), path, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("upload %s to %s: %w", f.ObjectName(), bucket, err)
	}
	c.logger.Debug("object uploaded", "bucket", bucket, "object", f.ObjectName(), "bytes", info.Size)
	return nil
}
