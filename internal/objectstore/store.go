// Package objectstore moves Parquet files between the local data directory
// and the data lake bucket.
package objectstore

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Store uploads and downloads whole files by object path.
type Store interface {
	// Upload copies the file at localPath to objectPath, overwriting.
	Upload(ctx context.Context, localPath, objectPath string) error
	// Download copies objectPath to localPath, creating parent directories.
	Download(ctx context.Context, objectPath, localPath string) error
	Close() error
}

const (
	BackendGCS   = "gcs"
	BackendS3    = "s3"
	BackendLocal = "local"
)

type Config struct {
	Backend         string
	Bucket          string
	CredentialsPath string
	Region          string
	Endpoint        string
	LocalDir        string
}

// New builds the Store for cfg.Backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendGCS, "":
		return NewGCS(ctx, cfg.Bucket, cfg.CredentialsPath)
	case BackendS3:
		return NewS3(cfg.Bucket, cfg.Region, cfg.Endpoint)
	case BackendLocal:
		return NewLocal(cfg.LocalDir)
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
