package objectstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS authenticates with the service account file at credentialsPath, or
// with application default credentials when it is empty.
func NewGCS(ctx context.Context, bucket, credentialsPath string) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsPath) != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create storage client")
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Upload(ctx context.Context, localPath, objectPath string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", localPath)
	}
	defer func() {
		_ = in.Close()
	}()

	w := g.client.Bucket(g.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = "application/vnd.apache.parquet"
	if _, err := io.Copy(w, in); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "upload gs://%s/%s", g.bucket, objectPath)
	}
	return errors.Wrapf(w.Close(), "finalize gs://%s/%s", g.bucket, objectPath)
}

func (g *GCS) Download(ctx context.Context, objectPath, localPath string) error {
	r, err := g.client.Bucket(g.bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		return errors.Wrapf(err, "open gs://%s/%s", g.bucket, objectPath)
	}
	defer func() {
		_ = r.Close()
	}()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(localPath))
	}
	out, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", localPath)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "download gs://%s/%s", g.bucket, objectPath)
	}
	return errors.Wrapf(out.Close(), "close %s", localPath)
}

func (g *GCS) Close() error {
	return g.client.Close()
}
