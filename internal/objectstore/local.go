package objectstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Local is a bucket backed by a directory; object paths map to relative files.
type Local struct {
	Root string
}

func NewLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("local storage dir is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "mkdir %s", root)
	}
	return &Local{Root: root}, nil
}

func (l *Local) Upload(ctx context.Context, localPath, objectPath string) error {
	dst, err := l.resolve(objectPath)
	if err != nil {
		return err
	}
	return copyFile(ctx, localPath, dst)
}

func (l *Local) Download(ctx context.Context, objectPath, localPath string) error {
	src, err := l.resolve(objectPath)
	if err != nil {
		return err
	}
	return copyFile(ctx, src, localPath)
}

func (l *Local) Close() error { return nil }

func (l *Local) resolve(objectPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(objectPath, "/")))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", errors.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(l.Root, clean), nil
}

func copyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer func() {
		_ = in.Close()
	}()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(dst))
	}
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "copy %s", src)
	}
	return errors.Wrapf(out.Close(), "close %s", dst)
}
