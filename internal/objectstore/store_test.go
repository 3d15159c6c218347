package objectstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Xanthus1/louisville-expenditure-etl/internal/objectstore"
)

func TestLocal_UploadDownload(t *testing.T) {
	ctx := context.Background()
	lake := filepath.Join(t.TempDir(), "lake")
	store, err := objectstore.New(ctx, objectstore.Config{Backend: "local", LocalDir: lake})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	src := filepath.Join(t.TempDir(), "in.parquet")
	require.NoError(t, os.WriteFile(src, []byte("PAR1 payload"), 0o644))

	require.NoError(t, store.Upload(ctx, src, "data/year.parquet"))
	stored, err := os.ReadFile(filepath.Join(lake, "data", "year.parquet"))
	require.NoError(t, err)
	require.Equal(t, "PAR1 payload", string(stored))

	// Upload overwrites.
	require.NoError(t, os.WriteFile(src, []byte("PAR1 v2"), 0o644))
	require.NoError(t, store.Upload(ctx, src, "data/year.parquet"))

	dst := filepath.Join(t.TempDir(), "out", "data", "year.parquet")
	require.NoError(t, store.Download(ctx, "data/year.parquet", dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "PAR1 v2", string(got))
}

func TestLocal_Errors(t *testing.T) {
	ctx := context.Background()
	store, err := objectstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	require.Error(t, store.Download(ctx, "data/missing.parquet", filepath.Join(t.TempDir(), "x")))
	require.Error(t, store.Upload(ctx, filepath.Join(t.TempDir(), "missing"), "data/x.parquet"))
	require.Error(t, store.Upload(ctx, "irrelevant", "../escape.parquet"))

	_, err = objectstore.NewLocal("")
	require.Error(t, err)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := objectstore.New(context.Background(), objectstore.Config{Backend: "ftp"})
	require.Error(t, err)
}
