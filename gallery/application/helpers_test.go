package application

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dfryer1193/ciel/gallery/domain"
	"github.com/dfryer1193/ciel/gallery/persistence"
	sqlitedb "github.com/dfryer1193/ciel/shared/db/sqlite"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01")
	tiffHeader = []byte("II*\x00\x08\x00\x00\x00")
)

// pngOfSize returns n bytes that sniff as PNG.
func pngOfSize(n int) []byte {
	data := make([]byte, n)
	copy(data, pngHeader)
	return data
}

type testEnv struct {
	index     *persistence.SQLiteTagIndex
	files     *persistence.LocalImageFiles
	lifecycle *LifecycleService
	search    *SearchService
	imagesDir string
}

func newTestEnv(t *testing.T, fetcher domain.Fetcher, confirmer domain.DeleteConfirmer) *testEnv {
	t.Helper()

	root := t.TempDir()
	database := sqlitedb.NewSQLiteDB(&sqlitedb.SQLiteConfig{Path: filepath.Join(root, "index.db")})
	require.NoError(t, database.Connect())
	t.Cleanup(func() { database.Close() })

	imagesDir := filepath.Join(root, "images")
	files, err := persistence.NewLocalImageFiles(imagesDir)
	require.NoError(t, err)

	index := persistence.NewTagIndex(database.DB())
	lifecycle := NewLifecycleService(index, persistence.NewTransactor(database.DB()), files, fetcher, confirmer)
	t.Cleanup(func() { lifecycle.Close() })

	return &testEnv{
		index:     index,
		files:     files,
		lifecycle: lifecycle,
		search:    NewSearchService(index),
		imagesDir: imagesDir,
	}
}

// placeFile writes an acquired image directly, bypassing Acquire.
func (e *testEnv) placeFile(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.imagesDir, id), pngHeader, 0644))
}

// register places a file for id and registers it with tags.
func (e *testEnv) register(t *testing.T, id string, tags ...string) {
	t.Helper()
	e.placeFile(t, id)
	require.NoError(t, e.lifecycle.Register(context.Background(), id, tags))
}

func (e *testEnv) dirEntries(t *testing.T) []string {
	t.Helper()
	names, err := e.files.List()
	require.NoError(t, err)
	return names
}

// assertIndexInvariants checks that no tag is left without images and that
// every association points at a known image and tag.
func (e *testEnv) assertIndexInvariants(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	tags, err := e.index.ListTags(ctx)
	require.NoError(t, err)
	for _, tag := range tags {
		images, err := e.index.ImagesWithTag(ctx, tag)
		require.NoError(t, err)
		require.NotEmpty(t, images, "tag %q persists without images", tag)
	}

	images, err := e.index.ListImages(ctx)
	require.NoError(t, err)

	assocs, err := e.index.Associations(ctx)
	require.NoError(t, err)
	for _, a := range assocs {
		require.Contains(t, images, a.Image)
		require.Contains(t, tags, a.Tag)
	}
}

type fetcherFunc func(ctx context.Context, url string) (io.ReadCloser, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	return f(ctx, url)
}

func staticFetcher(data []byte) domain.Fetcher {
	return fetcherFunc(func(context.Context, string) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// failingReader yields data and then fails.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

// endlessPNG never reaches EOF; each read after the header is slowed down.
type endlessPNG struct {
	sent bool
}

func (r *endlessPNG) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, pngHeader), nil
	}
	time.Sleep(5 * time.Millisecond)
	clear(p)
	return len(p), nil
}
