package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileFetcher serves a fixed payload for every link.
type fileFetcher struct {
	payload []byte
	err     error
}

func (f *fileFetcher) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.payload)), nil
}

func (f *fileFetcher) DownloadToFile(_ context.Context, _ string, path string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if err := os.WriteFile(path, f.payload, 0o644); err != nil {
		return 0, err
	}
	return int64(len(f.payload)), nil
}

func zipPayload(t *testing.T, names ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fmt.Fprintf(w, "1,row-for-%s\n", name)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindArchive, KindOf("https://disk.example/reports/abc.zip"))
	assert.Equal(t, KindTabular, KindOf("https://disk.example/reports/abc.csv"))
	assert.Equal(t, KindTabular, KindOf("https://disk.example/reports/abc.xlsx"))
}

func TestFetch_PlainFile(t *testing.T) {
	tempDir := t.TempDir()
	f := &fileFetcher{payload: []byte("1,top\n")}

	a, err := Fetch(context.Background(), f, "https://disk.example/report.csv", tempDir, "job-1")
	require.NoError(t, err)

	files := a.Files()
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(tempDir, "job-1", "report.csv"), files[0])

	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "1,top\n", string(content))

	require.NoError(t, a.Close())
	_, err = os.Stat(filepath.Join(tempDir, "job-1"))
	assert.True(t, os.IsNotExist(err), "scratch dir removed on close")
}

func TestFetch_Archive(t *testing.T) {
	tempDir := t.TempDir()
	f := &fileFetcher{payload: zipPayload(t, "a.csv", "b.csv", "c.csv")}

	a, err := Fetch(context.Background(), f, "https://disk.example/report.zip", tempDir, "job-2")
	require.NoError(t, err)
	defer a.Close()

	files := a.Files()
	require.Len(t, files, 3)
	for _, p := range files {
		assert.Contains(t, p, filepath.Join(tempDir, "job-2", "extracted"))
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}

func TestFetch_CorruptArchive(t *testing.T) {
	tempDir := t.TempDir()
	f := &fileFetcher{payload: []byte("this is not a zip")}

	_, err := Fetch(context.Background(), f, "https://disk.example/report.zip", tempDir, "job-3")
	require.Error(t, err)

	var corrupt *CorruptArchiveError
	require.ErrorAs(t, err, &corrupt)
	assert.Contains(t, corrupt.Path, "report.zip")

	_, err = os.Stat(filepath.Join(tempDir, "job-3"))
	assert.True(t, os.IsNotExist(err), "scratch dir cleaned up after corrupt archive")
}

func TestFetch_EmptyArchive(t *testing.T) {
	tempDir := t.TempDir()
	f := &fileFetcher{payload: zipPayload(t)}

	_, err := Fetch(context.Background(), f, "https://disk.example/report.zip", tempDir, "job-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files")

	_, err = os.Stat(filepath.Join(tempDir, "job-4"))
	assert.True(t, os.IsNotExist(err))
}

func TestFetch_DownloadError(t *testing.T) {
	tempDir := t.TempDir()
	f := &fileFetcher{err: fmt.Errorf("503 service unavailable")}

	_, err := Fetch(context.Background(), f, "https://disk.example/report.csv", tempDir, "job-5")
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(tempDir, "job-5"))
	assert.True(t, os.IsNotExist(err), "scratch dir cleaned up after download failure")
}

func TestClose_Idempotent(t *testing.T) {
	tempDir := t.TempDir()
	f := &fileFetcher{payload: []byte("1,top\n")}

	a, err := Fetch(context.Background(), f, "https://disk.example/report.csv", tempDir, "job-6")
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
