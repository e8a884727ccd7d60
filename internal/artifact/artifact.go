// Package artifact downloads a completed report's payload into a per-job
// scratch directory and enumerates the tabular files it contains.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/perfsync/perfsync/internal/fetcher"
)

// Kind classifies a resolved download link by its file extension.
type Kind int

const (
	// KindTabular is a plain tabular file (CSV or XLSX).
	KindTabular Kind = iota
	// KindArchive is a ZIP archive of tabular files.
	KindArchive
)

// KindOf returns the artifact kind for a download link.
func KindOf(link string) Kind {
	if path.Ext(link) == ".zip" {
		return KindArchive
	}
	return KindTabular
}

// CorruptArchiveError is returned when a downloaded archive cannot be
// extracted. The job is abandoned; the run continues.
type CorruptArchiveError struct {
	Path string
	Err  error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("artifact: corrupt archive %s: %v", e.Path, e.Err)
}

func (e *CorruptArchiveError) Unwrap() error {
	return e.Err
}

// Artifact is a downloaded payload in its scratch directory. Close removes
// the scratch directory and everything in it on every exit path.
type Artifact struct {
	dir   string
	files []string
}

// Files returns the tabular files the payload contained, in archive order.
func (a *Artifact) Files() []string {
	return a.files
}

// Close removes the scratch directory and all extracted files.
func (a *Artifact) Close() error {
	if a.dir == "" {
		return nil
	}
	if err := os.RemoveAll(a.dir); err != nil {
		return eris.Wrapf(err, "artifact: remove scratch dir %s", a.dir)
	}
	a.dir = ""
	return nil
}

// Fetch downloads the artifact behind link into a scratch directory private
// to the given job, extracting it first when the link points at an archive.
// The jobID keys the scratch path so concurrent workers never collide.
// On any error the scratch directory is already cleaned up.
func Fetch(ctx context.Context, f fetcher.Fetcher, link, tempDir, jobID string) (*Artifact, error) {
	dir := filepath.Join(tempDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "artifact: create scratch dir %s", dir)
	}

	a := &Artifact{dir: dir}
	if err := a.fetch(ctx, f, link); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Artifact) fetch(ctx context.Context, f fetcher.Fetcher, link string) error {
	name := path.Base(link)
	dest := filepath.Join(a.dir, name)

	n, err := f.DownloadToFile(ctx, link, dest)
	if err != nil {
		return eris.Wrapf(err, "artifact: download %s", link)
	}
	zap.L().Debug("artifact downloaded",
		zap.String("component", "artifact"),
		zap.String("file", name),
		zap.Int64("bytes", n),
	)

	if KindOf(link) != KindArchive {
		a.files = []string{dest}
		return nil
	}

	extractDir := filepath.Join(a.dir, "extracted")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return eris.Wrap(err, "artifact: create extract dir")
	}

	files, err := fetcher.ExtractZIP(dest, extractDir)
	if err != nil {
		return &CorruptArchiveError{Path: dest, Err: err}
	}
	if len(files) == 0 {
		return eris.Errorf("artifact: archive %s contains no files", name)
	}

	a.files = files
	return nil
}
