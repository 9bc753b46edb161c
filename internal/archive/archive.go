// Package archive unpacks compressed archives into directories.
//
// Every format is reached through an Extractor. Which extractor handles a
// file is decided by a Registry keyed on file name suffixes.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrUnpackFailed is wrapped by every extraction failure: a non-zero
	// exit from an external tool, a format error or an I/O error.
	ErrUnpackFailed = errors.New("unpack failed")
	// ErrNotArchive is returned when a plain file is asked to unpack.
	ErrNotArchive = errors.New("not an archive")
	// ErrEntryNotFound is returned by Open for names the archive lacks.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrNoRandomAccess is returned by extractors that can only unpack.
	ErrNoRandomAccess = errors.New("extractor cannot read single entries")
	// ErrUnsafePath is returned for entries that would land outside dest.
	ErrUnsafePath = errors.New("entry path escapes destination")
)

// Extractor is one archive format.
type Extractor interface {
	// Name identifies the variant in logs.
	Name() string
	// Unpack writes every entry of archive below dest, which must exist, and
	// returns the slash-separated entry names in archive order.
	Unpack(ctx context.Context, archive, dest string) ([]string, error)
	// Open returns the content of a single entry.
	Open(archive, entry string) (io.ReadCloser, error)
}

// Lister is implemented by extractors that can list entries without
// writing anything to disk.
type Lister interface {
	List(archive string) ([]string, error)
}

func unpackError(archive string, err error) error {
	if errors.Is(err, ErrUnpackFailed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUnpackFailed, filepath.Base(archive), err)
}

// cleanEntryName normalises an archive entry name and rejects names that
// would escape the extraction root.
func cleanEntryName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	if clean == "." {
		return "", nil
	}
	return clean, nil
}

// writeEntry copies r into dest/name, creating parent directories.
func writeEntry(dest, name string, r io.Reader) (err error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(f, r)
	return err
}

func makeDir(dest, name string) error {
	return os.MkdirAll(filepath.Join(dest, filepath.FromSlash(name)), 0o755)
}

// readCloser pairs a reader with the closers that must run after it.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
