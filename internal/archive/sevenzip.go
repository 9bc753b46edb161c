package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
)

// SevenZip reads 7z (and cb7) archives in process.
type SevenZip struct{}

func (SevenZip) Name() string { return "7z" }

func (SevenZip) List(archive string) ([]string, error) {
	r, err := sevenzip.OpenReader(archive)
	if err != nil {
		return nil, unpackError(archive, err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := cleanEntryName(f.Name)
		if err != nil {
			return nil, unpackError(archive, err)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (SevenZip) Unpack(ctx context.Context, archive, dest string) ([]string, error) {
	r, err := sevenzip.OpenReader(archive)
	if err != nil {
		return nil, unpackError(archive, err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}

		name, err := cleanEntryName(f.Name)
		if err != nil {
			return nil, unpackError(archive, err)
		}
		if name == "" {
			continue
		}
		if f.FileInfo().IsDir() {
			if err := makeDir(dest, name); err != nil {
				return nil, unpackError(archive, err)
			}
			continue
		}

		if err := extract7zFile(f, dest, name); err != nil {
			return nil, unpackError(archive, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func extract7zFile(f *sevenzip.File, dest, name string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return writeEntry(dest, name, rc)
}

func (SevenZip) Open(archive, entry string) (io.ReadCloser, error) {
	r, err := sevenzip.OpenReader(archive)
	if err != nil {
		return nil, err
	}

	for _, f := range r.File {
		name, err := cleanEntryName(f.Name)
		if err != nil || name != entry || f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			r.Close()
			return nil, err
		}
		return &readCloser{Reader: rc, closers: []io.Closer{r, rc}}, nil
	}

	r.Close()
	return nil, fmt.Errorf("%s in %s: %w", entry, archive, ErrEntryNotFound)
}
