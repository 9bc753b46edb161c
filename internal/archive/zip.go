package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
)

// Zip reads zip (and cbz) archives in process.
type Zip struct {
	// Encoding decodes entry names that are not valid UTF-8. Nil leaves
	// them untouched.
	Encoding encoding.Encoding
}

func (z Zip) Name() string { return "zip" }

func (z Zip) entryName(f *zip.File) string {
	if z.Encoding == nil || !f.NonUTF8 || utf8.ValidString(f.Name) {
		return f.Name
	}
	decoded, err := z.Encoding.NewDecoder().String(f.Name)
	if err != nil {
		return f.Name
	}
	return decoded
}

func (z Zip) List(archive string) ([]string, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, unpackError(archive, err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := cleanEntryName(z.entryName(f))
		if err != nil {
			return nil, unpackError(archive, err)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (z Zip) Unpack(ctx context.Context, archive, dest string) ([]string, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, unpackError(archive, err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}

		name, err := cleanEntryName(z.entryName(f))
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
		if !f.Mode().IsRegular() {
			continue
		}

		if err := z.extractFile(f, dest, name); err != nil {
			return nil, unpackError(archive, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func (z Zip) extractFile(f *zip.File, dest, name string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return writeEntry(dest, name, rc)
}

func (z Zip) Open(archive, entry string) (io.ReadCloser, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, err
	}

	for _, f := range r.File {
		name, err := cleanEntryName(z.entryName(f))
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
