package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nwaples/rardecode"
)

// Rar reads rar (and cbr) archives in process. Encrypted archives fail.
type Rar struct{}

func (Rar) Name() string { return "rar" }

func (Rar) walk(archive string, fn func(hdr *rardecode.FileHeader, name string, r *rardecode.Reader) (bool, error)) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := rardecode.NewReader(f, "")
	if err != nil {
		return err
	}

	for {
		header, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		name, err := cleanEntryName(header.Name)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}
		done, err := fn(header, name, r)
		if err != nil || done {
			return err
		}
	}
}

func (x Rar) List(archive string) ([]string, error) {
	var names []string
	err := x.walk(archive, func(hdr *rardecode.FileHeader, name string, _ *rardecode.Reader) (bool, error) {
		if !hdr.IsDir {
			names = append(names, name)
		}
		return false, nil
	})
	if err != nil {
		return nil, unpackError(archive, err)
	}
	return names, nil
}

func (x Rar) Unpack(ctx context.Context, archive, dest string) ([]string, error) {
	var names []string
	err := x.walk(archive, func(hdr *rardecode.FileHeader, name string, r *rardecode.Reader) (bool, error) {
		if err := ctxErr(ctx); err != nil {
			return true, err
		}
		if hdr.IsDir {
			return false, makeDir(dest, name)
		}
		if err := writeEntry(dest, name, r); err != nil {
			return true, err
		}
		names = append(names, name)
		return false, nil
	})
	if err != nil {
		return nil, unpackError(archive, err)
	}
	return names, nil
}

// Open reads the archive sequentially up to entry and buffers its content.
func (x Rar) Open(archive, entry string) (io.ReadCloser, error) {
	var data []byte
	found := false
	err := x.walk(archive, func(hdr *rardecode.FileHeader, name string, r *rardecode.Reader) (bool, error) {
		if hdr.IsDir || name != entry {
			return false, nil
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return true, err
		}
		data, found = b, true
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s in %s: %w", entry, archive, ErrEntryNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
