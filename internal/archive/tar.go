package archive

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Compression is the outer stream format of a tar archive.
type Compression int

const (
	Uncompressed Compression = iota
	Gzip
	Bzip2
	XZ
	Zstd
	LZ4
	Brotli
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case XZ:
		return "xz"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	case Brotli:
		return "brotli"
	default:
		return "none"
	}
}

func (c Compression) reader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gr, nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case Zstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Brotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

// Tar reads tar archives, optionally wrapped in a compression stream.
type Tar struct {
	Compression Compression
}

func (t Tar) Name() string {
	if t.Compression == Uncompressed {
		return "tar"
	}
	return "tar+" + t.Compression.String()
}

// open returns a tar reader over archive and the closer for its streams.
func (t Tar) open(archive string) (*tar.Reader, io.Closer, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, nil, err
	}
	dr, err := t.Compression.reader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return tar.NewReader(dr), &readCloser{closers: []io.Closer{f, dr}}, nil
}

// walk calls fn for every directory and regular file entry in order.
func (t Tar) walk(archive string, fn func(hdr *tar.Header, name string, tr *tar.Reader) (bool, error)) error {
	tr, closer, err := t.open(archive)
	if err != nil {
		return err
	}
	defer closer.Close()

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg && hdr.Typeflag != tar.TypeDir {
			continue
		}

		name, err := cleanEntryName(hdr.Name)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}
		done, err := fn(hdr, name, tr)
		if err != nil || done {
			return err
		}
	}
}

func (t Tar) List(archive string) ([]string, error) {
	var names []string
	err := t.walk(archive, func(hdr *tar.Header, name string, _ *tar.Reader) (bool, error) {
		if hdr.Typeflag == tar.TypeReg {
			names = append(names, name)
		}
		return false, nil
	})
	if err != nil {
		return nil, unpackError(archive, err)
	}
	return names, nil
}

func (t Tar) Unpack(ctx context.Context, archive, dest string) ([]string, error) {
	var names []string
	err := t.walk(archive, func(hdr *tar.Header, name string, tr *tar.Reader) (bool, error) {
		if err := ctxErr(ctx); err != nil {
			return true, err
		}
		if hdr.Typeflag == tar.TypeDir {
			return false, makeDir(dest, name)
		}
		if err := writeEntry(dest, name, tr); err != nil {
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

// Open scans the stream up to entry; tar has no index.
func (t Tar) Open(archive, entry string) (io.ReadCloser, error) {
	tr, closer, err := t.open(archive)
	if err != nil {
		return nil, err
	}

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			closer.Close()
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if name, err := cleanEntryName(hdr.Name); err == nil && name == entry {
			return &readCloser{Reader: tr, closers: []io.Closer{closer}}, nil
		}
	}

	closer.Close()
	return nil, fmt.Errorf("%s in %s: %w", entry, archive, ErrEntryNotFound)
}
