package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

type testFile struct {
	Name string
	Body string
}

func writeZip(t *testing.T, path string, files []testFile) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate})
		require.NoError(t, err)
		_, err = io.WriteString(w, f.Body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeTar(t *testing.T, path string, c Compression, files []testFile) {
	t.Helper()
	var buf bytes.Buffer

	var w io.WriteCloser
	switch c {
	case Gzip:
		w = gzip.NewWriter(&buf)
	case XZ:
		xw, err := xz.NewWriter(&buf)
		require.NoError(t, err)
		w = xw
	case Zstd:
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case LZ4:
		w = lz4.NewWriter(&buf)
	case Brotli:
		w = brotli.NewWriter(&buf)
	default:
		w = nopWriteCloser{&buf}
	}

	tw := tar.NewWriter(w)
	for _, f := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     f.Name,
			Mode:     0o644,
			Size:     int64(len(f.Body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := io.WriteString(tw, f.Body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// writeRar writes a rar 4 archive holding files uncompressed.
func writeRar(t *testing.T, path string, files []testFile) {
	t.Helper()
	le := binary.LittleEndian
	var buf bytes.Buffer
	buf.WriteString("Rar!\x1a\x07\x00")
	writeRarBlock(&buf, 0x73, 0, make([]byte, 6))

	for _, f := range files {
		name := strings.ReplaceAll(f.Name, "/", `\`)
		var h []byte
		h = le.AppendUint32(h, uint32(len(f.Body))) // packed size
		h = le.AppendUint32(h, uint32(len(f.Body))) // unpacked size
		h = append(h, 3)                            // unix
		h = le.AppendUint32(h, crc32.ChecksumIEEE([]byte(f.Body)))
		h = le.AppendUint32(h, 0x58210000) // 2024-01-01 as a DOS time
		h = append(h, 20, 0x30)            // version, stored
		h = le.AppendUint16(h, uint16(len(name)))
		h = le.AppendUint32(h, 0o100644)
		h = append(h, name...)
		writeRarBlock(&buf, 0x74, 0x8000, h)
		buf.WriteString(f.Body)
	}

	writeRarBlock(&buf, 0x7b, 0, nil)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeRarBlock(buf *bytes.Buffer, kind byte, flags uint16, data []byte) {
	le := binary.LittleEndian
	head := le.AppendUint16([]byte{kind}, flags)
	head = le.AppendUint16(head, uint16(7+len(data)))
	head = append(head, data...)
	buf.Write(le.AppendUint16(nil, uint16(crc32.ChecksumIEEE(head))))
	buf.Write(head)
}

// sevenZipBook is sampleFiles stored uncompressed in a 7z archive, as
// written by bsdtar --format 7zip --options 7zip:compression=store.
const sevenZipBook = `
N3q8ryccAAPq1LhBCwAAAAAAAADUAAAAAAAAAH7lQQJvbmV0d290aHJlZQEEBgADCQMDBQAHCwMA
AQEAAQEAAQEADAMDBQAICgHxhmx6ZorKEfXYxUYAAAUDET0AcAAwADEALgBwAG4AZwAAAHMAdQBi
AC8AcAAwADIALgBwAG4AZwAAAG4AbwB0AGUAcwAuAHQAeAB0AAAAFBoBAADAiXZFPNoBAMCJdkU8
2gEAwIl2RTzaARIaAQDKh5j2oF/dAcqHmPagX90ByoeY9qBf3QETGgEAAMCJdkU82gEAwIl2RTza
AQDAiXZFPNoBFQ4BACCApIEggKSBIICkgQAA`

func writeSevenZip(t *testing.T, path string) {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(sevenZipBook), ""))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func mkdest(t *testing.T) string {
	t.Helper()
	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.Mkdir(dest, 0o755))
	return dest
}
