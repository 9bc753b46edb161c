package collection

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmstrip/internal/archive"
)

func zipBytes(t *testing.T, files map[string][]byte, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFiles(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
}

func origins(t *testing.T, c *Collection, root string) []string {
	t.Helper()
	var out []string
	for _, e := range c.Entries() {
		rel, err := filepath.Rel(root, e.Origin)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func build(t *testing.T, roots []string, opts Options) *Collection {
	t.Helper()
	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}
	c, err := Build(context.Background(), roots, opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBuildNaturalOrder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string][]byte{
		"10.png":       []byte("a"),
		"2.png":        []byte("b"),
		"1.png":        []byte("c"),
		"sub/01.png":   []byte("d"),
		"sub/001a.png": []byte("e"),
	})

	c := build(t, []string{root}, Options{})
	assert.Equal(t, []string{"1.png", "2.png", "10.png", "sub/01.png", "sub/001a.png"}, origins(t, c, root))

	for i, e := range c.Entries() {
		assert.Equal(t, i, e.Index)
		assert.FileExists(t, e.Path)
	}
}

func TestBuildRootsKeepArgumentOrder(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeFiles(t, a, map[string][]byte{"x.png": []byte("a")})
	writeFiles(t, b, map[string][]byte{"y.png": []byte("b")})

	c := build(t, []string{b, filepath.Join(t.TempDir(), "missing"), a}, Options{})
	require.Equal(t, 2, c.Len())
	assert.Equal(t, filepath.Join(b, "y.png"), c.Entries()[0].Origin)
	assert.Equal(t, filepath.Join(a, "x.png"), c.Entries()[1].Origin)
}

func TestBuildSingleFileRoot(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string][]byte{"only.png": []byte("a")})

	c := build(t, []string{filepath.Join(root, "only.png")}, Options{})
	require.Equal(t, 1, c.Len())
	e, ok := c.Entry(0)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "only.png"), e.Origin)
	data, err := os.ReadFile(e.Path)
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestBuildNestedArchivesMatchPreExtraction(t *testing.T) {
	inner := zipBytes(t, map[string][]byte{
		"10.png": []byte("ten"),
		"2.png":  []byte("two"),
	}, "10.png", "2.png")
	outer := zipBytes(t, map[string][]byte{
		"b.zip": inner,
		"a.png": []byte("a"),
		"c.png": []byte("c"),
	}, "c.png", "b.zip", "a.png")

	packed := t.TempDir()
	writeFiles(t, packed, map[string][]byte{"book.zip": outer})

	unpacked := t.TempDir()
	writeFiles(t, unpacked, map[string][]byte{
		"book.zip/a.png":        []byte("a"),
		"book.zip/b.zip/10.png": []byte("ten"),
		"book.zip/b.zip/2.png":  []byte("two"),
		"book.zip/c.png":        []byte("c"),
	})

	got := build(t, []string{packed}, Options{})
	want := build(t, []string{unpacked}, Options{})

	assert.Equal(t, origins(t, want, unpacked), origins(t, got, packed))
	assert.Equal(t, []string{"book.zip/a.png", "book.zip/b.zip/2.png", "book.zip/b.zip/10.png", "book.zip/c.png"}, origins(t, got, packed))

	data, err := os.ReadFile(got.Entries()[1].Path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	// The source archive is never touched.
	data, err = os.ReadFile(filepath.Join(packed, "book.zip"))
	require.NoError(t, err)
	assert.Equal(t, outer, data)
}

func TestBuildFailedExtractionKeepsArchive(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string][]byte{
		"bad.zip": []byte("not really"),
		"ok.png":  []byte("ok"),
	})

	reg := archive.NewRegistry()
	reg.Register(".zip", archive.Command{Args: []string{"sh", "-c", "exit 1"}})

	c := build(t, []string{root}, Options{Registry: reg})
	assert.Equal(t, []string{"bad.zip", "ok.png"}, origins(t, c, root))

	data, err := os.ReadFile(c.Entries()[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "not really", string(data))

	var leftovers []string
	require.NoError(t, filepath.WalkDir(c.Scratch(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".unpack-") || strings.HasPrefix(d.Name(), ".archive-") {
			leftovers = append(leftovers, p)
		}
		return nil
	}))
	assert.Empty(t, leftovers)
}

func TestBuildCorruptArchiveIsLeaf(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string][]byte{"broken.cbz": []byte("garbage")})

	c := build(t, []string{root}, Options{})
	assert.Equal(t, []string{"broken.cbz"}, origins(t, c, root))
}

func TestBuildExtensionFilter(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string][]byte{
		"a.PNG":     []byte("a"),
		"b.txt":     []byte("b"),
		"c.jpg":     []byte("c"),
		"notes.zip": zipBytes(t, map[string][]byte{"readme.txt": []byte("r")}, "readme.txt"),
		"pics.zip":  zipBytes(t, map[string][]byte{"d.png": []byte("d")}, "d.png"),
	})

	c := build(t, []string{root}, Options{Extensions: []string{"png", ".JPG"}})
	assert.Equal(t, []string{"a.PNG", "c.jpg", "pics.zip/d.png"}, origins(t, c, root))
}

func TestBuildSymlinkCycle(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string][]byte{
		"1.png":   []byte("a"),
		"a/2.png": []byte("b"),
	})
	require.NoError(t, os.Symlink(root, filepath.Join(root, "a", "loop")))
	require.NoError(t, os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "z")))

	c := build(t, []string{root}, Options{})
	assert.Equal(t, []string{"1.png", "a/2.png"}, origins(t, c, root))
}

func TestBuildCancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string][]byte{"a.png": []byte("a")})
	tmp := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, err := Build(ctx, []string{root}, Options{TempDir: tmp})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, c)

	left, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestCollectionCloseIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string][]byte{"a.png": []byte("a")})

	c, err := Build(context.Background(), []string{root}, Options{TempDir: t.TempDir()})
	require.NoError(t, err)
	scratch := c.Scratch()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.NoDirExists(t, scratch)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, "", c.Key(0))
}

func TestCollectionOpenAndToOrigin(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string][]byte{"a.png": []byte("hello")})

	c := build(t, []string{root}, Options{})
	r, err := c.Open(0)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "hello", string(data))

	_, err = c.Open(1)
	assert.Error(t, err)

	assert.Equal(t, filepath.Join(root, "a.png"), c.ToOrigin(c.Key(0)))
	assert.Equal(t, "/elsewhere/x.png", c.ToOrigin("/elsewhere/x.png"))
}

func TestLoaderHandsOffOnce(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string][]byte{
		"a.png":    []byte("a"),
		"book.zip": zipBytes(t, map[string][]byte{"b.png": []byte("b")}, "b.png"),
	})

	l := Load(context.Background(), []string{root}, Options{TempDir: t.TempDir()})
	for p := range l.Progress() {
		assert.NotEmpty(t, p.Path)
	}

	res, ok := <-l.Result()
	require.True(t, ok)
	require.NoError(t, res.Err)
	defer res.Collection.Close()
	assert.Equal(t, []string{"a.png", "book.zip/b.png"}, origins(t, res.Collection, root))

	_, ok = <-l.Result()
	assert.False(t, ok)
}

func TestLoaderCancel(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string][]byte{"a.png": []byte("a")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := Load(ctx, []string{root}, Options{TempDir: t.TempDir()})
	c, err := l.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, c)
}
