package collection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/armon/go-radix"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"filmstrip/internal/archive"
	"filmstrip/internal/sortkey"
)

// Kind describes what the collector is working on in a Progress report.
type Kind string

const (
	KindDirectory Kind = "directory"
	KindArchive   Kind = "archive"
)

// Progress is a coarse report sent while a collection is built.
type Progress struct {
	Kind Kind
	// Path is the real-world path of the directory or archive.
	Path string
	// Files is the number of files collected so far.
	Files int
}

// Options configures Build.
type Options struct {
	// Registry decides which files are archives. Nil uses the builtin set.
	Registry *archive.Registry
	// Extensions keeps only files with one of these suffixes
	// (case-insensitive). Empty keeps everything.
	Extensions []string
	// TempDir is where the scratch tree is created; "" uses os.TempDir.
	TempDir string
	// Progress receives reports without blocking; full channels drop them.
	Progress chan<- Progress
}

// Build links roots into a fresh scratch tree, unpacks every archive found
// below them (recursively) and returns the files in reading order: each
// directory level in natural order, archives expanded in place.
//
// Archives that fail to unpack are kept as opaque files. Unreadable roots
// and entries are skipped. Build only fails when the scratch tree cannot be
// created or ctx is cancelled.
func Build(ctx context.Context, roots []string, opts Options) (c *Collection, err error) {
	if opts.Registry == nil {
		opts.Registry = archive.NewDefaultRegistry(archive.Options{})
	}

	scratch, err := os.MkdirTemp(opts.TempDir, "filmstrip-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch tree: %w", err)
	}
	defer func() {
		if c == nil {
			os.RemoveAll(scratch)
		}
	}()

	b := &builder{
		ctx:          ctx,
		opts:         opts,
		scratch:      scratch,
		origins:      radix.New(),
		materialized: make(map[string]bool),
		exts:         normalizeExtensions(opts.Extensions),
	}

	if err := b.run(b.seed(roots)); err != nil {
		return nil, err
	}

	files := b.files
	if len(b.exts) > 0 {
		files = files[:0:0]
		for _, f := range b.files {
			if b.wanted(f) {
				files = append(files, f)
			}
		}
	}

	entries := make([]Entry, len(files))
	for i, f := range files {
		entries[i] = Entry{Index: i, Path: f, Origin: toOrigin(b.origins, f)}
	}

	log.Debug().Int("files", len(entries)).Str("scratch", scratch).Msg("collection built")
	return &Collection{scratch: scratch, entries: entries, origins: b.origins}, nil
}

type builder struct {
	ctx          context.Context
	opts         Options
	scratch      string
	origins      *radix.Tree
	materialized map[string]bool
	exts         []string
	files        []string
}

// seed links every readable root into its own numbered slot of the scratch
// tree and records the slot as an origin prefix.
func (b *builder) seed(roots []string) []string {
	var seeds []string
	for i, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			log.Warn().Err(err).Str("root", root).Msg("skipping source")
			continue
		}
		if _, err := os.Stat(abs); err != nil {
			log.Warn().Err(err).Str("root", root).Msg("skipping source")
			continue
		}

		slot := filepath.Join(b.scratch, strconv.Itoa(i))
		if err := os.Mkdir(slot, 0o700); err != nil {
			log.Warn().Err(err).Str("root", root).Msg("skipping source")
			continue
		}

		name := filepath.Base(abs)
		if name == string(os.PathSeparator) || name == "." {
			name = "root"
		}
		link := filepath.Join(slot, name)
		if err := os.Symlink(abs, link); err != nil {
			log.Warn().Err(err).Str("root", root).Msg("skipping source")
			continue
		}

		b.origins.Insert(link, abs)
		seeds = append(seeds, link)
	}
	return seeds
}

// run drains the work-list. It is a stack, and children are pushed in
// reverse natural order so they pop in reading order.
func (b *builder) run(seeds []string) error {
	stack := make([]string, 0, len(seeds))
	for i := len(seeds) - 1; i >= 0; i-- {
		stack = append(stack, seeds[i])
	}

	for len(stack) > 0 {
		if err := b.ctx.Err(); err != nil {
			return err
		}

		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		isDir, ok := b.resolve(p)
		if !ok {
			continue
		}

		if isDir {
			children, err := b.list(p)
			if err != nil {
				log.Warn().Err(err).Str("path", b.origin(p)).Msg("skipping unreadable directory")
				continue
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
			continue
		}

		if x, ok := b.opts.Registry.Lookup(p); ok && b.extract(p, x) {
			// The archive's slot now holds its contents.
			stack = append(stack, p)
			continue
		}
		b.files = append(b.files, p)
	}
	return nil
}

// resolve classifies p, materialising symlinked directories on the way.
func (b *builder) resolve(p string) (isDir, ok bool) {
	info, err := os.Lstat(p)
	if err != nil {
		log.Warn().Err(err).Str("path", b.origin(p)).Msg("skipping entry")
		return false, false
	}

	if info.Mode()&os.ModeSymlink == 0 {
		return info.IsDir(), info.IsDir() || info.Mode().IsRegular()
	}

	target, err := os.Stat(p)
	if err != nil {
		log.Warn().Err(err).Str("path", b.origin(p)).Msg("skipping broken link")
		return false, false
	}
	if !target.IsDir() {
		return false, target.Mode().IsRegular()
	}

	materialized, err := b.materialize(p)
	if err != nil {
		log.Warn().Err(err).Str("path", b.origin(p)).Msg("skipping linked directory")
		return false, false
	}
	if !materialized {
		log.Debug().Str("path", b.origin(p)).Msg("directory already visited through another link")
		return false, false
	}
	return true, true
}

// materialize replaces the directory symlink p with a real directory whose
// children link to the target's children. A target is materialised at most
// once, which stops cyclic and repeated links.
func (b *builder) materialize(p string) (bool, error) {
	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		return false, err
	}
	if b.materialized[real] {
		return false, nil
	}
	b.materialized[real] = true

	children, err := os.ReadDir(real)
	if err != nil {
		return false, err
	}

	if err := os.Remove(p); err != nil {
		return false, err
	}
	if err := os.Mkdir(p, 0o700); err != nil {
		return false, err
	}
	for _, child := range children {
		if err := os.Symlink(filepath.Join(real, child.Name()), filepath.Join(p, child.Name())); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (b *builder) list(dir string) ([]string, error) {
	b.report(KindDirectory, dir)

	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(children))
	for i, child := range children {
		names[i] = child.Name()
	}
	sortkey.Strings(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// extractionJob is one archive being unpacked into a staging directory
// next to it. The archive's slot is only replaced once unpacking succeeded.
type extractionJob struct {
	id      string
	archive string
	staging string
}

// extract unpacks the archive at p into its own slot. It reports false, and
// leaves p untouched, when the archive should stay an opaque file.
func (b *builder) extract(p string, x archive.Extractor) bool {
	b.report(KindArchive, p)

	if b.skipByListing(p, x) {
		return false
	}

	job := extractionJob{id: uuid.NewString(), archive: p}
	job.staging = filepath.Join(filepath.Dir(p), ".unpack-"+job.id)
	if err := os.Mkdir(job.staging, 0o700); err != nil {
		log.Warn().Err(err).Str("archive", b.origin(p)).Msg("cannot create staging directory")
		return false
	}

	names, err := x.Unpack(b.ctx, p, job.staging)
	if err != nil {
		job.discard()
		if !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("archive", b.origin(p)).Str("extractor", x.Name()).Msg("unpack failed, keeping archive as a file")
		}
		return false
	}

	if err := job.splice(); err != nil {
		job.discard()
		log.Warn().Err(err).Str("archive", b.origin(p)).Msg("cannot replace archive with its contents")
		return false
	}

	log.Debug().Str("archive", b.origin(p)).Str("extractor", x.Name()).Int("entries", len(names)).Msg("archive unpacked")
	return true
}

// splice swaps the staging directory into the archive's slot. If the swap
// fails the archive is put back where it was.
func (j extractionJob) splice() error {
	aside := filepath.Join(filepath.Dir(j.archive), ".archive-"+j.id)
	if err := os.Rename(j.archive, aside); err != nil {
		return err
	}
	if err := os.Rename(j.staging, j.archive); err != nil {
		if rerr := os.Rename(aside, j.archive); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	if err := os.Remove(aside); err != nil {
		log.Warn().Err(err).Str("path", aside).Msg("cannot remove unpacked archive")
	}
	return nil
}

func (j extractionJob) discard() {
	if err := os.RemoveAll(j.staging); err != nil {
		log.Warn().Err(err).Str("path", j.staging).Msg("cannot remove staging directory")
	}
}

// skipByListing reports whether an archive can be left packed because its
// listing holds nothing the extension filter keeps and no nested archive.
func (b *builder) skipByListing(p string, x archive.Extractor) bool {
	lister, ok := x.(archive.Lister)
	if !ok || len(b.exts) == 0 {
		return false
	}
	names, err := lister.List(p)
	if err != nil {
		return false
	}
	for _, name := range names {
		if b.wanted(name) || b.opts.Registry.IsArchive(name) {
			return false
		}
	}
	log.Debug().Str("archive", b.origin(p)).Msg("archive holds no wanted files, not unpacking")
	return true
}

func (b *builder) wanted(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range b.exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func (b *builder) origin(p string) string {
	return toOrigin(b.origins, p)
}

func (b *builder) report(kind Kind, p string) {
	if b.opts.Progress == nil {
		return
	}
	select {
	case b.opts.Progress <- Progress{Kind: kind, Path: b.origin(p), Files: len(b.files)}:
	default:
	}
}

func normalizeExtensions(exts []string) []string {
	var out []string
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
