package archive

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
)

// Mode selects how the default registry unpacks the common formats.
type Mode string

const (
	// ModeBuiltin reads zip, tar, rar and 7z in process.
	ModeBuiltin Mode = "builtin"
	// ModeCommand hands every archive to the external unpack command.
	ModeCommand Mode = "command"
)

// DefaultCommand is the external unpack command line.
var DefaultCommand = []string{"aunpack", "-X", DestPlaceholder, ArchivePlaceholder}

type registration struct {
	suffix    string
	extractor Extractor
}

// Registry maps file name suffixes to extractors. Lookups are
// case-insensitive and the longest matching suffix wins, so ".tar.gz" is
// preferred over ".gz".
type Registry struct {
	entries []registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds suffix to x, replacing an earlier binding of the same suffix.
func (r *Registry) Register(suffix string, x Extractor) {
	suffix = strings.ToLower(suffix)
	for i := range r.entries {
		if r.entries[i].suffix == suffix {
			r.entries[i].extractor = x
			return
		}
	}

	r.entries = append(r.entries, registration{suffix: suffix, extractor: x})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return len(r.entries[i].suffix) > len(r.entries[j].suffix)
	})
}

// Lookup returns the extractor registered for name's longest matching suffix.
func (r *Registry) Lookup(name string) (Extractor, bool) {
	lower := strings.ToLower(name)
	for _, e := range r.entries {
		if strings.HasSuffix(lower, e.suffix) && len(lower) > len(e.suffix) {
			return e.extractor, true
		}
	}
	return nil, false
}

// IsArchive reports whether name matches a registered suffix.
func (r *Registry) IsArchive(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Suffixes returns the registered suffixes, longest first. The usage text
// lists them.
func (r *Registry) Suffixes() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.suffix
	}
	return out
}

// Options configures NewDefaultRegistry.
type Options struct {
	Mode Mode
	// Command overrides DefaultCommand.
	Command []string
	// ZipEncoding decodes zip entry names not stored as UTF-8.
	ZipEncoding encoding.Encoding
}

// NewDefaultRegistry registers the builtin extractors, or the external
// command for all of them in ModeCommand. Formats only the command knows
// are always registered.
func NewDefaultRegistry(opts Options) *Registry {
	cmd := Command{Args: opts.Command}
	if len(cmd.Args) == 0 {
		cmd.Args = DefaultCommand
	}
	enc := opts.ZipEncoding
	if enc == nil {
		enc = japanese.ShiftJIS
	}

	builtin := []struct {
		suffixes  []string
		extractor Extractor
	}{
		{[]string{".zip", ".cbz"}, Zip{Encoding: enc}},
		{[]string{".tar", ".cbt"}, Tar{}},
		{[]string{".tar.gz", ".tgz"}, Tar{Compression: Gzip}},
		{[]string{".tar.bz2", ".tbz", ".tb2", ".tbz2"}, Tar{Compression: Bzip2}},
		{[]string{".tar.xz", ".txz"}, Tar{Compression: XZ}},
		{[]string{".tar.zst", ".tzst"}, Tar{Compression: Zstd}},
		{[]string{".tar.lz4"}, Tar{Compression: LZ4}},
		{[]string{".tar.br"}, Tar{Compression: Brotli}},
		{[]string{".rar", ".cbr"}, Rar{}},
		{[]string{".7z", ".cb7"}, SevenZip{}},
	}

	r := NewRegistry()
	for _, b := range builtin {
		for _, s := range b.suffixes {
			if opts.Mode == ModeCommand {
				r.Register(s, cmd)
			} else {
				r.Register(s, b.extractor)
			}
		}
	}
	for _, s := range []string{".lha", ".lzh", ".arj", ".ace", ".cpio", ".cba"} {
		r.Register(s, cmd)
	}
	return r
}

// EncodingByName resolves a WHATWG encoding label such as "shift_jis" or
// "euc-kr".
func EncodingByName(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}
