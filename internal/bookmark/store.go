package bookmark

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// ErrMalformed marks a bookmark line that could not be parsed.
var ErrMalformed = errors.New("malformed bookmark line")

// Store is the bookmark file: one "key<TAB>v0<TAB>...<TAB>v9" line per
// source set.
type Store struct {
	mu      sync.Mutex
	fs      afero.Fs
	path    string
	rings   map[string]Ring
	skipped int
}

// DefaultPath returns ~/.filmstrip_bookmarks, or a file in the working
// directory when there is no home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "filmstrip_bookmarks"
	}
	return filepath.Join(home, ".filmstrip_bookmarks")
}

// Open reads the bookmark file at path on fsys. A missing file is an empty
// store.
func Open(fsys afero.Fs, path string) (*Store, error) {
	s := &Store{fs: fsys, path: path, rings: make(map[string]Ring)}

	f, err := fsys.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening bookmarks: %w", err)
	}
	defer f.Close()

	if err := s.read(f); err != nil {
		return nil, fmt.Errorf("reading bookmarks %s: %w", path, err)
	}
	return s, nil
}

// Parse reads bookmarks from r into a store that is not backed by a file.
func Parse(r io.Reader) (*Store, error) {
	s := &Store{rings: make(map[string]Ring)}
	if err := s.read(r); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) read(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		key, ring, err := parseLine(text)
		if err != nil {
			s.skipped++
			log.Warn().Err(err).Int("line", line).Msg("skipping bookmark")
			continue
		}
		s.rings[key] = ring
	}
	return sc.Err()
}

// parseLine accepts any number of positions: short rings are padded with
// zeros and long ones truncated.
func parseLine(text string) (string, Ring, error) {
	fields := strings.Split(text, "\t")
	if len(fields) < 2 || fields[0] == "" {
		return "", Ring{}, fmt.Errorf("%w: want key and positions", ErrMalformed)
	}

	var ring Ring
	for i, field := range fields[1:] {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return "", Ring{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if i < Size {
			ring[i] = v
		}
	}
	return fields[0], ring, nil
}

// Skipped returns how many malformed lines were dropped while reading.
func (s *Store) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

func (s *Store) Get(key string) (Ring, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rings[sanitize(key)]
	return r, ok
}

func (s *Store) Put(key string, r Ring) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rings[sanitize(key)] = r
}

func sanitize(key string) string {
	key = strings.ReplaceAll(key, "\t", "_")
	return strings.ReplaceAll(key, "\n", "_")
}

// WriteTo writes every bookmark, sorted by key.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.rings))
	for k := range s.rings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bw := bufio.NewWriter(w)
	var n int64
	for _, k := range keys {
		r := s.rings[k]
		var b strings.Builder
		b.WriteString(k)
		for _, v := range r {
			b.WriteByte('\t')
			b.WriteString(strconv.Itoa(v))
		}
		b.WriteByte('\n')
		m, err := bw.WriteString(b.String())
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Save replaces the bookmark file through a temporary file and a rename,
// so readers never see a partial file.
func (s *Store) Save() error {
	if s.fs == nil || s.path == "" {
		return errors.New("bookmark store has no file")
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating bookmark directory: %w", err)
	}
	tmp, err := afero.TempFile(s.fs, dir, ".filmstrip-bookmarks-*")
	if err != nil {
		return fmt.Errorf("creating temporary bookmark file: %w", err)
	}
	name := tmp.Name()

	if _, err := s.WriteTo(tmp); err != nil {
		tmp.Close()
		s.fs.Remove(name)
		return fmt.Errorf("writing bookmarks: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(name)
		return fmt.Errorf("writing bookmarks: %w", err)
	}
	if err := s.fs.Rename(name, s.path); err != nil {
		s.fs.Remove(name)
		return fmt.Errorf("replacing bookmarks: %w", err)
	}
	return nil
}
