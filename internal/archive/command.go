package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Placeholders substituted into Command arguments.
const (
	ArchivePlaceholder = "{archive}"
	DestPlaceholder    = "{dest}"
)

// Command unpacks by running an external tool. Exit status 0 is success and
// any other status is a failure; the tool's output is discarded.
type Command struct {
	Args []string
}

func (c Command) Name() string {
	if len(c.Args) == 0 {
		return "command"
	}
	return filepath.Base(c.Args[0])
}

func (c Command) Unpack(ctx context.Context, archive, dest string) ([]string, error) {
	if len(c.Args) == 0 {
		return nil, fmt.Errorf("%w: no unpack command configured", ErrUnpackFailed)
	}

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		a = strings.ReplaceAll(a, ArchivePlaceholder, archive)
		args[i] = strings.ReplaceAll(a, DestPlaceholder, dest)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		if cerr := ctxErr(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, unpackError(archive, fmt.Errorf("%s: %w", c.Name(), err))
	}

	names, err := listTree(dest)
	if err != nil {
		return nil, unpackError(archive, err)
	}
	return names, nil
}

// Open is unsupported: the tool only unpacks whole archives.
func (c Command) Open(archive, entry string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("%s: %w", c.Name(), ErrNoRandomAccess)
}

// listTree returns the slash-separated paths of the regular files below root.
func listTree(root string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	return names, err
}

// Plain is the extractor for files that are not archives.
type Plain struct{}

func (Plain) Name() string { return "plain" }

func (Plain) Unpack(ctx context.Context, archive, dest string) ([]string, error) {
	return nil, fmt.Errorf("%s: %w", filepath.Base(archive), ErrNotArchive)
}

// Open returns the file itself; entry must be empty or the file's base name.
func (Plain) Open(archive, entry string) (io.ReadCloser, error) {
	if entry != "" && entry != filepath.Base(archive) {
		return nil, fmt.Errorf("%s: %w", entry, ErrEntryNotFound)
	}
	return os.Open(archive)
}

// List returns the file's own name.
func (Plain) List(archive string) ([]string, error) {
	if _, err := os.Stat(archive); err != nil {
		return nil, err
	}
	return []string{filepath.Base(archive)}, nil
}
