package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var ErrInvalidPath = errors.New("invalid vault path")

// Listing is the result of Adapter.List: the direct children of a folder,
// as vault-relative paths.
type Listing struct {
	Files   []string
	Folders []string
}

// Adapter is the file-system view of a vault. All paths are vault-relative
// and use forward slashes.
type Adapter interface {
	Exists(ctx context.Context, p string) (bool, error)
	Mkdir(ctx context.Context, p string) error
	Read(ctx context.Context, p string) ([]byte, error)
	Write(ctx context.Context, p string, data []byte) error
	List(ctx context.Context, p string) (*Listing, error)
}

// NormalizePath converts p to a clean forward-slash path relative to the
// vault root.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// ValidateName reports ErrInvalidPath unless name can be used as exactly one
// path segment.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return nil
}

// Dir is an Adapter backed by a directory on the local disk.
type Dir struct {
	root string
}

var _ Adapter = (*Dir)(nil)

func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault directory %s: %w", root, err)
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) resolve(p string) (string, error) {
	for _, seg := range strings.Split(strings.ReplaceAll(p, `\`, "/"), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
		}
	}
	n := NormalizePath(p)
	if n == "" {
		return d.root, nil
	}
	return filepath.Join(d.root, filepath.FromSlash(n)), nil
}

func (d *Dir) Exists(_ context.Context, p string) (bool, error) {
	fp, err := d.resolve(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fp)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Mkdir creates p and its parents. An existing directory is not an error.
func (d *Dir) Mkdir(_ context.Context, p string) error {
	fp, err := d.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(fp, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("failed to create directory %s: %w", p, err)
	}
	return nil
}

func (d *Dir) Read(_ context.Context, p string) ([]byte, error) {
	fp, err := d.resolve(p)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(fp)
}

func (d *Dir) Write(_ context.Context, p string, data []byte) error {
	fp, err := d.resolve(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(fp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}

func (d *Dir) List(_ context.Context, p string) (*Listing, error) {
	fp, err := d.resolve(p)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(fp)
	if err != nil {
		return nil, err
	}
	base := NormalizePath(p)
	listing := &Listing{}
	for _, e := range entries {
		child := path.Join(base, e.Name())
		if e.IsDir() {
			listing.Folders = append(listing.Folders, child)
		} else {
			listing.Files = append(listing.Files, child)
		}
	}
	sort.Strings(listing.Files)
	sort.Strings(listing.Folders)
	return listing, nil
}
