package persistence

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dfryer1193/ciel/gallery/domain"
)

var _ domain.ImageFiles = (*LocalImageFiles)(nil)

const defaultImageDir = "./images"

// LocalImageFiles implements domain.ImageFiles on a flat local directory.
type LocalImageFiles struct {
	dir string
}

// NewLocalImageFiles creates the directory if needed.
func NewLocalImageFiles(dir string) (*LocalImageFiles, error) {
	if dir == "" {
		dir = defaultImageDir
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, domain.IOError("create image directory", dir, err)
	}

	return &LocalImageFiles{dir: dir}, nil
}

// Create opens name for writing, failing if the file already exists.
func (f *LocalImageFiles) Create(name string) (*os.File, error) {
	localPath, err := f.Path(name)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return nil, domain.ConflictError("create image file", name, err)
	}
	if err != nil {
		return nil, domain.IOError("create image file", name, err)
	}

	return file, nil
}

func (f *LocalImageFiles) Remove(name string) error {
	localPath, err := f.Path(name)
	if err != nil {
		return err
	}

	if err := os.Remove(localPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.IOError("remove image file", name, err)
	}

	return nil
}

func (f *LocalImageFiles) Exists(name string) (bool, error) {
	localPath, err := f.Path(name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, domain.IOError("stat image file", name, err)
	}

	return info.Mode().IsRegular(), nil
}

// Path resolves name inside the directory. Names must be bare filenames.
func (f *LocalImageFiles) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", domain.ConstraintError("resolve image file", name, fmt.Errorf("not a bare file name"))
	}

	return filepath.Join(f.dir, name), nil
}

// List returns the regular files in the directory, sorted.
func (f *LocalImageFiles) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, domain.IOError("list image directory", f.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}

	slices.Sort(names)
	return names, nil
}
