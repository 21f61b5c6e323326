// Package filestore stores uploaded files (submissions, course materials,
// profile pictures) on the local disk under random references.
package filestore

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

type localStorage struct {
	root string
}

var _ core.FileStorage = (*localStorage)(nil)

func NewLocalStorage(root string) (core.FileStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return &localStorage{root: root}, nil
}

// Save copies r to disk under a random ref that keeps the original extension.
func (fs *localStorage) Save(r io.Reader, filename string) (string, error) {
	ref := uuid.New().String() + filepath.Ext(filename)
	f, err := os.Create(filepath.Join(fs.root, ref))
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	defer func() { _ = f.Close() }()

	if _, err = io.Copy(f, r); err != nil {
		return "", errors.Wrap(err, "writing file")
	}
	return ref, nil
}

func (fs *localStorage) Open(ref string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(fs.root, filepath.Base(ref)))
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (fs *localStorage) Delete(ref string) error {
	if err := os.Remove(filepath.Join(fs.root, filepath.Base(ref))); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}
