package out

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"onsetscore/internal/modules/exhibit/domain"
	exhibitout "onsetscore/internal/modules/exhibit/port/out"
)

// TempFileAllocator writes each exhibit to its own file under dir.
type TempFileAllocator struct {
	dir string
}

// NewTempFileAllocator uses the OS temp dir when dir is empty.
func NewTempFileAllocator(dir string) exhibitout.HandleAllocator {
	return &TempFileAllocator{dir: dir}
}

func (a *TempFileAllocator) Allocate(name string, audio []byte) (domain.Handle, error) {
	if a.dir != "" {
		if err := os.MkdirAll(a.dir, 0o700); err != nil {
			return nil, fmt.Errorf("create exhibit dir: %w", err)
		}
	}
	pattern := "exhibit-*" + filepath.Ext(name)
	f, err := os.CreateTemp(a.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create exhibit file: %w", err)
	}
	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write exhibit file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("close exhibit file: %w", err)
	}
	return &fileHandle{name: name, path: f.Name()}, nil
}

type fileHandle struct {
	name string
	path string
	once sync.Once
	err  error
}

func (h *fileHandle) Name() string { return h.name }

func (h *fileHandle) Location() string {
	return "file://" + filepath.ToSlash(h.path)
}

func (h *fileHandle) Release() error {
	h.once.Do(func() {
		if err := os.Remove(h.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.err = fmt.Errorf("remove exhibit file: %w", err)
		}
	})
	return h.err
}
