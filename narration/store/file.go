package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/theimaginaryfoundation/narration-script/narration/fileutils"
)

// File stores blobs under a root directory. Writes are atomic.
type File struct {
	root string
}

func NewFile(root string) (*File, error) {
	if root == "" {
		return nil, fmt.Errorf("store: empty root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}
	return &File{root: root}, nil
}

func (f *File) path(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}

func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	b, ok, err := fileutils.ReadFileIfExists(p)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (f *File) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := fileutils.WriteFileAtomicSameDir(p, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	return nil
}
