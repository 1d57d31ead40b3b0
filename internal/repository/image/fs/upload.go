package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"image-variants/internal/repository/image"
)

type upload struct {
	store *Store
	id    string
	dir   string

	mu   sync.Mutex
	done bool
}

// BeginUpload creates the staging directory for id. Variants written to the
// returned upload stay invisible until Commit.
func (s *Store) BeginUpload(ctx context.Context, id string) (image.VariantUpload, error) {
	if err := image.ValidateID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := os.Lstat(s.imageDir(id)); err == nil {
		return nil, fmt.Errorf("%w: image %s already stored", image.ErrStorageError, id)
	}

	dir := s.stagingDir(id)
	if err := os.Mkdir(dir, s.opts.DirMode); err != nil {
		return nil, fmt.Errorf("%w: create staging %s: %v", image.ErrStorageError, id, err)
	}

	return &upload{store: s, id: id, dir: dir}, nil
}

func (u *upload) ImageID() string { return u.id }

// WriteVariant may be called from several goroutines at once.
func (u *upload) WriteVariant(ctx context.Context, ext string, data []byte) error {
	u.mu.Lock()
	done := u.done
	u.mu.Unlock()
	if done {
		return image.ErrUploadFinished
	}

	return u.store.writeFile(ctx, u.dir, ext, data)
}

func (u *upload) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return image.ErrUploadFinished
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	final := u.store.imageDir(u.id)
	if _, err := os.Lstat(final); err == nil {
		return fmt.Errorf("%w: image %s already stored", image.ErrStorageError, u.id)
	}

	if err := os.Rename(u.dir, final); err != nil {
		return fmt.Errorf("%w: commit %s: %v", image.ErrStorageError, u.id, err)
	}

	u.done = true
	return nil
}

// Discard removes the staged files. It is a no-op after Commit.
func (u *upload) Discard(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return nil
	}
	u.done = true

	if err := os.RemoveAll(u.dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: discard %s: %v", image.ErrStorageError, u.id, err)
	}
	return nil
}
