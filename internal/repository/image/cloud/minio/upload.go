package minio

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"image-variants/internal/repository/image"
)

type upload struct {
	repo *FileRepository
	id   string

	mu       sync.Mutex
	variants map[string][]byte
	done     bool
}

func (u *upload) ImageID() string { return u.id }

func (u *upload) WriteVariant(ctx context.Context, ext string, data []byte) error {
	if err := image.ValidateExtension(ext); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return image.ErrUploadFinished
	}
	if _, ok := u.variants[ext]; ok {
		return fmt.Errorf("%w: %s/%s", image.ErrVariantExists, u.id, ext)
	}
	u.variants[ext] = data
	return nil
}

// Commit uploads every buffered variant and removes the ones already written
// if a later put fails.
func (u *upload) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return image.ErrUploadFinished
	}

	exts := make([]string, 0, len(u.variants))
	for ext := range u.variants {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	written := make([]string, 0, len(exts))
	for _, ext := range exts {
		if err := u.repo.putVariant(ctx, u.id, ext, u.variants[ext]); err != nil {
			if rmErr := u.repo.removeKeys(context.WithoutCancel(ctx), written); rmErr != nil {
				u.repo.logger.Error().Err(rmErr).Str("image_id", u.id).Msg("Failed to roll back partial upload")
			}
			return err
		}
		written = append(written, objectKey(u.id, ext))
	}

	u.done = true
	u.variants = nil
	return nil
}

func (u *upload) Discard(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.done = true
	u.variants = nil
	return nil
}
