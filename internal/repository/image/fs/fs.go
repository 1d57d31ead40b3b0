// Package fs stores image variants on the local filesystem as
// <base>/<id>/image.<ext>. Uploads are staged under <base>/.staging/<id> and
// renamed into place once every variant has been written.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"image-variants/internal/domain"
	"image-variants/internal/repository/image"

	"github.com/wb-go/wbf/zlog"
)

type Store struct {
	root   string
	opts   Options
	logger *zlog.Zerolog
}

func NewStore(root string, logger *zlog.Zerolog, opts ...OptionFunc) (*Store, error) {
	options := defaultOpts
	for _, opt := range opts {
		opt(&options)
	}

	root = filepath.Clean(root)
	if err := os.MkdirAll(filepath.Join(root, domain.StagingDirName), options.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	return &Store{
		root:   root,
		opts:   options,
		logger: logger,
	}, nil
}

func (s *Store) imageDir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *Store) stagingDir(id string) string {
	return filepath.Join(s.root, domain.StagingDirName, id)
}

func variantName(ext string) string {
	return domain.VariantFilePrefix + ext
}

// EnsureDirectory creates the directory for id, or accepts it if it already
// exists as a directory.
func (s *Store) EnsureDirectory(ctx context.Context, id string) error {
	if err := image.ValidateID(id); err != nil {
		return err
	}
	return ensureDir(s.imageDir(id), s.opts.DirMode)
}

func ensureDir(dir string, mode os.FileMode) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%w: %s exists and is not a directory", image.ErrStorageError, dir)
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: stat %s: %v", image.ErrStorageError, dir, err)
	}

	if err := os.Mkdir(dir, mode); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: create %s: %v", image.ErrStorageError, dir, err)
	}
	return nil
}

// WriteVariant writes one variant straight into the image directory. Files
// are write-once.
func (s *Store) WriteVariant(ctx context.Context, id, ext string, data []byte) error {
	if err := image.ValidateID(id); err != nil {
		return err
	}
	return s.writeFile(ctx, s.imageDir(id), ext, data)
}

func (s *Store) writeFile(ctx context.Context, dir, ext string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := image.ValidateExtension(ext); err != nil {
		return err
	}

	path := filepath.Join(dir, variantName(ext))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.opts.FileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", image.ErrVariantExists, path)
		}
		return fmt.Errorf("%w: create %s: %v", image.ErrStorageError, path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("%w: write %s: %v", image.ErrStorageError, path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: close %s: %v", image.ErrStorageError, path, err)
	}

	return nil
}

func (s *Store) ReadVariant(ctx context.Context, id, ext string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := image.ValidateID(id); err != nil {
		return nil, image.ErrImageNotFound
	}
	if err := image.ValidateExtension(ext); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.imageDir(id), variantName(ext)))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: read %s/%s: %v", image.ErrStorageError, id, ext, err)
	}

	if ok, _ := s.Exists(ctx, id); !ok {
		return nil, fmt.Errorf("%w: %s", image.ErrImageNotFound, id)
	}
	return nil, fmt.Errorf("%w: %s/%s", image.ErrVariantNotFound, id, ext)
}

// DeleteAll removes the image directory. A missing directory is ErrImageNotFound.
func (s *Store) DeleteAll(ctx context.Context, id string) error {
	if err := image.ValidateID(id); err != nil {
		return image.ErrImageNotFound
	}

	dir := s.imageDir(id)
	if _, err := os.Lstat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", image.ErrImageNotFound, id)
		}
		return fmt.Errorf("%w: stat %s: %v", image.ErrStorageError, id, err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: remove %s: %v", image.ErrStorageError, id, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if image.ValidateID(id) != nil {
		return false, nil
	}

	info, err := os.Stat(s.imageDir(id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", image.ErrStorageError, id, err)
	}
	return info.IsDir(), nil
}

// ListImages returns every committed image directory.
func (s *Store) ListImages(ctx context.Context) ([]image.StoredImage, error) {
	return s.list(ctx, s.root)
}

func (s *Store) list(ctx context.Context, dir string) ([]image.StoredImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", image.ErrStorageError, dir, err)
	}

	images := make([]image.StoredImage, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() || image.ValidateID(e.Name()) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		images = append(images, image.StoredImage{ID: e.Name(), ModifiedAt: info.ModTime()})
	}
	return images, nil
}

// ListStaged returns uploads that were staged but never committed or discarded.
func (s *Store) ListStaged(ctx context.Context) ([]image.StoredImage, error) {
	return s.list(ctx, filepath.Join(s.root, domain.StagingDirName))
}

// PurgeStaged removes staged uploads last touched before cutoff. These are
// left behind when the process dies between staging and commit.
func (s *Store) PurgeStaged(ctx context.Context, cutoff time.Time) (int, error) {
	staged, err := s.ListStaged(ctx)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, st := range staged {
		if !st.ModifiedAt.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(s.stagingDir(st.ID)); err != nil {
			s.logger.Warn().Err(err).Str("image_id", st.ID).Msg("Failed to purge staged upload")
			continue
		}
		purged++
	}
	return purged, nil
}
