// Package minio stores image variants in an S3-compatible bucket under the
// keys <id>/image.<ext>.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"image-variants/internal/config"
	"image-variants/internal/domain"
	"image-variants/internal/repository/image"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

const errCodeNoSuchKey = "NoSuchKey"

type FileRepository struct {
	client  *minio.Client
	bucket  string
	retries retry.Strategy
	logger  *zlog.Zerolog
}

func NewMinIORepository(ctx context.Context, cfg config.MinIOConfig, retries retry.Strategy, logger *zlog.Zerolog) (*FileRepository, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	r := &FileRepository{
		client:  client,
		bucket:  cfg.Bucket,
		retries: retries,
		logger:  logger,
	}

	if err := r.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *FileRepository) ensureBucket(ctx context.Context) error {
	return retry.Do(func() error {
		exists, err := r.client.BucketExists(ctx, r.bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", r.bucket, err)
		}
		if exists {
			return nil
		}

		if err := r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", r.bucket, err)
		}
		r.logger.Info().Str("bucket", r.bucket).Msg("Bucket created")
		return nil
	}, r.retries)
}

func objectKey(id, ext string) string {
	return id + "/" + domain.VariantFilePrefix + ext
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == errCodeNoSuchKey
}

func (r *FileRepository) putVariant(ctx context.Context, id, ext string, data []byte) error {
	key := objectKey(id, ext)
	opts := minio.PutObjectOptions{ContentType: mimetype.Detect(data).String()}

	err := retry.Do(func() error {
		_, err := r.client.PutObject(ctx, r.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
		return err
	}, r.retries)
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", image.ErrStorageError, key, err)
	}
	return nil
}

// EnsureDirectory only validates the id; object stores have no directories.
func (r *FileRepository) EnsureDirectory(ctx context.Context, id string) error {
	return image.ValidateID(id)
}

func (r *FileRepository) WriteVariant(ctx context.Context, id, ext string, data []byte) error {
	if err := image.ValidateID(id); err != nil {
		return err
	}
	if err := image.ValidateExtension(ext); err != nil {
		return err
	}

	if _, err := r.client.StatObject(ctx, r.bucket, objectKey(id, ext), minio.StatObjectOptions{}); err == nil {
		return fmt.Errorf("%w: %s", image.ErrVariantExists, objectKey(id, ext))
	} else if !isNoSuchKey(err) {
		return fmt.Errorf("%w: stat %s: %v", image.ErrStorageError, objectKey(id, ext), err)
	}

	return r.putVariant(ctx, id, ext, data)
}

func (r *FileRepository) ReadVariant(ctx context.Context, id, ext string) ([]byte, error) {
	if err := image.ValidateID(id); err != nil {
		return nil, image.ErrImageNotFound
	}
	if err := image.ValidateExtension(ext); err != nil {
		return nil, err
	}

	key := objectKey(id, ext)
	obj, err := r.client.GetObject(ctx, r.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", image.ErrStorageError, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err == nil {
		return data, nil
	}
	if !isNoSuchKey(err) {
		return nil, fmt.Errorf("%w: read %s: %v", image.ErrStorageError, key, err)
	}

	if ok, _ := r.Exists(ctx, id); !ok {
		return nil, fmt.Errorf("%w: %s", image.ErrImageNotFound, id)
	}
	return nil, fmt.Errorf("%w: %s", image.ErrVariantNotFound, key)
}

func (r *FileRepository) Exists(ctx context.Context, id string) (bool, error) {
	if image.ValidateID(id) != nil {
		return false, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{Prefix: id + "/", MaxKeys: 1}) {
		if obj.Err != nil {
			return false, fmt.Errorf("%w: list %s: %v", image.ErrStorageError, id, obj.Err)
		}
		return true, nil
	}
	return false, nil
}

func (r *FileRepository) DeleteAll(ctx context.Context, id string) error {
	if err := image.ValidateID(id); err != nil {
		return image.ErrImageNotFound
	}

	removed := 0
	for obj := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{Prefix: id + "/", Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("%w: list %s: %v", image.ErrStorageError, id, obj.Err)
		}
		if err := r.client.RemoveObject(ctx, r.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("%w: remove %s: %v", image.ErrStorageError, obj.Key, err)
		}
		removed++
	}

	if removed == 0 {
		return fmt.Errorf("%w: %s", image.ErrImageNotFound, id)
	}
	return nil
}

// ListImages groups the bucket's objects by image id.
func (r *FileRepository) ListImages(ctx context.Context) ([]image.StoredImage, error) {
	latest := make(map[string]time.Time)
	var order []string

	for obj := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("%w: list bucket: %v", image.ErrStorageError, obj.Err)
		}

		id, _, ok := strings.Cut(obj.Key, "/")
		if !ok || image.ValidateID(id) != nil {
			continue
		}
		seen, known := latest[id]
		if !known {
			order = append(order, id)
		}
		if obj.LastModified.After(seen) {
			latest[id] = obj.LastModified
		}
	}

	images := make([]image.StoredImage, 0, len(order))
	for _, id := range order {
		images = append(images, image.StoredImage{ID: id, ModifiedAt: latest[id]})
	}
	return images, nil
}

// BeginUpload buffers variants in memory and writes them all on Commit.
func (r *FileRepository) BeginUpload(ctx context.Context, id string) (image.VariantUpload, error) {
	if err := image.ValidateID(id); err != nil {
		return nil, err
	}
	return &upload{repo: r, id: id, variants: make(map[string][]byte)}, nil
}

func (r *FileRepository) removeKeys(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := r.client.RemoveObject(ctx, r.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
