package image

import (
	"context"
	"errors"
	"fmt"
	"time"

	"image-variants/internal/config"
	"image-variants/internal/domain"
	repoImage "image-variants/internal/repository/image"
	"image-variants/internal/usecase/negotiation"
	"image-variants/internal/usecase/processor"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"
)

type ImageUsecase struct {
	repo        imageRepository
	fileRepo    fileRepository
	processor   imageProcessor
	negotiator  formatNegotiator
	publisher   eventPublisher
	formats     []config.FormatConfig
	concurrency int
	logger      *zlog.Zerolog
}

// NewImageUsecase encodes uploads into formats, which should hold the enabled
// formats in declaration order.
func NewImageUsecase(
	repo imageRepository,
	fileRepo fileRepository,
	processor imageProcessor,
	negotiator formatNegotiator,
	publisher eventPublisher,
	formats []config.FormatConfig,
	concurrency int,
	logger *zlog.Zerolog,
) *ImageUsecase {
	if concurrency < 1 {
		concurrency = 1
	}

	return &ImageUsecase{
		repo:        repo,
		fileRepo:    fileRepo,
		processor:   processor,
		negotiator:  negotiator,
		publisher:   publisher,
		formats:     formats,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ReadImage decodes an uploaded file.
func (i *ImageUsecase) ReadImage(ctx context.Context, data []byte) (*domain.DecodedImage, error) {
	decoded, err := i.processor.Decode(ctx, data)
	switch {
	case err == nil:
		return decoded, nil
	case errors.Is(err, processor.ErrImageTooLarge):
		return nil, fmt.Errorf("%w: %w", ErrImageTooLarge, err)
	case errors.Is(err, processor.ErrBadUpload):
		return nil, fmt.Errorf("%w: %w", ErrBadUpload, err)
	default:
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
}

func (i *ImageUsecase) UploadImage(ctx context.Context, data []byte, ownerID string) (*domain.ImageMetadata, error) {
	decoded, err := i.ReadImage(ctx, data)
	if err != nil {
		i.logger.Info().Err(err).Str("owner_id", ownerID).Msg("Rejected upload")
		return nil, err
	}

	meta, err := i.SaveImage(ctx, decoded, uuid.New().String(), ownerID)
	if err != nil {
		return nil, err
	}

	formats := make([]domain.ImageFormat, 0, len(i.formats))
	for _, f := range i.formats {
		formats = append(formats, f.Key)
	}
	i.publish(ctx, domain.ImageEvent{
		Type:       domain.EventImageUploaded,
		ImageID:    meta.ID,
		OwnerID:    ownerID,
		Formats:    formats,
		OccurredAt: meta.CreatedAt,
	})

	i.logger.Info().
		Str("image_id", meta.ID).
		Str("owner_id", ownerID).
		Str("source_format", decoded.SourceFormat).
		Int("formats", len(formats)).
		Msg("Image uploaded")

	return meta, nil
}

// SaveImage encodes img into every enabled format, stores the variants and
// then records the owner. Variants are staged and committed together, so a
// failure leaves neither files nor metadata behind.
func (i *ImageUsecase) SaveImage(ctx context.Context, img *domain.DecodedImage, id, ownerID string) (*domain.ImageMetadata, error) {
	if len(i.formats) == 0 {
		return nil, fmt.Errorf("%w: no output formats enabled", ErrUploadFailed)
	}

	upload, err := i.fileRepo.BeginUpload(ctx, id)
	if err != nil {
		i.logger.Error().Err(err).Str("image_id", id).Msg("Failed to begin upload")
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := upload.Discard(context.WithoutCancel(ctx)); err != nil {
			i.logger.Error().Err(err).Str("image_id", id).Msg("Failed to discard staged upload")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)

	for _, f := range i.formats {
		g.Go(func() error {
			variant, err := i.processor.Encode(gctx, f, img.Image)
			if err != nil {
				i.logger.Error().Err(err).Str("image_id", id).Str("format", string(f.Key)).Str("operation", "encode").Msg("Failed to encode variant")
				return fmt.Errorf("encode %s: %w", f.Key, err)
			}

			if err := upload.WriteVariant(gctx, f.Extension, variant.Data); err != nil {
				i.logger.Error().Err(err).Str("image_id", id).Str("format", string(f.Key)).Str("operation", "write").Msg("Failed to write variant")
				return fmt.Errorf("write %s: %w", f.Key, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if err := upload.Commit(ctx); err != nil {
		i.logger.Error().Err(err).Str("image_id", id).Msg("Failed to commit upload")
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	committed = true

	meta := &domain.ImageMetadata{
		ID:        id,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}

	if err := i.repo.Save(ctx, meta); err != nil {
		i.logger.Error().Err(err).Str("image_id", id).Msg("Failed to save image metadata")
		if rmErr := i.fileRepo.DeleteAll(context.WithoutCancel(ctx), id); rmErr != nil {
			i.logger.Error().Err(rmErr).Str("image_id", id).Msg("Orphaned image directory left behind")
		}
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return meta, nil
}

// GetBestSuitedImage returns the stored variant that best satisfies the
// client's Accept entries.
func (i *ImageUsecase) GetBestSuitedImage(ctx context.Context, id string, accept []negotiation.AcceptEntry) (*domain.Variant, error) {
	exists, err := i.fileRepo.Exists(ctx, id)
	if err != nil {
		i.logger.Error().Err(err).Str("image_id", id).Str("operation", "exists").Msg("Failed to probe image storage")
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if !exists {
		return nil, ErrImageNotFound
	}

	format, err := i.negotiator.Negotiate(accept)
	if err != nil {
		return nil, err
	}

	data, err := i.fileRepo.ReadVariant(ctx, id, format.Extension)
	switch {
	case err == nil:
	case errors.Is(err, repoImage.ErrImageNotFound):
		return nil, ErrImageNotFound
	default:
		i.logger.Error().
			Err(err).
			Str("image_id", id).
			Str("format", string(format.Key)).
			Str("operation", "read").
			Msg("Failed to read variant")
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	return &domain.Variant{
		ImageID:   id,
		Format:    format.Key,
		MediaType: format.MediaType,
		Data:      data,
	}, nil
}

// DeleteImage removes an image if callerID owns it or isAdmin is set.
func (i *ImageUsecase) DeleteImage(ctx context.Context, id, callerID string, isAdmin bool) error {
	meta, err := i.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repoImage.ErrImageNotFound) {
			return ErrImageNotFound
		}
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if !isAdmin && meta.OwnerID != callerID {
		i.logger.Warn().Str("image_id", id).Str("caller_id", callerID).Msg("Delete forbidden")
		return ErrForbidden
	}

	if err := i.deleteMetadata(ctx, id, callerID, isAdmin); err != nil {
		return err
	}

	if err := i.fileRepo.DeleteAll(ctx, id); err != nil {
		if !errors.Is(err, repoImage.ErrImageNotFound) {
			i.logger.Error().Err(err).Str("image_id", id).Str("operation", "delete").Msg("Failed to delete image files")
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		i.logger.Warn().Str("image_id", id).Msg("Image files were already gone")
	}

	i.publish(ctx, domain.ImageEvent{
		Type:       domain.EventImageDeleted,
		ImageID:    id,
		OwnerID:    meta.OwnerID,
		DeletedBy:  callerID,
		OccurredAt: time.Now().UTC(),
	})

	i.logger.Info().Str("image_id", id).Str("caller_id", callerID).Bool("admin", isAdmin).Msg("Image deleted")
	return nil
}

// deleteMetadata removes the record in a single statement. For non-admins the
// ownership check is part of that statement.
func (i *ImageUsecase) deleteMetadata(ctx context.Context, id, callerID string, isAdmin bool) error {
	if isAdmin {
		err := i.repo.Delete(ctx, id)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repoImage.ErrImageNotFound):
			return ErrImageNotFound
		default:
			return fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
	}

	deleted, err := i.repo.DeleteOwned(ctx, id, callerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if !deleted {
		return ErrImageNotFound
	}
	return nil
}

// DoesImageExist consults the metadata store, which is the authoritative
// record of an image.
func (i *ImageUsecase) DoesImageExist(ctx context.Context, id string) (bool, error) {
	exists, err := i.repo.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return exists, nil
}

func (i *ImageUsecase) ListImages(ctx context.Context, ownerID string) ([]domain.ImageMetadata, error) {
	images, err := i.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return images, nil
}

func (i *ImageUsecase) publish(ctx context.Context, event domain.ImageEvent) {
	if i.publisher == nil {
		return
	}
	if err := i.publisher.Publish(ctx, event); err != nil {
		i.logger.Warn().Err(err).Str("image_id", event.ImageID).Str("event", string(event.Type)).Msg("Failed to publish event")
	}
}
