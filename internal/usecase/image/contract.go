package image

import (
	"context"
	"image"

	"image-variants/internal/config"
	"image-variants/internal/domain"
	repoImage "image-variants/internal/repository/image"
	"image-variants/internal/usecase/negotiation"
)

type imageRepository interface {
	Save(ctx context.Context, meta *domain.ImageMetadata) error
	GetByID(ctx context.Context, id string) (*domain.ImageMetadata, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.ImageMetadata, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteOwned(ctx context.Context, id, ownerID string) (bool, error)
}

type fileRepository interface {
	BeginUpload(ctx context.Context, id string) (repoImage.VariantUpload, error)
	ReadVariant(ctx context.Context, id, ext string) ([]byte, error)
	DeleteAll(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

type imageProcessor interface {
	Decode(ctx context.Context, data []byte) (*domain.DecodedImage, error)
	Encode(ctx context.Context, format config.FormatConfig, img image.Image) (*domain.Variant, error)
}

type formatNegotiator interface {
	Negotiate(entries []negotiation.AcceptEntry) (config.FormatConfig, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event domain.ImageEvent) error
}
