package image

import (
	"context"

	"image-variants/internal/domain"
	"image-variants/internal/usecase/negotiation"
)

type imageUsecase interface {
	UploadImage(ctx context.Context, data []byte, ownerID string) (*domain.ImageMetadata, error)
	GetBestSuitedImage(ctx context.Context, id string, accept []negotiation.AcceptEntry) (*domain.Variant, error)
	DeleteImage(ctx context.Context, id, callerID string, isAdmin bool) error
	DoesImageExist(ctx context.Context, id string) (bool, error)
	ListImages(ctx context.Context, ownerID string) ([]domain.ImageMetadata, error)
}
