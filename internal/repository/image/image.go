// Package image holds what the image storage backends share.
package image

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VariantUpload collects the variants of one image. Nothing becomes visible
// under the image id until Commit succeeds; Discard drops whatever was staged.
type VariantUpload interface {
	ImageID() string
	WriteVariant(ctx context.Context, ext string, data []byte) error
	Commit(ctx context.Context) error
	Discard(ctx context.Context) error
}

// StoredImage is an image directory found while scanning a backend.
type StoredImage struct {
	ID         string
	ModifiedAt time.Time
}

// ValidateID accepts only canonical UUIDs, so an id can never escape the
// storage root.
func ValidateID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return fmt.Errorf("%w: %q", ErrInvalidImageID, id)
	}
	return nil
}

// ValidateExtension rejects extensions that are empty or contain path
// separators.
func ValidateExtension(ext string) error {
	if ext == "" || ext == "." || ext == ".." {
		return fmt.Errorf("%w: invalid extension %q", ErrStorageError, ext)
	}
	for _, r := range ext {
		if r == '/' || r == '\\' || r == 0 {
			return fmt.Errorf("%w: invalid extension %q", ErrStorageError, ext)
		}
	}
	return nil
}
