package image

import (
	"errors"
	"fmt"
)

var (
	ErrImageNotFound   = errors.New("image not found")
	ErrVariantNotFound = errors.New("image variant not found")
	ErrStorageError    = errors.New("storage error")
	ErrInvalidImageID  = errors.New("invalid image id")
	ErrVariantExists   = fmt.Errorf("%w: variant already exists", ErrStorageError)
	ErrUploadFinished  = errors.New("upload already committed or discarded")
)
