package image

import (
	"errors"

	"image-variants/internal/usecase/negotiation"
)

var (
	ErrBadUpload     = errors.New("bad upload")
	ErrImageTooLarge = errors.New("image too large")
	ErrUploadFailed  = errors.New("upload failed")
	ErrImageNotFound = errors.New("image not found")
	ErrForbidden     = errors.New("forbidden")
	ErrStorageError  = errors.New("storage error")
	ErrDatabaseError = errors.New("database error")
	ErrNotAcceptable = negotiation.ErrNotAcceptable
)
