package processor

import (
	"errors"

	"image-variants/internal/usecase/processor/codec"
)

var (
	ErrBadUpload     = errors.New("upload is not a supported raster image")
	ErrImageTooLarge = errors.New("image dimensions exceed limit")
	ErrUnknownFormat = codec.ErrUnknownFormat
)
