package codec

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid codec configuration")
	ErrUnknownFormat        = errors.New("unknown image format")
	ErrEncode               = errors.New("encode failed")
	ErrEmptyImage           = errors.New("image is empty")
)
