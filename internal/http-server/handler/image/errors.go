package image

import "errors"

var (
	ErrFileRequired = errors.New("file is required")
	ErrFileTooLarge = errors.New("file too large")
	ErrUnauthorized = errors.New("authentication required")
)
