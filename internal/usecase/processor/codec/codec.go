// Package codec encodes decoded images into the served output formats.
package codec

import (
	"context"
	"fmt"
	"image"
	"math"

	"image-variants/internal/domain"
)

type Codec interface {
	Format() domain.ImageFormat
	Encode(ctx context.Context, img image.Image) ([]byte, error)
}

// Params are the per-format compression settings. Quality is 1-100.
type Params struct {
	Quality     int
	Compression string
	Lossless    bool
}

func New(format domain.ImageFormat, params Params) (Codec, error) {
	switch format {
	case domain.FormatBMP:
		return NewBMP(params)
	case domain.FormatGIF:
		return NewGIF(params)
	case domain.FormatJPEG:
		return NewJPEG(params)
	case domain.FormatPNG:
		return NewPNG(params)
	case domain.FormatWebP:
		return NewWebP(params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func validateQuality(format domain.ImageFormat, quality int) error {
	if quality <= 0 || quality > 100 {
		return fmt.Errorf("%w: %s quality %d outside (0, 100]", ErrInvalidConfiguration, format, quality)
	}
	return nil
}

// qualityFactor maps the 1-100 setting onto 0.0-1.0.
func qualityFactor(quality int) float64 {
	return float64(quality) / 100
}

func scale(factor float64, max int) int {
	return int(math.Round(factor * float64(max)))
}

func encodeError(format domain.ImageFormat, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrEncode, format, err)
}
