package codec

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"image-variants/internal/domain"

	"github.com/disintegration/imaging"
)

type PNG struct {
	level png.CompressionLevel
}

func NewPNG(params Params) (*PNG, error) {
	if err := validateQuality(domain.FormatPNG, params.Quality); err != nil {
		return nil, err
	}
	return &PNG{level: pngCompressionLevel(qualityFactor(params.Quality))}, nil
}

// pngCompressionLevel trades size for speed: PNG is lossless, so a higher
// quality factor only means less time spent compressing.
func pngCompressionLevel(factor float64) png.CompressionLevel {
	switch {
	case factor >= 1:
		return png.NoCompression
	case factor >= 0.67:
		return png.BestSpeed
	case factor >= 0.34:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

func (p *PNG) Format() domain.ImageFormat { return domain.FormatPNG }

func (p *PNG) Encode(ctx context.Context, img image.Image) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, encodeError(domain.FormatPNG, ErrEmptyImage)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(p.level)); err != nil {
		return nil, encodeError(domain.FormatPNG, err)
	}
	return buf.Bytes(), nil
}
