package codec

import (
	"bytes"
	"context"
	"image"

	"image-variants/internal/domain"

	"github.com/disintegration/imaging"
)

const (
	minGIFColors = 2
	maxGIFColors = 256
)

// GIF always compresses with LZW; quality selects the palette size.
type GIF struct {
	colors int
}

func NewGIF(params Params) (*GIF, error) {
	if err := validateQuality(domain.FormatGIF, params.Quality); err != nil {
		return nil, err
	}

	colors := scale(qualityFactor(params.Quality), maxGIFColors)
	if colors < minGIFColors {
		colors = minGIFColors
	}
	return &GIF{colors: colors}, nil
}

func (g *GIF) Format() domain.ImageFormat { return domain.FormatGIF }

func (g *GIF) Encode(ctx context.Context, img image.Image) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, encodeError(domain.FormatGIF, ErrEmptyImage)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.GIF, imaging.GIFNumColors(g.colors)); err != nil {
		return nil, encodeError(domain.FormatGIF, err)
	}
	return buf.Bytes(), nil
}
