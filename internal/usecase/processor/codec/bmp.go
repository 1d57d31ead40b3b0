package codec

import (
	"bytes"
	"context"
	"image"
	"image/color"

	"image-variants/internal/domain"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
)

// BMP has no alpha channel, so translucent sources are painted over an
// opaque background first.
type BMP struct {
	background color.Color
}

func NewBMP(params Params) (*BMP, error) {
	if err := validateQuality(domain.FormatBMP, params.Quality); err != nil {
		return nil, err
	}
	return &BMP{background: color.White}, nil
}

func (b *BMP) Format() domain.ImageFormat { return domain.FormatBMP }

func (b *BMP) Encode(ctx context.Context, img image.Image) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, encodeError(domain.FormatBMP, ErrEmptyImage)
	}

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, b.flatten(img)); err != nil {
		return nil, encodeError(domain.FormatBMP, err)
	}
	return buf.Bytes(), nil
}

func (b *BMP) flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	bounds := img.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), b.background)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}
