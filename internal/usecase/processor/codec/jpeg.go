package codec

import (
	"bytes"
	"context"
	"image"

	"image-variants/internal/domain"

	"github.com/disintegration/imaging"
)

type JPEG struct {
	quality int
}

func NewJPEG(params Params) (*JPEG, error) {
	if err := validateQuality(domain.FormatJPEG, params.Quality); err != nil {
		return nil, err
	}

	q := scale(qualityFactor(params.Quality), 100)
	if q < 1 {
		q = 1
	}
	return &JPEG{quality: q}, nil
}

func (j *JPEG) Format() domain.ImageFormat { return domain.FormatJPEG }

func (j *JPEG) Encode(ctx context.Context, img image.Image) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, encodeError(domain.FormatJPEG, ErrEmptyImage)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(j.quality)); err != nil {
		return nil, encodeError(domain.FormatJPEG, err)
	}
	return buf.Bytes(), nil
}
