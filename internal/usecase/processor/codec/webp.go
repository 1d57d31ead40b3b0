package codec

import (
	"bytes"
	"context"
	"image"
	"strings"

	"image-variants/internal/domain"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// maxLosslessLevel is libwebp's slowest, smallest lossless setting.
const maxLosslessLevel = 9

// WebP encodes lossy when the compression type is DEFAULT and with maximum
// lossless compression for any other value.
type WebP struct {
	quality  float32
	lossless bool
}

func NewWebP(params Params) (*WebP, error) {
	if err := validateQuality(domain.FormatWebP, params.Quality); err != nil {
		return nil, err
	}

	w := &WebP{
		quality:  float32(scale(qualityFactor(params.Quality), 100)),
		lossless: params.Lossless || !isDefaultCompression(params.Compression),
	}
	if _, err := w.options(); err != nil {
		return nil, err
	}
	return w, nil
}

func isDefaultCompression(compression string) bool {
	return compression == "" || strings.EqualFold(compression, domain.WebPCompressionLossy)
}

func (w *WebP) Lossless() bool { return w.lossless }

func (w *WebP) options() (*encoder.Options, error) {
	if w.lossless {
		return encoder.NewLosslessEncoderOptions(encoder.PresetDefault, maxLosslessLevel)
	}
	return encoder.NewLossyEncoderOptions(encoder.PresetDefault, w.quality)
}

func (w *WebP) Format() domain.ImageFormat { return domain.FormatWebP }

func (w *WebP) Encode(ctx context.Context, img image.Image) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, encodeError(domain.FormatWebP, ErrEmptyImage)
	}

	options, err := w.options()
	if err != nil {
		return nil, encodeError(domain.FormatWebP, err)
	}

	// libwebp imports NRGBA directly; decoded JPEGs arrive as YCbCr.
	src := imaging.Clone(img)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, src, options); err != nil {
		return nil, encodeError(domain.FormatWebP, err)
	}
	return buf.Bytes(), nil
}
