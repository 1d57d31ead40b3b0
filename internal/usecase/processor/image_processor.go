package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"image-variants/internal/config"
	"image-variants/internal/domain"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/wb-go/wbf/zlog"
	_ "golang.org/x/image/webp"
)

// maxPixels guards the decoder against images whose header claims absurd
// dimensions.
const maxPixels = 100_000_000

type ImageProcessor struct {
	registry *Registry
	logger   *zlog.Zerolog
}

func NewImageProcessor(registry *Registry, logger *zlog.Zerolog) *ImageProcessor {
	return &ImageProcessor{
		registry: registry,
		logger:   logger,
	}
}

// Decode turns uploaded bytes into a raster. Anything that is not a decodable
// image is reported as ErrBadUpload.
func (p *ImageProcessor) Decode(ctx context.Context, data []byte) (*domain.DecodedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrBadUpload)
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		p.logger.Debug().Str("detected", detected.String()).Msg("Rejected non-image upload")
		return nil, fmt.Errorf("%w: detected %s", ErrBadUpload, detected.String())
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadUpload, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrBadUpload)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadUpload, err)
	}

	p.logger.Debug().
		Str("source_format", format).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Int("size", len(data)).
		Msg("Image decoded")

	return &domain.DecodedImage{
		Image:        img,
		SourceFormat: format,
		Size:         int64(len(data)),
	}, nil
}

// Encode renders img in the given served format.
func (p *ImageProcessor) Encode(ctx context.Context, format config.FormatConfig, img image.Image) (*domain.Variant, error) {
	c, err := p.registry.Get(format.Key)
	if err != nil {
		return nil, err
	}

	data, err := c.Encode(ctx, img)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("format", string(format.Key)).
			Msg("Failed to encode image")
		return nil, err
	}

	p.logger.Debug().
		Str("format", string(format.Key)).
		Int("size", len(data)).
		Msg("Variant encoded")

	return &domain.Variant{
		Format:    format.Key,
		MediaType: format.MediaType,
		Data:      data,
	}, nil
}
