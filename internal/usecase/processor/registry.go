package processor

import (
	"fmt"

	"image-variants/internal/config"
	"image-variants/internal/domain"
	"image-variants/internal/usecase/processor/codec"
)

// Registry holds one codec per configured format. It is built once at
// startup and only read afterwards.
type Registry struct {
	codecs map[domain.ImageFormat]codec.Codec
}

// NewRegistry builds a codec for every configured format, enabled or not, so
// that a bad quality setting fails startup instead of a later request.
func NewRegistry(formats []config.FormatConfig) (*Registry, error) {
	r := &Registry{codecs: make(map[domain.ImageFormat]codec.Codec, len(formats))}

	for _, f := range formats {
		c, err := codec.New(f.Key, codec.Params{
			Quality:     f.Quality,
			Compression: f.Compression,
			Lossless:    f.Lossless,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s codec: %w", f.Key, err)
		}
		r.codecs[f.Key] = c
	}

	return r, nil
}

func (r *Registry) Get(format domain.ImageFormat) (codec.Codec, error) {
	c, ok := r.codecs[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return c, nil
}
