package domain

import (
	"image"
	"time"
)

type ImageMetadata struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time
}

// Variant is one encoded representation of an image chosen for a client.
type Variant struct {
	ImageID   string
	Format    ImageFormat
	MediaType string
	Data      []byte
}

// DecodedImage is an uploaded file after decoding, independent of its source format.
type DecodedImage struct {
	Image        image.Image
	SourceFormat string
	Size         int64
}

type ImageFormat string

const (
	FormatBMP  ImageFormat = "bmp"
	FormatGIF  ImageFormat = "gif"
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatWebP ImageFormat = "webp"
)

// KnownFormats lists every format a codec exists for.
var KnownFormats = []ImageFormat{FormatBMP, FormatGIF, FormatJPEG, FormatPNG, FormatWebP}

func (f ImageFormat) Known() bool {
	for _, k := range KnownFormats {
		if f == k {
			return true
		}
	}
	return false
}

// DefaultMediaType returns the IANA media type for a known format.
func (f ImageFormat) DefaultMediaType() string {
	switch f {
	case FormatBMP:
		return "image/bmp"
	case FormatGIF:
		return "image/gif"
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

const (
	VariantFilePrefix = "image."
	StagingDirName    = ".staging"
)

const (
	DefaultMaxUploadSize = 32 << 20
	DefaultQuality       = 85
	WebPCompressionLossy = "DEFAULT"
)
