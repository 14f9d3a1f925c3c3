package utils

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	minImageDim = 200
	maxImageDim = 8000
)

// ImageInfo describes a decoded upload.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// DecodePreview verifies that data is a renderable bitmap within the
// supported dimensions and returns the decoded image plus its geometry.
// Garment photos below 200px on either edge are useless to the try-on
// service, so they are rejected here rather than after a round trip.
func DecodePreview(data []byte) (image.Image, ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("unsupported image: %w", err)
	}
	if cfg.Width < minImageDim || cfg.Height < minImageDim {
		return nil, ImageInfo{}, fmt.Errorf("image too small: %dx%d, need at least %dx%d", cfg.Width, cfg.Height, minImageDim, minImageDim)
	}
	if cfg.Width > maxImageDim || cfg.Height > maxImageDim {
		return nil, ImageInfo{}, fmt.Errorf("image too large: %dx%d, max edge is %d", cfg.Width, cfg.Height, maxImageDim)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("decode image: %w", err)
	}
	return img, ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Thumbnail renders a JPEG preview bounded to maxEdge on the longer side.
func Thumbnail(img image.Image, maxEdge int) ([]byte, error) {
	thumb := imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(82)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
