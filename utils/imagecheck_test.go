package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 10 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePreviewAcceptsPNG(t *testing.T) {
	img, info, err := DecodePreview(pngBytes(t, 640, 480))
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, 640, info.Width)
	assert.Equal(t, 480, info.Height)
	assert.Equal(t, "png", info.Format)
}

func TestDecodePreviewAcceptsJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 300, 300))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	_, info, err := DecodePreview(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", info.Format)
}

func TestDecodePreviewRejectsGarbage(t *testing.T) {
	_, _, err := DecodePreview([]byte("this is not an image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image")
}

func TestDecodePreviewRejectsTinyImage(t *testing.T) {
	_, _, err := DecodePreview(pngBytes(t, 120, 500))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestDecodePreviewRejectsHugeImage(t *testing.T) {
	_, _, err := DecodePreview(pngBytes(t, 9000, 300))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestThumbnailBoundsLongEdge(t *testing.T) {
	img, _, err := DecodePreview(pngBytes(t, 1600, 800))
	require.NoError(t, err)

	data, err := Thumbnail(img, 320)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 160, cfg.Height)
}
