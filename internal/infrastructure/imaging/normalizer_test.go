package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akarpov/visearch/internal/core/domain"
)

func pngAsset(t *testing.T, w, h int) domain.ImageAsset {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return domain.ImageAsset{
		Data:     buf.Bytes(),
		MimeType: "image/png",
		Size:     int64(buf.Len()),
	}
}

func TestNormalizeEmbeddingFitsBoundingBox(t *testing.T) {
	n := New(0)

	out, err := n.Normalize(pngAsset(t, 1600, 800), domain.PurposeEmbedding)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", out.MimeType)
	assert.Equal(t, domain.PurposeEmbedding, out.Purpose)
	assert.Equal(t, 800, out.Width)
	assert.Equal(t, 400, out.Height)

	decoded, _, err := image.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 800, decoded.Bounds().Dx())
	assert.Equal(t, 400, decoded.Bounds().Dy())
}

func TestNormalizeEmbeddingNeverUpscales(t *testing.T) {
	n := New(0)

	out, err := n.Normalize(pngAsset(t, 100, 50), domain.PurposeEmbedding)
	require.NoError(t, err)
	assert.Equal(t, 100, out.Width)
	assert.Equal(t, 50, out.Height)
}

func TestNormalizeClassificationVariant(t *testing.T) {
	n := New(0)

	out, err := n.Normalize(pngAsset(t, 1024, 1024), domain.PurposeClassification)
	require.NoError(t, err)

	assert.Equal(t, domain.PurposeClassification, out.Purpose)
	assert.Equal(t, 128, out.Width)
	assert.Equal(t, 128, out.Height)

	decoded, _, err := image.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)

	// The classification variant is single-channel.
	r, g, b, _ := decoded.At(64, 64).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestNormalizeAcceptsMimeTypeWithParameters(t *testing.T) {
	n := New(0)
	asset := pngAsset(t, 10, 10)
	asset.MimeType = "IMAGE/PNG; charset=binary"

	_, err := n.Normalize(asset, domain.PurposeEmbedding)
	assert.NoError(t, err)
}

func TestNormalizeRejectsUnsupportedMimeType(t *testing.T) {
	n := New(0)
	asset := pngAsset(t, 10, 10)
	asset.MimeType = "image/gif"

	_, err := n.Normalize(asset, domain.PurposeEmbedding)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestNormalizeRejectsOversizedAsset(t *testing.T) {
	n := New(64)
	asset := pngAsset(t, 100, 100)

	_, err := n.Normalize(asset, domain.PurposeEmbedding)
	assert.ErrorIs(t, err, domain.ErrTooLarge)
}

func TestNormalizeRejectsDeclaredOversize(t *testing.T) {
	n := New(1 << 20)
	asset := pngAsset(t, 10, 10)
	asset.Size = 2 << 20

	_, err := n.Normalize(asset, domain.PurposeEmbedding)
	assert.ErrorIs(t, err, domain.ErrTooLarge)
}

func TestNormalizeRejectsUndecodableBytes(t *testing.T) {
	n := New(0)
	asset := domain.ImageAsset{
		Data:     []byte("definitely not a png"),
		MimeType: "image/png",
		Size:     20,
	}

	_, err := n.Normalize(asset, domain.PurposeEmbedding)
	assert.ErrorIs(t, err, domain.ErrInvalidImage)
}
