// Package imaging turns raw uploads into the canonical buffers the
// provider consumes: a higher-fidelity variant for embedding and a
// heavily downsampled grayscale variant for classification.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/akarpov/visearch/internal/core/domain"
)

const (
	embeddingBox      = 800
	classificationBox = 128

	embeddingQuality      = 80
	classificationQuality = 35

	// Linear contrast stretch applied to the classification variant so
	// structure stays perceptible after heavy downsampling. On the 8-bit
	// scale this is out = 1.3*in - 25.5, clamped.
	contrastGain = 1.3
	contrastBias = -25.5
)

const DefaultMaxBytes = 5 << 20

var allowedMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

type Normalizer struct {
	maxBytes int64
}

func New(maxBytes int64) *Normalizer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Normalizer{maxBytes: maxBytes}
}

// Normalize validates the asset and produces the variant for the given
// purpose. It never returns a partial buffer: any failure surfaces as a
// typed error and nothing else happens.
func (n *Normalizer) Normalize(asset domain.ImageAsset, purpose domain.ImagePurpose) (domain.NormalizedImage, error) {
	mimeType := strings.ToLower(strings.TrimSpace(asset.MimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if _, ok := allowedMimeTypes[mimeType]; !ok {
		return domain.NormalizedImage{}, domain.WrapError(domain.ErrUnsupportedType, "normalize", fmt.Errorf("mime type %q", asset.MimeType))
	}

	if asset.Size > n.maxBytes || int64(len(asset.Data)) > n.maxBytes {
		return domain.NormalizedImage{}, domain.WrapError(domain.ErrTooLarge, "normalize", fmt.Errorf("%d bytes exceeds limit %d", max(asset.Size, int64(len(asset.Data))), n.maxBytes))
	}

	src, _, err := image.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		return domain.NormalizedImage{}, domain.WrapError(domain.ErrInvalidImage, "decode", err)
	}

	switch purpose {
	case domain.PurposeEmbedding:
		return encodeVariant(fitWithin(src, embeddingBox), purpose, embeddingQuality)
	case domain.PurposeClassification:
		scaled := fitWithin(src, classificationBox)
		return encodeVariant(grayContrast(scaled), purpose, classificationQuality)
	default:
		return domain.NormalizedImage{}, fmt.Errorf("unknown normalization purpose %q", purpose)
	}
}

// fitWithin scales src to fit a box x box bounding square, preserving
// aspect ratio and never upscaling.
func fitWithin(src image.Image, box int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := 1.0
	if w > box || h > box {
		sw := float64(box) / float64(w)
		sh := float64(box) / float64(h)
		scale = sw
		if sh < sw {
			scale = sh
		}
	}
	dw := int(float64(w)*scale + 0.5)
	dh := int(float64(h)*scale + 0.5)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// grayContrast converts to single-channel grayscale and applies the
// linear contrast stretch.
func grayContrast(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(src.At(x, y)).(color.Gray)
			v := contrastGain*float64(g.Y) + contrastBias
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			dst.SetGray(x, y, color.Gray{Y: uint8(v + 0.5)})
		}
	}
	return dst
}

func encodeVariant(img image.Image, purpose domain.ImagePurpose, quality int) (domain.NormalizedImage, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return domain.NormalizedImage{}, domain.WrapError(domain.ErrInvalidImage, "encode", err)
	}
	b := img.Bounds()
	return domain.NormalizedImage{
		Data:     buf.Bytes(),
		MimeType: "image/jpeg",
		Width:    b.Dx(),
		Height:   b.Dy(),
		Purpose:  purpose,
	}, nil
}
