package similarity

import (
	"bytes"
	"image"
	"image/color"

	_ "image/jpeg"
	_ "image/png"
)

const histogramBins = 64

// histogramSimilarity compares the grayscale luminance distributions of
// two encoded images by histogram intersection. Result is in [0, 1].
func histogramSimilarity(a, b []byte) (float64, error) {
	histA, err := grayHistogram(a)
	if err != nil {
		return 0, err
	}
	histB, err := grayHistogram(b)
	if err != nil {
		return 0, err
	}

	var intersection float64
	for i := range histA {
		intersection += min(histA[i], histB[i])
	}
	return intersection, nil
}

func grayHistogram(data []byte) ([histogramBins]float64, error) {
	var hist [histogramBins]float64

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return hist, err
	}

	bounds := img.Bounds()
	total := float64(bounds.Dx() * bounds.Dy())
	if total == 0 {
		return hist, nil
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			hist[int(g.Y)*histogramBins/256]++
		}
	}
	for i := range hist {
		hist[i] /= total
	}
	return hist, nil
}

// colorSimilarity compares per-channel mean intensity of two encoded
// images. Result is in [0, 1], with 1 for identical channel means.
func colorSimilarity(a, b []byte) (float64, error) {
	meansA, err := channelMeans(a)
	if err != nil {
		return 0, err
	}
	meansB, err := channelMeans(b)
	if err != nil {
		return 0, err
	}

	var diff float64
	for i := range meansA {
		d := meansA[i] - meansB[i]
		if d < 0 {
			d = -d
		}
		diff += d
	}
	return 1 - diff/3, nil
}

func channelMeans(data []byte) ([3]float64, error) {
	var means [3]float64

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return means, err
	}

	bounds := img.Bounds()
	total := float64(bounds.Dx() * bounds.Dy())
	if total == 0 {
		return means, nil
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			means[0] += float64(r) / 0xffff
			means[1] += float64(g) / 0xffff
			means[2] += float64(b) / 0xffff
		}
	}
	for i := range means {
		means[i] /= total
	}
	return means, nil
}
