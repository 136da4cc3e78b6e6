// Package imagediff compares two images pixel-by-pixel after normalizing
// them to a shared resolution.
package imagediff

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	"github.com/corona10/goimagehash"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/user/imageproxy-service/internal/proxyerr"
)

// DefaultThreshold is the per-channel tolerance on a 0–1 scale. Small
// channel deltas from anti-aliasing or recompression are not differences.
const DefaultThreshold = 0.1

// Result is the outcome of one image comparison.
type Result struct {
	// Score is the percentage of pixels flagged as different, 0–100.
	Score int
	// PHashDistance is the Hamming distance between the two images'
	// difference hashes; -1 when hashing was not possible.
	PHashDistance int
	// Artifact is a PNG visualizing where the images differ: differing
	// pixels opaque red, identical pixels transparent.
	Artifact []byte
}

// Diff decodes, normalizes and compares two images. threshold <= 0 selects
// DefaultThreshold. The score is symmetric: Diff(a, b) and Diff(b, a)
// produce the same value.
func Diff(imageA, imageB []byte, threshold float64) (*Result, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	imgA, err := decode(imageA)
	if err != nil {
		return nil, err
	}
	imgB, err := decode(imageB)
	if err != nil {
		return nil, err
	}

	w := min(imgA.Bounds().Dx(), imgB.Bounds().Dx())
	h := min(imgA.Bounds().Dy(), imgB.Bounds().Dy())
	if w <= 0 || h <= 0 {
		return nil, proxyerr.New(proxyerr.KindUnsupportedImage, "image has zero dimension")
	}

	rgbaA := resample(imgA, w, h)
	rgbaB := resample(imgB, w, h)

	diff := image.NewRGBA(image.Rect(0, 0, w, h))
	limit := uint8(math.Round(threshold * 255))
	differing := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := rgbaA.PixOffset(x, y)
			if pixelDiffers(rgbaA.Pix[i:i+4], rgbaB.Pix[i:i+4], limit) {
				differing++
				diff.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, diff); err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindInternal, err, "encoding diff artifact")
	}

	return &Result{
		Score:         int(math.Round(float64(differing) / float64(w*h) * 100)),
		PHashDistance: phashDistance(imgA, imgB),
		Artifact:      buf.Bytes(),
	}, nil
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindUnsupportedImage, err, "decoding image")
	}
	return img, nil
}

// resample scales img to w×h with nearest-neighbor sampling, flattening
// any color model into RGBA. Sources without alpha come out fully opaque.
func resample(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func pixelDiffers(a, b []uint8, limit uint8) bool {
	for c := 0; c < 4; c++ {
		delta := int(a[c]) - int(b[c])
		if delta < 0 {
			delta = -delta
		}
		if delta > int(limit) {
			return true
		}
	}
	return false
}

// phashDistance computes a perceptual similarity signal alongside the
// pixel score. Hash failures degrade to -1 rather than failing the diff.
func phashDistance(a, b image.Image) int {
	hashA, err := goimagehash.DifferenceHash(a)
	if err != nil {
		return -1
	}
	hashB, err := goimagehash.DifferenceHash(b)
	if err != nil {
		return -1
	}
	dist, err := hashA.Distance(hashB)
	if err != nil {
		return -1
	}
	return dist
}
