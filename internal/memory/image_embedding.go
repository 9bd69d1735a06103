package memory

import (
	"context"
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	layoutGrid   = 4
	hueBins      = 16
	valueBins    = 8
	satBins      = 8
	imageEmbDims = layoutGrid*layoutGrid*3 + hueBins + valueBins + satBins
)

// ImageEmbedder turns an image into a fixed-length vector
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)
	Dimensions() int
}

// ColorLayoutEmbedding describes an image by the mean Lab color of a 4x4
// grid plus hue, saturation and value histograms. Identical pixels always
// produce identical vectors.
type ColorLayoutEmbedding struct{}

// NewColorLayoutEmbedding creates the default image embedder
func NewColorLayoutEmbedding() *ColorLayoutEmbedding {
	return &ColorLayoutEmbedding{}
}

// Dimensions returns the embedding vector dimensionality
func (e *ColorLayoutEmbedding) Dimensions() int {
	return imageEmbDims
}

// EmbedImage samples at most 128x128 pixels so large photos cost the same as thumbnails
func (e *ColorLayoutEmbedding) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	vec := make([]float32, imageEmbDims)
	if w == 0 || h == 0 {
		return vec, nil
	}

	stepX := max(1, w/128)
	stepY := max(1, h/128)

	var cellSum [layoutGrid * layoutGrid][3]float64
	var cellN [layoutGrid * layoutGrid]float64
	hist := vec[layoutGrid*layoutGrid*3:]

	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := b.Min.X; x < b.Max.X; x += stepX {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue // fully transparent
			}

			cell := ((y-b.Min.Y)*layoutGrid/h)*layoutGrid + (x-b.Min.X)*layoutGrid/w
			l, la, lb := c.Lab()
			cellSum[cell][0] += l
			cellSum[cell][1] += la
			cellSum[cell][2] += lb
			cellN[cell]++

			hue, sat, val := c.Hsv()
			hist[bin(hue/360, hueBins)] += float32(sat)
			hist[hueBins+bin(val, valueBins)]++
			hist[hueBins+valueBins+bin(sat, satBins)]++
		}
	}

	for i := range cellSum {
		if cellN[i] == 0 {
			continue
		}
		for j := 0; j < 3; j++ {
			vec[i*3+j] = float32(cellSum[i][j] / cellN[i])
		}
	}

	// histograms are scaled to the same total as the layout block
	var total float64
	for _, v := range hist {
		total += float64(v)
	}
	if total > 0 {
		scale := float32(3 / total)
		for i := range hist {
			hist[i] *= scale
		}
	}

	normalize(vec)
	return vec, nil
}

func bin(v float64, n int) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	i := int(v * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
