package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoders
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/sethvargo/go-retry"
)

// maxAnalysisSide bounds the grayscale plane used for texture measures
const maxAnalysisSide = 256

// imageLoader decodes inline base64 images and fetches remote ones
type imageLoader struct {
	client *http.Client
	limit  int64
}

func newImageLoader(limit int64, timeout time.Duration) *imageLoader {
	if limit <= 0 {
		limit = 10 << 20
	}
	return &imageLoader{
		client: &http.Client{Timeout: timeout},
		limit:  limit,
	}
}

// load prefers inline data over a URL
func (l *imageLoader) load(ctx context.Context, data, url string) (image.Image, error) {
	switch {
	case data != "":
		if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
			data = data[i+len(";base64,"):]
		}
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 image: %w", err)
		}
		return decodeImage(raw)
	case url != "":
		raw, err := l.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		return decodeImage(raw)
	}
	return nil, errors.New("image data or URL is required")
}

func (l *imageLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("failed to fetch image: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("image server returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("image server returned %d", resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, l.limit+1))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("failed to read image: %w", err))
		}
		if int64(len(body)) > l.limit {
			return fmt.Errorf("image exceeds %d bytes", l.limit)
		}
		return nil
	})
	return body, err
}

func decodeImage(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("image is empty")
	}
	return img, nil
}

// DominantColor is one cluster of the image palette
type DominantColor struct {
	RGB        [3]int  `json:"rgb"`
	Hex        string  `json:"hex"`
	ColorName  string  `json:"color_name"`
	Percentage float64 `json:"percentage"`
	Rank       int     `json:"rank"`
}

// samplePixels returns up to roughly limit opaque pixels on a regular grid
func samplePixels(img image.Image, limit int) []colorful.Color {
	b := img.Bounds()
	step := int(math.Ceil(math.Sqrt(float64(b.Dx()*b.Dy()) / float64(limit))))
	if step < 1 {
		step = 1
	}

	pixels := make([]colorful.Color, 0, limit)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			if c, ok := colorful.MakeColor(img.At(x, y)); ok {
				pixels = append(pixels, c)
			}
		}
	}
	return pixels
}

// dominantColors clusters pixels with k-means in Lab space. Centers start
// at evenly spaced samples so results are repeatable.
func dominantColors(pixels []colorful.Color, k int) []DominantColor {
	if len(pixels) == 0 {
		return []DominantColor{}
	}
	if k > len(pixels) {
		k = len(pixels)
	}

	centers := make([]colorful.Color, k)
	for i := range centers {
		centers[i] = pixels[i*len(pixels)/k]
	}
	labels := make([]int, len(pixels))

	for iter := 0; iter < 10; iter++ {
		changed := false
		for i, p := range pixels {
			best, bestD := 0, math.MaxFloat64
			for j, c := range centers {
				if d := p.DistanceLab(c); d < bestD {
					best, bestD = j, d
				}
			}
			if labels[i] != best || iter == 0 {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][3]float64, k)
		counts := make([]int, k)
		for i, p := range pixels {
			l := labels[i]
			sums[l][0] += p.R
			sums[l][1] += p.G
			sums[l][2] += p.B
			counts[l]++
		}
		for j := range centers {
			if counts[j] > 0 {
				n := float64(counts[j])
				centers[j] = colorful.Color{R: sums[j][0] / n, G: sums[j][1] / n, B: sums[j][2] / n}
			}
		}
	}

	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	out := make([]DominantColor, 0, k)
	for j, c := range centers {
		if counts[j] == 0 {
			continue
		}
		r, g, bl := c.Clamped().RGB255()
		out = append(out, DominantColor{
			RGB:        [3]int{int(r), int(g), int(bl)},
			Hex:        c.Clamped().Hex(),
			ColorName:  colorName(int(r), int(g), int(bl)),
			Percentage: float64(counts[j]) / float64(len(pixels)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage > out[j].Percentage })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// colorPalette lists the names of colors covering more than 5% of the image
func colorPalette(colors []DominantColor) []string {
	var names []string
	for _, c := range colors {
		if c.Percentage > 0.05 {
			names = append(names, c.ColorName)
		}
	}
	return uniq(names)
}

func colorName(r, g, b int) string {
	switch {
	case r > 200 && g > 200 && b > 200:
		return "white"
	case r < 50 && g < 50 && b < 50:
		return "black"
	case r > 150 && g > 150 && b < 100:
		return "yellow"
	case r > 150 && g < 100 && b > 150:
		return "purple"
	case r < 100 && g > 150 && b > 150:
		return "cyan"
	case r > g && r > b:
		if r > 150 {
			return "red"
		}
		return "dark_red"
	case g > r && g > b:
		if g > 150 {
			return "green"
		}
		return "dark_green"
	case b > r && b > g:
		if b > 150 {
			return "blue"
		}
		return "dark_blue"
	case r > 100 && g > 100 && b > 100:
		return "gray"
	}
	return "unknown"
}

// Histogram bin counts for hue, saturation and value
const (
	histHue = 18
	histSat = 16
	histVal = 16
)

// colorHistogram returns per-channel normalized HSV histograms, concatenated
func colorHistogram(pixels []colorful.Color) []float64 {
	hist := make([]float64, histHue+histSat+histVal)
	if len(pixels) == 0 {
		return hist
	}
	for _, p := range pixels {
		h, s, v := p.Hsv()
		hist[binIndex(h/360, histHue)]++
		hist[histHue+binIndex(s, histSat)]++
		hist[histHue+histSat+binIndex(v, histVal)]++
	}
	n := float64(len(pixels))
	for i := range hist {
		hist[i] /= n
	}
	return hist
}

func binIndex(v float64, n int) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	i := int(v * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// histogramCorrelation is the Pearson correlation of two histograms
func histogramCorrelation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	ma, mb := meanF(a), meanF(b)
	var num, da, db float64
	for i := range a {
		x, y := a[i]-ma, b[i]-mb
		num += x * y
		da += x * x
		db += y * y
	}
	if da == 0 || db == 0 {
		if da == db {
			return 1
		}
		return 0
	}
	return num / math.Sqrt(da*db)
}

func meanF(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// grayPlane is a downscaled luminance image in the 0-255 range
type grayPlane struct {
	w, h int
	px   []float64
}

func newGrayPlane(img image.Image) grayPlane {
	b := img.Bounds()
	scale := math.Max(1, math.Max(float64(b.Dx()), float64(b.Dy()))/maxAnalysisSide)
	w := max(1, int(float64(b.Dx())/scale))
	h := max(1, int(float64(b.Dy())/scale))

	g := grayPlane{w: w, h: h, px: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx := b.Min.X + int(float64(x)*scale)
			sy := b.Min.Y + int(float64(y)*scale)
			r, gg, bb, _ := img.At(sx, sy).RGBA()
			g.px[y*w+x] = (0.299*float64(r) + 0.587*float64(gg) + 0.114*float64(bb)) / 257
		}
	}
	return g
}

func (g grayPlane) at(x, y int) float64 { return g.px[y*g.w+x] }

// TextureFeatures are statistical sharpness and edge measures
type TextureFeatures struct {
	Sharpness         float64 `json:"sharpness"`
	TextureComplexity float64 `json:"texture_complexity"`
	EdgeDensity       float64 `json:"edge_density"`
}

// textureFeatures computes the Laplacian variance, the deviation of an
// 8-neighbour contrast filter and the share of strong Sobel edges
func textureFeatures(g grayPlane) TextureFeatures {
	if g.w < 3 || g.h < 3 {
		return TextureFeatures{}
	}

	var lap, contrast []float64
	edges, total := 0, 0
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			c := g.at(x, y)
			lap = append(lap, g.at(x-1, y)+g.at(x+1, y)+g.at(x, y-1)+g.at(x, y+1)-4*c)

			var ring float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx != 0 || dy != 0 {
						ring += g.at(x+dx, y+dy)
					}
				}
			}
			contrast = append(contrast, 8*c-ring)

			gx := g.at(x+1, y-1) + 2*g.at(x+1, y) + g.at(x+1, y+1) - g.at(x-1, y-1) - 2*g.at(x-1, y) - g.at(x-1, y+1)
			gy := g.at(x-1, y+1) + 2*g.at(x, y+1) + g.at(x+1, y+1) - g.at(x-1, y-1) - 2*g.at(x, y-1) - g.at(x+1, y-1)
			if math.Hypot(gx, gy) > 150 {
				edges++
			}
			total++
		}
	}

	return TextureFeatures{
		Sharpness:         variance(lap),
		TextureComplexity: math.Sqrt(variance(contrast)),
		EdgeDensity:       float64(edges) / float64(total),
	}
}

func variance(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := meanF(v)
	var s float64
	for _, x := range v {
		s += (x - m) * (x - m)
	}
	return s / float64(len(v))
}

// PatternAnalysis classifies the surface pattern from edge density
type PatternAnalysis struct {
	PatternType       string  `json:"pattern_type"`
	TextureScore      float64 `json:"texture_score"`
	PatternConfidence float64 `json:"pattern_confidence"`
}

func detectPattern(t TextureFeatures) PatternAnalysis {
	p := PatternAnalysis{TextureScore: math.Min(1, t.Sharpness/1000)}
	switch {
	case t.EdgeDensity > 0.3:
		p.PatternType, p.PatternConfidence = "striped", 0.8
	case t.EdgeDensity > 0.15:
		p.PatternType, p.PatternConfidence = "textured", 0.7
	case t.EdgeDensity > 0.05:
		p.PatternType, p.PatternConfidence = "patterned", 0.6
	default:
		p.PatternType, p.PatternConfidence = "solid", 0.9
	}
	return p
}

// Composition describes layout and exposure
type Composition struct {
	AspectRatio    float64 `json:"aspect_ratio"`
	BrightnessMean float64 `json:"brightness_mean"`
	BrightnessStd  float64 `json:"brightness_std"`
	ContrastRatio  float64 `json:"contrast_ratio"`
	ImageQuality   string  `json:"image_quality"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
}

func analyzeComposition(img image.Image, g grayPlane) Composition {
	b := img.Bounds()
	c := Composition{
		AspectRatio:    float64(b.Dx()) / float64(b.Dy()),
		BrightnessMean: meanF(g.px),
		Width:          b.Dx(),
		Height:         b.Dy(),
	}
	c.BrightnessStd = math.Sqrt(variance(g.px))
	if c.BrightnessMean > 0 {
		c.ContrastRatio = c.BrightnessStd / c.BrightnessMean
	}
	switch {
	case c.ContrastRatio > 0.3:
		c.ImageQuality = "high"
	case c.ContrastRatio > 0.1:
		c.ImageQuality = "medium"
	default:
		c.ImageQuality = "low"
	}
	return c
}

func compositionSimilarity(a, b Composition) float64 {
	aspect := math.Abs(a.AspectRatio - b.AspectRatio)
	brightness := math.Abs(a.BrightnessMean-b.BrightnessMean) / 255
	return 1 - math.Min(1, (aspect+brightness)/2)
}

func similarityCategory(s float64) string {
	switch {
	case s >= 0.9:
		return "very_high"
	case s >= 0.7:
		return "high"
	case s >= 0.5:
		return "medium"
	case s >= 0.3:
		return "low"
	}
	return "very_low"
}

// PoseEstimate is a coarse framing-based guess at the subject pose
type PoseEstimate struct {
	EstimatedPose string  `json:"estimated_pose"`
	Framing       string  `json:"framing"`
	AspectRatio   float64 `json:"aspect_ratio"`
	Confidence    float64 `json:"confidence"`
}

func estimatePose(c Composition) PoseEstimate {
	p := PoseEstimate{AspectRatio: c.AspectRatio}
	switch {
	case c.AspectRatio < 0.8:
		p.EstimatedPose, p.Framing, p.Confidence = "standing", "full_body", 0.6
	case c.AspectRatio > 1.25:
		p.EstimatedPose, p.Framing, p.Confidence = "seated_or_flat_lay", "landscape", 0.4
	default:
		p.EstimatedPose, p.Framing, p.Confidence = "upper_body", "portrait", 0.5
	}
	return p
}

// StyleClassifier maps visual features to style scores
type StyleClassifier interface {
	Classify(colors []DominantColor, pattern PatternAnalysis, comp Composition) map[string]float64
}

// VisualStyleRules scores styles from colorfulness, darkness and pattern
type VisualStyleRules struct{}

// Classify returns a score in [0,1] for each style category
func (VisualStyleRules) Classify(colors []DominantColor, pattern PatternAnalysis, comp Composition) map[string]float64 {
	var sat, dark float64
	for _, c := range colors {
		cc := colorful.Color{R: float64(c.RGB[0]) / 255, G: float64(c.RGB[1]) / 255, B: float64(c.RGB[2]) / 255}
		_, s, v := cc.Hsv()
		sat += s * c.Percentage
		dark += (1 - v) * c.Percentage
	}
	variety := math.Min(1, float64(len(colorPalette(colors)))/5)
	solid := 0.0
	if pattern.PatternType == "solid" {
		solid = 1
	}
	contrast := math.Min(1, comp.ContrastRatio)

	return map[string]float64{
		"minimalist": clamp01(0.5*solid + 0.3*(1-sat) + 0.2*(1-variety)),
		"formal":     clamp01(0.5*dark + 0.3*solid + 0.2*(1-sat)),
		"business":   clamp01(0.4*dark + 0.3*solid + 0.3*(1-variety)),
		"classic":    clamp01(0.4*(1-sat) + 0.3*solid + 0.3*contrast),
		"casual":     clamp01(0.4*(1-dark) + 0.3*sat + 0.3*(1-solid)),
		"trendy":     clamp01(0.4*sat + 0.3*contrast + 0.3*variety),
		"bohemian":   clamp01(0.4*variety + 0.3*(1-solid) + 0.3*sat),
		"vintage":    clamp01(0.4*(1-contrast) + 0.3*(1-sat) + 0.3*(1-solid)),
	}
}

type styleScore struct {
	Style string  `json:"style"`
	Score float64 `json:"score"`
}

func topStyles(scores map[string]float64, n int) []styleScore {
	out := make([]styleScore, 0, len(scores))
	for s, v := range scores {
		out = append(out, styleScore{Style: s, Score: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Style < out[j].Style
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
