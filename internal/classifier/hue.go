// Package classifier provides the default traffic-light colour classifier:
// a hue histogram over the crop around the projected light.
package classifier

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/banshee-data/tldetector/internal/perception"
)

// HueClassifier labels a crop by counting bright, saturated pixels in the
// red, yellow and green hue bands. It is stateless and safe for concurrent
// use.
type HueClassifier struct {
	// SampleWidth and SampleHeight set the size the crop is rescaled to
	// before counting, bounding the per-frame cost.
	SampleWidth  int
	SampleHeight int

	// MinSaturation and MinValue (0..1) select lit pixels.
	MinSaturation float64
	MinValue      float64

	// MinFraction is the share of sampled pixels the winning band must
	// hold; below it the result is Unknown.
	MinFraction float64
}

// NewHueClassifier returns a classifier with defaults tuned for the
// simulator's light housings.
func NewHueClassifier() *HueClassifier {
	return &HueClassifier{
		SampleWidth:   32,
		SampleHeight:  72,
		MinSaturation: 0.5,
		MinValue:      0.5,
		MinFraction:   0.02,
	}
}

// Hue bands in degrees.
const (
	redLow     = 340.0
	redHigh    = 20.0
	yellowLow  = 35.0
	yellowHigh = 70.0
	greenLow   = 80.0
	greenHigh  = 180.0
)

const (
	bandRed = iota
	bandYellow
	bandGreen
	bandCount
)

var bandColors = [bandCount]perception.Color{perception.Red, perception.Yellow, perception.Green}

// Classify implements perception.Classifier.
func (c *HueClassifier) Classify(img image.Image) perception.Color {
	if img == nil || img.Bounds().Empty() {
		return perception.Unknown
	}
	sample := c.resample(img)

	var counts [bandCount]int
	b := sample.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if band, ok := c.band(sample.RGBAAt(x, y)); ok {
				counts[band]++
			}
		}
	}

	best, bestCount := -1, 0
	for i, n := range counts {
		if n > bestCount {
			best, bestCount = i, n
		}
	}
	total := b.Dx() * b.Dy()
	if best < 0 || float64(bestCount)/float64(total) < c.MinFraction {
		return perception.Unknown
	}
	return bandColors[best]
}

func (c *HueClassifier) resample(img image.Image) *image.RGBA {
	w, h := c.SampleWidth, c.SampleHeight
	src := img.Bounds()
	if w <= 0 || h <= 0 || (src.Dx() <= w && src.Dy() <= h) {
		dst := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
		xdraw.Draw(dst, dst.Bounds(), img, src.Min, xdraw.Src)
		return dst
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, src, xdraw.Src, nil)
	return dst
}

// band reports which hue band a pixel falls in, if it is lit.
func (c *HueClassifier) band(px color.RGBA) (int, bool) {
	h, s, v := hsv(px)
	if s < c.MinSaturation || v < c.MinValue {
		return 0, false
	}
	switch {
	case h >= redLow || h < redHigh:
		return bandRed, true
	case h >= yellowLow && h < yellowHigh:
		return bandYellow, true
	case h >= greenLow && h < greenHigh:
		return bandGreen, true
	}
	return 0, false
}

// hsv converts an opaque RGBA pixel to hue (degrees), saturation and value.
func hsv(px color.RGBA) (h, s, v float64) {
	r, g, b := float64(px.R)/255, float64(px.G)/255, float64(px.B)/255
	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	delta := maxC - minC

	v = maxC
	if maxC > 0 {
		s = delta / maxC
	}
	if delta == 0 {
		return 0, s, v
	}
	switch maxC {
	case r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}
