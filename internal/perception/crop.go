package perception

import (
	"image"
	"image/draw"

	"github.com/banshee-data/tldetector/internal/geometry"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// CropAround returns the window of img centred on px, clamped to the image
// bounds. It returns nil when the window falls entirely outside the image.
// Pixel coordinates are relative to the image's Bounds().Min.
func CropAround(img image.Image, px geometry.Pixel, halfWidth, halfHeight int) image.Image {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	r := image.Rect(px.X-halfWidth, px.Y-halfHeight, px.X+halfWidth, px.Y+halfHeight).
		Add(b.Min).
		Intersect(b)
	if r.Empty() {
		return nil
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
