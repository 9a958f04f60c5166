package replay

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// LoadImage decodes a camera frame from disk. PNG, JPEG, BMP and TIFF
// are supported.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame image %s: %w", path, err)
	}
	tracef("decoded %s frame %s (%dx%d)", format, path, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}
