package imgproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

var (
	extByFormat = map[string]string{
		"jpeg": ".jpg",
		"gif":  ".gif",
		"png":  ".png",
	}
	encodeByFormat = map[string]imaging.Format{
		"jpeg": imaging.JPEG,
		"gif":  imaging.GIF,
		"png":  imaging.PNG,
	}
)

// Resizer scales uploaded images down to fit inside the configured bounds,
// preserving aspect ratio. Images already inside the bounds pass through
// byte-identical.
type Resizer struct {
	maxWidth  int
	maxHeight int
}

func NewResizer(maxWidth, maxHeight int) *Resizer {
	return &Resizer{maxWidth: maxWidth, maxHeight: maxHeight}
}

// Fit returns the processed bytes and the canonical extension for the
// detected format.
func (r *Resizer) Fit(data []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	ext, ok := extByFormat[format]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	b := img.Bounds()
	if b.Dx() <= r.maxWidth && b.Dy() <= r.maxHeight {
		return data, ext, nil
	}

	resized := imaging.Fit(img, r.maxWidth, r.maxHeight, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, encodeByFormat[format]); err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), ext, nil
}
