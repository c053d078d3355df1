package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Resize re-encodes a JPEG frame at the requested dimensions. A frame
// already at the target size is returned unchanged.
func Resize(data []byte, width, height int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("resize: decode: %w", err)
	}
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return data, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, nil); err != nil {
		return nil, fmt.Errorf("resize: encode: %w", err)
	}
	return buf.Bytes(), nil
}
