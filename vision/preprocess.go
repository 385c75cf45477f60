// Package vision prepares uploaded source images before they are sent to a
// vision-capable model.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrInvalidImage = errors.New("vision: invalid image data")
	ErrEmptyImage   = errors.New("vision: empty image data")
)

// DefaultMaxSide is the longest edge kept before an upload is downscaled.
// Vision models resample internally; sending more pixels only costs bandwidth.
const DefaultMaxSide = 1536

// Prepared is an upload ready for the description stage.
type Prepared struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
	Resized   bool
}

// DecodeImage decodes PNG, JPEG, GIF or WebP data.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, format, nil
}

// PrepareUpload downscales images whose longest side exceeds maxSide and
// re-encodes them as PNG. Smaller images pass through untouched, keeping
// their declared media type.
//
// Decode failures are returned so the caller can decide whether to send the
// original bytes anyway.
func PrepareUpload(data []byte, mediaType string, maxSide int) (Prepared, error) {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}

	img, _, err := DecodeImage(data)
	if err != nil {
		return Prepared{}, err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxSide && height <= maxSide {
		return Prepared{Data: data, MediaType: mediaType, Width: width, Height: height}, nil
	}

	resized := ScaleToFit(img, maxSide)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return Prepared{}, fmt.Errorf("vision: failed to encode resized image: %w", err)
	}

	rb := resized.Bounds()
	return Prepared{
		Data:      buf.Bytes(),
		MediaType: "image/png",
		Width:     rb.Dx(),
		Height:    rb.Dy(),
		Resized:   true,
	}, nil
}

// ScaleToFit scales img so its longest side equals maxSide, preserving
// aspect ratio, using Catmull-Rom resampling.
func ScaleToFit(img image.Image, maxSide int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	scale := float64(maxSide) / float64(max(width, height))
	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
