// Package placeholder produces BlurHash strings for media records. A
// BlurHash is a short text placeholder a client can render while the real
// variant loads; it is cosmetic, so every entry point here is allowed to
// fail without taking the pipeline down.
package placeholder

import (
	"fmt"
	"image"

	"github.com/buckket/go-blurhash"
	"github.com/disintegration/imaging"
)

const (
	xComponents = 4
	yComponents = 3

	// Encoding works on a small thumbnail; BlurHash discards detail anyway
	// and full-size inputs just burn CPU.
	encodeWidth = 64
)

// Encoder computes BlurHash placeholders.
type Encoder struct{}

// NewEncoder creates an encoder with 4x3 components.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode returns the BlurHash for an image.
func (e *Encoder) Encode(img image.Image) (string, error) {
	small := imaging.Resize(img, encodeWidth, 0, imaging.Box)
	if small.Bounds().Dy() == 0 {
		return "", fmt.Errorf("placeholder: empty image")
	}
	hash, err := blurhash.Encode(xComponents, yComponents, small)
	if err != nil {
		return "", fmt.Errorf("placeholder: encode: %w", err)
	}
	return hash, nil
}

// EncodeFile returns the BlurHash for the image at path.
func (e *Encoder) EncodeFile(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("placeholder: open %s: %w", path, err)
	}
	return e.Encode(img)
}
