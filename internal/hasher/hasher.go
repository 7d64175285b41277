// Package hasher computes the hashes the media pipeline keys on: a content
// hash identifying exact bytes, and a perceptual hash identifying visually
// identical images across re-encodes.
package hasher

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
)

// ContentHash returns the hex sha256 of the raw bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Perceptual computes an 8x8 average hash of the image: downscale to 8x8,
// convert to grayscale, then emit one bit per pixel depending on whether it
// is at or above the mean luminance. The 64 bits are returned as 16 hex
// characters. Two images that differ only by encoding or minor compression
// artifacts hash identically.
func Perceptual(img image.Image) string {
	small := imaging.Grayscale(imaging.Resize(img, 8, 8, imaging.Lanczos))

	var pixels [64]uint8
	var total int
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			g := color.GrayModel.Convert(small.At(x, y)).(color.Gray)
			pixels[y*8+x] = g.Y
			total += int(g.Y)
		}
	}
	avg := uint8(total / 64)

	var bits uint64
	for _, p := range pixels {
		bits <<= 1
		if p >= avg {
			bits |= 1
		}
	}
	return fmt.Sprintf("%016x", bits)
}

// PerceptualFile opens the image at path and returns its perceptual hash.
func PerceptualFile(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	return Perceptual(img), nil
}

// DedupHash returns the hash used for duplicate detection: perceptual for
// images, content hash for everything else. Images that fail to decode fall
// back to the content hash so a corrupt upload still gets a stable identity.
func DedupHash(data []byte, mime string) string {
	if strings.HasPrefix(mime, "image/") {
		if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
			return Perceptual(img)
		}
	}
	return ContentHash(data)
}
