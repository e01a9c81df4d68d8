// Package fingerprint detects visual change in a message area between
// polls. It is a cheap pre-filter: a false "changed" only costs an extra
// read, a hash collision is caught downstream by the message anchor.
package fingerprint

import (
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"golang.org/x/image/draw"
)

// DefaultThreshold is the Hamming distance above which two hashes count as
// different. 8 out of 64 bits tolerates minor rendering noise.
const DefaultThreshold = 8

const hashEdge = 8

// Fingerprint summarizes the visible message area: a 64-bit average hash of
// the pixels plus the Y of the bottom-most incoming avatar. Zero AvatarY
// means no avatar was visible.
type Fingerprint struct {
	Hash    string `json:"hash"`
	AvatarY int    `json:"avatar_y"`
}

// Empty reports whether no baseline has been recorded.
func (f Fingerprint) Empty() bool {
	return f.Hash == ""
}

// Hash computes the average hash of an image: downscale to 8x8 grayscale,
// then one bit per cell for above-mean luminance. Returned as 16 hex chars.
func Hash(img image.Image) string {
	small := image.NewGray(image.Rect(0, 0, hashEdge, hashEdge))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum int
	for _, p := range small.Pix {
		sum += int(p)
	}
	mean := uint8(sum / (hashEdge * hashEdge))

	var h uint64
	for i, p := range small.Pix {
		if p > mean {
			h |= 1 << uint(i)
		}
	}
	return fmt.Sprintf("%016x", h)
}

// Distance is the Hamming distance between two hex hashes.
func Distance(a, b string) (int, error) {
	ha, err := strconv.ParseUint(a, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad hash %q: %v", a, err)
	}
	hb, err := strconv.ParseUint(b, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad hash %q: %v", b, err)
	}
	return bits.OnesCount64(ha ^ hb), nil
}

// Changed reports whether current differs from the baseline. A missing or
// unparsable baseline always counts as changed, biasing toward reading.
func Changed(baseline, current Fingerprint, threshold int) bool {
	if baseline.Empty() || current.Empty() {
		return true
	}
	d, err := Distance(baseline.Hash, current.Hash)
	if err != nil {
		return true
	}
	if d >= threshold {
		return true
	}
	return baseline.AvatarY != current.AvatarY
}
