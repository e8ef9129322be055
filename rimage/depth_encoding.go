package rimage

import (
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/pkg/errors"
)

const (
	// SentinelDepth is the raw distance, in meters, at or above which a reading means "no return".
	SentinelDepth = 1e9
	// DefaultDepthScale converts meters to millimeters.
	DefaultDepthScale = 1000.0
	// MaxEncodedDepth is the largest value an encoded depth can hold.
	MaxEncodedDepth = math.MaxUint16
)

// OverflowPolicy decides what happens to scaled depths that do not fit in 16 bits.
type OverflowPolicy int

const (
	// OverflowSaturate clamps out of range depths to MaxEncodedDepth.
	OverflowSaturate OverflowPolicy = iota
	// OverflowWrap keeps the low 16 bits of the truncated value, like a plain integer narrowing.
	OverflowWrap
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowSaturate:
		return "saturate"
	case OverflowWrap:
		return "wrap"
	}
	return "unknown"
}

// OverflowPolicyFromString parses "saturate" or "wrap". The empty string is saturate.
func OverflowPolicyFromString(s string) (OverflowPolicy, error) {
	switch strings.ToLower(s) {
	case "", "saturate":
		return OverflowSaturate, nil
	case "wrap":
		return OverflowWrap, nil
	}
	return OverflowSaturate, errors.Errorf("unknown depth overflow policy %q", s)
}

// EncodedDepthMap is a row-major grid of depths in millimeters. Zero means no valid return.
type EncodedDepthMap struct {
	width  int
	height int

	data []uint16
}

// NewEmptyEncodedDepthMap returns a zeroed encoded depth map.
func NewEmptyEncodedDepthMap(width, height int) *EncodedDepthMap {
	return &EncodedDepthMap{
		width:  width,
		height: height,
		data:   make([]uint16, width*height),
	}
}

// Width returns the number of columns.
func (em *EncodedDepthMap) Width() int {
	return em.width
}

// Height returns the number of rows.
func (em *EncodedDepthMap) Height() int {
	return em.height
}

// GetDepth returns the encoded depth at (x, y).
func (em *EncodedDepthMap) GetDepth(x, y int) uint16 {
	return em.data[(y*em.width)+x]
}

// Set stores an encoded depth at (x, y).
func (em *EncodedDepthMap) Set(x, y int, val uint16) {
	em.data[(y*em.width)+x] = val
}

// Values returns the backing row-major slice.
func (em *EncodedDepthMap) Values() []uint16 {
	return em.data
}

// ToGray16 converts the encoded map to a 16-bit grayscale image.
func (em *EncodedDepthMap) ToGray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, em.width, em.height))
	for y := 0; y < em.height; y++ {
		for x := 0; x < em.width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: em.GetDepth(x, y)})
		}
	}
	return img
}

// EncodeDepthValue converts one raw depth to its fixed point value. Sentinel, NaN and
// negative readings become 0; everything else is truncated towards zero after scaling.
func EncodeDepthValue(raw, scale float64, policy OverflowPolicy) uint16 {
	if raw >= SentinelDepth || math.IsNaN(raw) || raw < 0 {
		return 0
	}
	scaled := math.Trunc(raw * scale)
	if scaled < 0 || math.IsNaN(scaled) {
		return 0
	}
	if scaled <= MaxEncodedDepth {
		return uint16(scaled)
	}
	if policy == OverflowWrap && scaled < math.MaxInt64 {
		return uint16(int64(scaled))
	}
	return MaxEncodedDepth
}

// EncodeDepth converts a metric depth map into an encoded map of the same size.
func EncodeDepth(dm *DepthMap, scale float64, policy OverflowPolicy) *EncodedDepthMap {
	out := NewEmptyEncodedDepthMap(dm.width, dm.height)
	for i, raw := range dm.data {
		out.data[i] = EncodeDepthValue(float64(raw), scale, policy)
	}
	return out
}
