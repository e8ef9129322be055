// Package rimage holds the raster types used by the dumper: metric float depth maps, their
// millimeter encoding, and helpers to read and write them.
package rimage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// depthMapMagic prefixes the binary depth map file format ("DEPTHF32" little endian).
const depthMapMagic = 0x32334648_54504544

// maxDepthMapSide bounds the width and height accepted when reading a depth map.
const maxDepthMapSide = 100000

// DepthMap is a row-major grid of distances in meters, as published by a depth camera in
// 32FC1 encoding. Values at or above SentinelDepth mean the sensor had no valid return.
type DepthMap struct {
	width  int
	height int

	data []float32
}

// NewEmptyDepthMap returns a zeroed depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float32, width*height),
	}
}

// NewDepthMapFromData wraps row-major data into a depth map. The data is not copied.
func NewDepthMapFromData(width, height int, data []float32) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad width or height for depth map %v %v", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth map of %dx%d needs %d values, got %d", width, height, width*height, len(data))
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// Width returns the number of columns.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle covered by the depth map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// GetDepth returns the depth at (x, y).
func (dm *DepthMap) GetDepth(x, y int) float32 {
	return dm.data[dm.kxy(x, y)]
}

// Set stores a depth at (x, y).
func (dm *DepthMap) Set(x, y int, val float32) {
	dm.data[dm.kxy(x, y)] = val
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// MinMax returns the smallest and largest valid depths, skipping zeros and sentinels. A map
// without valid depths yields (+Inf, 0).
func (dm *DepthMap) MinMax() (float32, float32) {
	min := float32(math.Inf(1))
	max := float32(0)

	for _, z := range dm.data {
		if z <= 0 || z >= SentinelDepth || math.IsNaN(float64(z)) {
			continue
		}
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}

	return min, max
}

// ParseDepthMap reads a depth map file. Files ending in .gz are decompressed.
func ParseDepthMap(fn string) (dm *DepthMap, err error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var r io.Reader = f
	if filepath.Ext(fn) == ".gz" {
		gz, gzErr := gzip.NewReader(f)
		if gzErr != nil {
			return nil, gzErr
		}
		defer func() {
			err = multierr.Combine(err, gz.Close())
		}()
		r = gz
	}

	return ReadDepthMap(bufio.NewReader(r))
}

// ReadDepthMap reads a depth map in the binary format written by WriteTo.
func ReadDepthMap(r io.Reader) (*DepthMap, error) {
	var header [3]uint64
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "failed to read depth map header")
	}
	if header[0] != depthMapMagic {
		return nil, errors.Errorf("not a depth map file (magic %#x)", header[0])
	}

	width, height := int(header[1]), int(header[2])
	if width <= 0 || width >= maxDepthMapSide || height <= 0 || height >= maxDepthMapSide {
		return nil, errors.Errorf("bad width or height for depth map %v %v", width, height)
	}

	dm := NewEmptyDepthMap(width, height)
	if err := binary.Read(r, binary.LittleEndian, dm.data); err != nil {
		return nil, errors.Wrapf(err, "failed to read %dx%d depth values", width, height)
	}
	return dm, nil
}

// WriteToFile writes the depth map to a file, gzipped when the name ends in .gz.
func (dm *DepthMap) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	var out io.Writer = f
	if filepath.Ext(fn) == ".gz" {
		gout := gzip.NewWriter(f)
		defer func() {
			err = multierr.Combine(err, gout.Close())
		}()
		out = gout
	}

	return dm.WriteTo(out)
}

// WriteTo writes the depth map in its binary format.
func (dm *DepthMap) WriteTo(out io.Writer) error {
	header := [3]uint64{depthMapMagic, uint64(dm.width), uint64(dm.height)}
	if err := binary.Write(out, binary.LittleEndian, header); err != nil {
		return err
	}
	return binary.Write(out, binary.LittleEndian, dm.data)
}
