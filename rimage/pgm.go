package rimage

import (
	"image/color"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spakin/netpbm"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// WritePGM16 writes the encoded depth map as a binary (P5) portable graymap with a maxval of
// 65535.
func WritePGM16(w io.Writer, em *EncodedDepthMap) error {
	return netpbm.Encode(w, em.ToGray16(), &netpbm.EncodeOptions{
		Format:   netpbm.PGM,
		MaxValue: MaxEncodedDepth,
	})
}

// WritePGM16ToFile writes the encoded depth map to the named file.
func WritePGM16ToFile(fn string, em *EncodedDepthMap) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WritePGM16(f, em)
}

// ReadPGM16 reads a 16-bit portable graymap as written by WritePGM16.
func ReadPGM16(r io.Reader) (*EncodedDepthMap, error) {
	img, err := netpbm.Decode(r, &netpbm.DecodeOptions{Target: netpbm.PGM, Exact: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pgm")
	}
	if img.MaxValue() != MaxEncodedDepth {
		return nil, errors.Errorf("expected a 16-bit pgm, got maxval %d", img.MaxValue())
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || width >= maxDepthMapSide || height <= 0 || height >= maxDepthMapSide {
		return nil, errors.Errorf("bad width or height for pgm %v %v", width, height)
	}

	em := NewEmptyEncodedDepthMap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g, _ := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			em.Set(x, y, g.Y)
		}
	}
	return em, nil
}

// ReadPGM16FromFile reads a 16-bit portable graymap file.
func ReadPGM16FromFile(fn string) (*EncodedDepthMap, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return ReadPGM16(f)
}
