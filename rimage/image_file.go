package rimage

import (
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	_ "github.com/lmittmann/ppm" // register ppm
	"github.com/pkg/errors"
	_ "github.com/xfmoulet/qoi" // register qoi
)

// NewImageFromFile reads an image from disk. Any format registered with the image package
// works, including png, jpeg, bmp, ppm and qoi.
func NewImageFromFile(fn string) (image.Image, error) {
	img, err := imaging.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image %q", fn)
	}
	return img, nil
}

// WriteImageToFile writes an image to disk, picking the format from the file extension.
// PNG output is lossless and keeps 16-bit grayscale intact.
func WriteImageToFile(path string, img image.Image) error {
	return imaging.Save(img, path, imaging.PNGCompressionLevel(png.DefaultCompression))
}
