package rimage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/lmittmann/ppm"
	"github.com/xfmoulet/qoi"
	"go.viam.com/test"
)

func TestWriteImageToFilePNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(2, 1, color.NRGBA{G: 128, B: 64, A: 255})

	path := filepath.Join(t.TempDir(), "rgb_image.png")
	test.That(t, WriteImageToFile(path, img), test.ShouldBeNil)

	read, err := NewImageFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Bounds(), test.ShouldResemble, img.Bounds())
	r, g, b, a := read.At(2, 1).RGBA()
	test.That(t, []uint32{r >> 8, g >> 8, b >> 8, a >> 8}, test.ShouldResemble, []uint32{0, 128, 64, 255})
}

func TestNewImageFromFilePPM(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	path := filepath.Join(t.TempDir(), "color_1.ppm")
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ppm.Encode(f, img), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)

	read, err := NewImageFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Bounds().Dx(), test.ShouldEqual, 2)
	r, g, b, _ := read.At(1, 1).RGBA()
	test.That(t, []uint32{r >> 8, g >> 8, b >> 8}, test.ShouldResemble, []uint32{10, 20, 30})
}

func TestNewImageFromFileQOI(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	img.Set(3, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	path := filepath.Join(t.TempDir(), "color_1.qoi")
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, qoi.Encode(f, img), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)

	read, err := NewImageFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Bounds().Dx(), test.ShouldEqual, 4)
	r, g, b, _ := read.At(3, 0).RGBA()
	test.That(t, []uint32{r >> 8, g >> 8, b >> 8}, test.ShouldResemble, []uint32{1, 2, 3})
}

func TestImageFileErrors(t *testing.T) {
	_, err := NewImageFromFile(filepath.Join(t.TempDir(), "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to open image")

	err = WriteImageToFile(filepath.Join(t.TempDir(), "image.unknown"), image.NewGray(image.Rect(0, 0, 1, 1)))
	test.That(t, err, test.ShouldNotBeNil)
}
