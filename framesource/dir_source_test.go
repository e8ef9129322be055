package framesource

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/imagedumper/logging"
	"go.viam.com/imagedumper/rimage"
	"go.viam.com/imagedumper/ros"
	"go.viam.com/imagedumper/timesync"
)

func TestParseFrameFileName(t *testing.T) {
	for _, tc := range []struct {
		name    string
		channel timesync.Channel
		nanos   int64
		ok      bool
	}{
		{"color_1700000000090000000.png", timesync.Color, 1700000000090000000, true},
		{"color_5.PPM", timesync.Color, 5, true},
		{"color_6.qoi", timesync.Color, 6, true},
		{"/tmp/frames/depth_12.dm", timesync.Depth, 12, true},
		{"depth_12.dm.gz", timesync.Depth, 12, true},
		{"annotation_7.json", timesync.Annotation, 7, true},
		{"depth_12.png", 0, 0, false},
		{"color_abc.png", 0, 0, false},
		{"color_-5.png", 0, 0, false},
		{"color_12.png.tmp", 0, 0, false},
		{"infrared_12.png", 0, 0, false},
		{"color12.png", 0, 0, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, ts, ok := ParseFrameFileName(tc.name)
			test.That(t, ok, test.ShouldEqual, tc.ok)
			if tc.ok {
				test.That(t, c, test.ShouldEqual, tc.channel)
				test.That(t, ts.UnixNano(), test.ShouldEqual, tc.nanos)
			}
		})
	}
	test.That(t, FrameFileName(timesync.Depth, time.Unix(0, 42), ".dm"), test.ShouldEqual, "depth_42.dm")
}

func TestLoadFrameFile(t *testing.T) {
	dir := t.TempDir()

	f, err := LoadFrameFile(writeColorFile(t, dir, 90))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Channel, test.ShouldEqual, timesync.Color)
	test.That(t, f.Timestamp.Equal(at(90)), test.ShouldBeTrue)
	img, err := ros.Decoder{}.DecodeColor(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 3)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, 2)

	f, err = LoadFrameFile(writeDepthFile(t, dir, 140))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Channel, test.ShouldEqual, timesync.Depth)
	dm, err := ros.Decoder{}.DecodeDepth(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, float32(2.5))
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, float32(1e9))

	f, err = LoadFrameFile(writeAnnotationFile(t, dir, 100))
	test.That(t, err, test.ShouldBeNil)
	li := f.Payload.(*ros.LogicalImage)
	test.That(t, li.Models[0].Type, test.ShouldEqual, "mug")
	test.That(t, li.Header.Stamp.Time().Equal(at(100)), test.ShouldBeTrue)

	bad := filepath.Join(dir, FrameFileName(timesync.Annotation, at(5), ".json"))
	test.That(t, os.WriteFile(bad, []byte("{"), 0o600), test.ShouldBeNil)
	_, err = LoadFrameFile(bad)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = LoadFrameFile(filepath.Join(dir, "notes.txt"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadFrameFileKeepsColorPrecision(t *testing.T) {
	dir := t.TempDir()

	gray16 := image.NewGray16(image.Rect(0, 0, 2, 1))
	gray16.SetGray16(0, 0, color.Gray16{Y: 0x1234})
	gray16.SetGray16(1, 0, color.Gray16{Y: 65535})
	path := filepath.Join(dir, FrameFileName(timesync.Color, at(90), ".png"))
	test.That(t, rimage.WriteImageToFile(path, gray16), test.ShouldBeNil)

	f, err := LoadFrameFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Payload.(*ros.Image).Encoding, test.ShouldEqual, rimage.EncodingMono16)
	img, err := ros.Decoder{}.DecodeColor(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.At(0, 0), test.ShouldResemble, color.Gray16{Y: 0x1234})
	test.That(t, img.At(1, 0), test.ShouldResemble, color.Gray16{Y: 65535})

	translucent := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	translucent.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 100})
	path = filepath.Join(dir, FrameFileName(timesync.Color, at(95), ".png"))
	test.That(t, rimage.WriteImageToFile(path, translucent), test.ShouldBeNil)

	f, err = LoadFrameFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Payload.(*ros.Image).Encoding, test.ShouldEqual, rimage.EncodingRGBA8)
	img, err = ros.Decoder{}.DecodeColor(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.At(0, 0), test.ShouldResemble, color.NRGBA{R: 10, G: 20, B: 30, A: 100})
}

func receive(t *testing.T, inbox <-chan timesync.Frame) timesync.Frame {
	t.Helper()
	select {
	case f, ok := <-inbox:
		test.That(t, ok, test.ShouldBeTrue)
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return timesync.Frame{}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writeDepthFile(t, dir, 140)
	writeColorFile(t, dir, 90)
	writeAnnotationFile(t, dir, 100)
	test.That(t, os.WriteFile(filepath.Join(dir, "README"), []byte("ignored"), 0o600), test.ShouldBeNil)

	ds := NewDirSource(dir, logging.NewTestLogger(t))
	inbox := make(chan timesync.Frame, 8)
	test.That(t, ds.Start(context.Background(), inbox), test.ShouldBeNil)

	// existing files come first, oldest first
	test.That(t, receive(t, inbox).Channel, test.ShouldEqual, timesync.Color)
	test.That(t, receive(t, inbox).Channel, test.ShouldEqual, timesync.Annotation)
	test.That(t, receive(t, inbox).Channel, test.ShouldEqual, timesync.Depth)

	// files renamed into place are picked up
	staging := t.TempDir()
	staged := writeColorFile(t, staging, 300)
	test.That(t, os.Rename(staged, filepath.Join(dir, filepath.Base(staged))), test.ShouldBeNil)
	f := receive(t, inbox)
	test.That(t, f.Channel, test.ShouldEqual, timesync.Color)
	test.That(t, f.Timestamp.Equal(at(300)), test.ShouldBeTrue)

	test.That(t, ds.Close(), test.ShouldBeNil)
	for range inbox {
	}
}

func TestDirSourceMissingDir(t *testing.T) {
	ds := NewDirSource(filepath.Join(t.TempDir(), "missing"), logging.NewTestLogger(t))
	test.That(t, ds.Start(context.Background(), make(chan timesync.Frame)), test.ShouldNotBeNil)
	test.That(t, ds.Close(), test.ShouldBeNil)
}
