package ros

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/imagedumper/rimage"
	"go.viam.com/imagedumper/timesync"
)

func TestDepthMapFromImage(t *testing.T) {
	dm, err := rimage.NewDepthMapFromData(2, 1, []float32{2.5, 1e9})
	test.That(t, err, test.ShouldBeNil)
	stamp := time.Unix(100, 140000000)

	msg := ImageFromDepthMap(dm, stamp, "camera_depth_optical_frame")
	test.That(t, msg.Encoding, test.ShouldEqual, rimage.Encoding32FC1)
	test.That(t, msg.Step, test.ShouldEqual, uint32(8))
	test.That(t, msg.Header.Stamp.Time(), test.ShouldEqual, stamp)

	back, err := DepthMapFromImage(msg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back, test.ShouldResemble, dm)

	em := rimage.EncodeDepth(back, rimage.DefaultDepthScale, rimage.OverflowSaturate)
	test.That(t, em.Values(), test.ShouldResemble, []uint16{2500, 0})
}

func TestDepthMapFromImageBigEndianPadded(t *testing.T) {
	// one row of one pixel padded to 6 bytes
	data := make([]byte, 6)
	binary.BigEndian.PutUint32(data, math.Float32bits(1.5))
	msg := &Image{Height: 1, Width: 1, Encoding: "32FC1", IsBigendian: 1, Step: 6, Data: data}

	dm, err := DepthMapFromImage(msg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, float32(1.5))
}

func TestDepthMapFromImageMalformed(t *testing.T) {
	msg := &Image{Height: 2, Width: 2, Encoding: "32FC1", Step: 8, Data: make([]byte, 10)}
	_, err := DepthMapFromImage(msg)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "malformed depth image")
}

func TestDepthMapFromImageWrongEncodingPanics(t *testing.T) {
	msg := &Image{Height: 1, Width: 1, Encoding: "16UC1", Step: 2, Data: make([]byte, 2)}
	test.That(t, func() { DepthMapFromImage(msg) }, test.ShouldPanic)
}

func TestColorFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(1, 0, color.NRGBA{1, 2, 3, 255})

	// transparent pixels keep their alpha
	msg := ImageFromColor(img, time.Unix(1, 0), "camera_rgb_optical_frame")
	test.That(t, msg.Encoding, test.ShouldEqual, rimage.EncodingRGBA8)
	test.That(t, msg.Step, test.ShouldEqual, uint32(8))
	test.That(t, msg.IsBigendian, test.ShouldEqual, uint8(0))

	decoded, err := ColorFromImage(msg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.At(1, 0), test.ShouldResemble, color.NRGBA{1, 2, 3, 255})

	gray16 := image.NewGray16(image.Rect(0, 0, 1, 1))
	gray16.SetGray16(0, 0, color.Gray16{Y: 40000})
	msg = ImageFromColor(gray16, time.Unix(1, 0), "camera_ir_optical_frame")
	test.That(t, msg.Encoding, test.ShouldEqual, rimage.EncodingMono16)
	test.That(t, msg.IsBigendian, test.ShouldEqual, uint8(1))
	decoded, err = ColorFromImage(msg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.At(0, 0), test.ShouldResemble, color.Gray16{Y: 40000})

	msg.Encoding = "yuv422"
	_, err = ColorFromImage(msg)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "malformed color image")
}

func TestDecoder(t *testing.T) {
	dm := rimage.NewEmptyDepthMap(1, 1)
	depthFrame := timesync.Frame{Channel: timesync.Depth, Payload: ImageFromDepthMap(dm, time.Unix(1, 0), "")}

	var dec Decoder
	got, err := dec.DecodeDepth(depthFrame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Width(), test.ShouldEqual, 1)
	test.That(t, dec.Encoding(depthFrame), test.ShouldEqual, rimage.Encoding32FC1)
	test.That(t, dec.Encoding(timesync.Frame{Channel: timesync.Annotation, Payload: &LogicalImage{}}), test.ShouldEqual, "")

	_, err = dec.DecodeColor(timesync.Frame{Channel: timesync.Color, Payload: "not an image"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "string")

	var nilImage *Image
	_, err = dec.DecodeDepth(timesync.Frame{Channel: timesync.Depth, Payload: nilImage})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestStamp(t *testing.T) {
	ts := time.Unix(1500, 250)
	test.That(t, StampFromTime(ts), test.ShouldResemble, Stamp{Secs: 1500, Nsecs: 250})
	test.That(t, StampOrMeta(Header{}, Meta{Secs: 7}), test.ShouldEqual, time.Unix(7, 0))
	test.That(t, StampOrMeta(Header{Stamp: Stamp{Secs: 9}}, Meta{Secs: 7}), test.ShouldEqual, time.Unix(9, 0))
}
