package ros

import (
	"encoding/binary"
	"image"
	"math"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/imagedumper/rimage"
	"go.viam.com/imagedumper/timesync"
)

// DepthMapFromImage converts a 32FC1 depth image into a depth map in meters.
//
// The encoding is a precondition, not an input error: any other encoding means the upstream
// publisher is wired wrong, so this panics. Data that does not fit the declared size is
// returned as an error.
func DepthMapFromImage(msg *Image) (*rimage.DepthMap, error) {
	if msg.Encoding != rimage.Encoding32FC1 {
		panic(errors.Errorf("depth image must be %s, got %q", rimage.Encoding32FC1, msg.Encoding))
	}
	width, height, step := int(msg.Width), int(msg.Height), int(msg.Step)
	if err := rimage.CheckRawLayout(msg.Encoding, width, height, step, len(msg.Data)); err != nil {
		return nil, errors.Wrap(err, "malformed depth image")
	}

	var order binary.ByteOrder = binary.LittleEndian
	if msg.IsBigendian != 0 {
		order = binary.BigEndian
	}

	data := make([]float32, width*height)
	for y := 0; y < height; y++ {
		row := msg.Data[y*step:]
		for x := 0; x < width; x++ {
			data[y*width+x] = math.Float32frombits(order.Uint32(row[4*x:]))
		}
	}
	return rimage.NewDepthMapFromData(width, height, data)
}

// ColorFromImage decodes a color (or mono) image message.
func ColorFromImage(msg *Image) (image.Image, error) {
	img, err := rimage.DecodeRaw(
		msg.Encoding, int(msg.Width), int(msg.Height), int(msg.Step), msg.IsBigendian != 0, msg.Data)
	if err != nil {
		return nil, errors.Wrap(err, "malformed color image")
	}
	return img, nil
}

// ImageFromDepthMap builds a little endian 32FC1 image message from a depth map.
func ImageFromDepthMap(dm *rimage.DepthMap, stamp time.Time, frameID string) *Image {
	width, height := dm.Width(), dm.Height()
	data := make([]byte, 4*width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			binary.LittleEndian.PutUint32(data[4*(y*width+x):], math.Float32bits(dm.GetDepth(x, y)))
		}
	}
	return &Image{
		Header:   Header{Stamp: StampFromTime(stamp), FrameID: frameID},
		Height:   uint32(height),
		Width:    uint32(width),
		Encoding: rimage.Encoding32FC1,
		Step:     uint32(4 * width),
		Data:     data,
	}
}

// ImageFromColor builds an image message in the encoding matching the image's own pixel
// format, so gray, alpha and 16-bit samples survive the round trip.
func ImageFromColor(img image.Image, stamp time.Time, frameID string) *Image {
	raw := rimage.EncodeRaw(img)
	msg := &Image{
		Header:   Header{Stamp: StampFromTime(stamp), FrameID: frameID},
		Height:   uint32(raw.Height),
		Width:    uint32(raw.Width),
		Encoding: raw.Encoding,
		Step:     uint32(raw.Step),
		Data:     raw.Data,
	}
	if raw.BigEndian {
		msg.IsBigendian = 1
	}
	return msg
}

// Decoder decodes frames whose payloads are *Image messages.
type Decoder struct{}

// DecodeColor decodes the color frame of a triple.
func (Decoder) DecodeColor(f timesync.Frame) (image.Image, error) {
	msg, err := imagePayload(f)
	if err != nil {
		return nil, err
	}
	return ColorFromImage(msg)
}

// DecodeDepth decodes the depth frame of a triple.
func (Decoder) DecodeDepth(f timesync.Frame) (*rimage.DepthMap, error) {
	msg, err := imagePayload(f)
	if err != nil {
		return nil, err
	}
	return DepthMapFromImage(msg)
}

// Encoding returns the pixel encoding of an image frame, or "" for any other payload.
func (Decoder) Encoding(f timesync.Frame) string {
	msg, err := imagePayload(f)
	if err != nil {
		return ""
	}
	return msg.Encoding
}

func imagePayload(f timesync.Frame) (*Image, error) {
	msg, ok := f.Payload.(*Image)
	if !ok || msg == nil {
		return nil, errors.Errorf("%s frame payload is %T, expected *ros.Image", f.Channel, f.Payload)
	}
	return msg, nil
}
