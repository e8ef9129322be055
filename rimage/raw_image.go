package rimage

import (
	"encoding/binary"
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Pixel encodings understood by DecodeRaw. The names follow the ROS sensor_msgs conventions.
const (
	EncodingRGB8   = "rgb8"
	EncodingBGR8   = "bgr8"
	EncodingRGBA8  = "rgba8"
	EncodingBGRA8  = "bgra8"
	EncodingRGBA16 = "rgba16"
	EncodingMono8  = "mono8"
	EncodingMono16 = "mono16"
	Encoding8UC1   = "8UC1"
	Encoding8UC3   = "8UC3"
	Encoding16UC1  = "16UC1"
	Encoding32FC1  = "32FC1"
)

// ErrUnsupportedEncoding is returned for pixel encodings DecodeRaw cannot handle.
var ErrUnsupportedEncoding = errors.New("unsupported pixel encoding")

// BytesPerPixel returns the size of one pixel in the given encoding, or 0 if unknown.
func BytesPerPixel(encoding string) int {
	switch encoding {
	case EncodingMono8, Encoding8UC1:
		return 1
	case EncodingMono16, Encoding16UC1:
		return 2
	case EncodingRGB8, EncodingBGR8, Encoding8UC3:
		return 3
	case EncodingRGBA8, EncodingBGRA8, Encoding32FC1:
		return 4
	case EncodingRGBA16:
		return 8
	}
	return 0
}

// CheckRawLayout verifies that a raw raster's step and length can hold width×height pixels.
func CheckRawLayout(encoding string, width, height, step, dataLen int) error {
	bpp := BytesPerPixel(encoding)
	if bpp == 0 {
		return errors.Wrapf(ErrUnsupportedEncoding, "%q", encoding)
	}
	if width <= 0 || height <= 0 {
		return errors.Errorf("bad raster size %dx%d", width, height)
	}
	if step < width*bpp {
		return errors.Errorf("row step %d too small for %d %s pixels", step, width, encoding)
	}
	if dataLen < step*(height-1)+width*bpp {
		return errors.Errorf("raster of %dx%d %s needs %d bytes, got %d", width, height, encoding, step*height, dataLen)
	}
	return nil
}

// DecodeRaw turns an uncompressed raster into an image, keeping its native precision:
// 8-bit color becomes NRGBA, rgba16 NRGBA64, mono8 Gray and mono16 Gray16.
func DecodeRaw(encoding string, width, height, step int, bigEndian bool, data []byte) (image.Image, error) {
	if err := CheckRawLayout(encoding, width, height, step, len(data)); err != nil {
		return nil, err
	}
	bounds := image.Rect(0, 0, width, height)

	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}

	switch encoding {
	case EncodingMono8, Encoding8UC1:
		img := image.NewGray(bounds)
		for y := 0; y < height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+width], data[y*step:y*step+width])
		}
		return img, nil
	case EncodingMono16, Encoding16UC1:
		img := image.NewGray16(bounds)
		for y := 0; y < height; y++ {
			row := data[y*step:]
			for x := 0; x < width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: order.Uint16(row[2*x:])})
			}
		}
		return img, nil
	case EncodingRGBA16:
		img := image.NewNRGBA64(bounds)
		for y := 0; y < height; y++ {
			row := data[y*step:]
			for x := 0; x < width; x++ {
				px := row[8*x:]
				img.SetNRGBA64(x, y, color.NRGBA64{
					R: order.Uint16(px[0:]),
					G: order.Uint16(px[2:]),
					B: order.Uint16(px[4:]),
					A: order.Uint16(px[6:]),
				})
			}
		}
		return img, nil
	case EncodingRGB8, EncodingBGR8, Encoding8UC3, EncodingRGBA8, EncodingBGRA8:
		img := image.NewNRGBA(bounds)
		bpp := BytesPerPixel(encoding)
		swap := encoding == EncodingBGR8 || encoding == Encoding8UC3 || encoding == EncodingBGRA8
		for y := 0; y < height; y++ {
			row := data[y*step:]
			for x := 0; x < width; x++ {
				px := row[x*bpp : x*bpp+bpp]
				c := color.NRGBA{R: px[0], G: px[1], B: px[2], A: 255}
				if swap {
					c.R, c.B = c.B, c.R
				}
				if bpp == 4 {
					c.A = px[3]
				}
				img.SetNRGBA(x, y, c)
			}
		}
		return img, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedEncoding, "%q is not a color encoding", encoding)
}

// RawImage is an uncompressed raster with a ROS pixel encoding.
type RawImage struct {
	Encoding  string
	Width     int
	Height    int
	Step      int
	BigEndian bool
	Data      []byte
}

// EncodeRaw packs an image into the encoding closest to its decoded form so that no precision
// is lost: mono8 for 8-bit gray, mono16 for 16-bit gray, rgba16 for 16-bit color, rgb8 for
// opaque 8-bit color and rgba8 for everything else.
func EncodeRaw(img image.Image) RawImage {
	b := img.Bounds()
	raw := RawImage{Width: b.Dx(), Height: b.Dy()}

	switch img.ColorModel() {
	case color.GrayModel:
		raw.Encoding = EncodingMono8
	case color.Gray16Model:
		raw.Encoding = EncodingMono16
	case color.RGBA64Model, color.NRGBA64Model:
		raw.Encoding = EncodingRGBA16
	default:
		raw.Encoding = EncodingRGBA8
		if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
			raw.Encoding = EncodingRGB8
		}
	}

	raw.BigEndian = raw.Encoding == EncodingMono16 || raw.Encoding == EncodingRGBA16

	bpp := BytesPerPixel(raw.Encoding)
	raw.Step = bpp * raw.Width
	raw.Data = make([]byte, 0, raw.Step*raw.Height)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.At(x, y)
			switch raw.Encoding {
			case EncodingMono8:
				raw.Data = append(raw.Data, color.GrayModel.Convert(c).(color.Gray).Y)
			case EncodingMono16:
				raw.Data = binary.BigEndian.AppendUint16(raw.Data, color.Gray16Model.Convert(c).(color.Gray16).Y)
			case EncodingRGBA16:
				n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
				for _, v := range []uint16{n.R, n.G, n.B, n.A} {
					raw.Data = binary.BigEndian.AppendUint16(raw.Data, v)
				}
			default:
				n := color.NRGBAModel.Convert(c).(color.NRGBA)
				raw.Data = append(raw.Data, n.R, n.G, n.B)
				if bpp == 4 {
					raw.Data = append(raw.Data, n.A)
				}
			}
		}
	}
	return raw
}
