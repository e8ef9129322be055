package rimage

import (
	"bytes"
	"image"
	"math"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestDepthMapAccessors(t *testing.T) {
	dm := NewEmptyDepthMap(3, 2)
	test.That(t, dm.Bounds(), test.ShouldResemble, image.Rect(0, 0, 3, 2))

	dm.Set(2, 1, 4.5)
	dm.Set(0, 0, 1e9)
	dm.Set(1, 0, 0.75)
	test.That(t, dm.GetDepth(2, 1), test.ShouldEqual, float32(4.5))

	// row-major layout
	test.That(t, dm.data[5], test.ShouldEqual, float32(4.5))

	min, max := dm.MinMax()
	test.That(t, min, test.ShouldEqual, float32(0.75))
	test.That(t, max, test.ShouldEqual, float32(4.5))

	min, max = NewEmptyDepthMap(2, 1).MinMax()
	test.That(t, math.IsInf(float64(min), 1), test.ShouldBeTrue)
	test.That(t, max, test.ShouldEqual, float32(0))

	_, err := NewDepthMapFromData(2, 2, []float32{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewDepthMapFromData(0, 2, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDepthMapReadWrite(t *testing.T) {
	dm, err := NewDepthMapFromData(2, 2, []float32{0.5, 1.25, 1e9, 3})
	test.That(t, err, test.ShouldBeNil)

	buf := bytes.Buffer{}
	test.That(t, dm.WriteTo(&buf), test.ShouldBeNil)

	dm2, err := ReadDepthMap(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm2, test.ShouldResemble, dm)

	for _, name := range []string{"depth.dm", "depth.dm.gz"} {
		fn := filepath.Join(t.TempDir(), name)
		test.That(t, dm.WriteToFile(fn), test.ShouldBeNil)
		dm3, err := ParseDepthMap(fn)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, dm3, test.ShouldResemble, dm)
	}

	_, err = ReadDepthMap(bytes.NewReader([]byte("not a depth map at all!!")))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not a depth map")

	_, err = ParseDepthMap(filepath.Join(t.TempDir(), "missing.dm"))
	test.That(t, err, test.ShouldNotBeNil)
}
