package capture

import (
	"context"
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/imagedumper/logging"
	"go.viam.com/imagedumper/rimage"
)

const (
	// ColorFileName is the file the color raster is written to.
	ColorFileName = "rgb_image.png"
	// DepthFileName is the file the encoded depth raster is written to.
	DepthFileName = "depth_image.pgm"
)

// FileSink writes captures into a directory with fixed file names.
type FileSink struct {
	dir    string
	logger logging.Logger
}

// NewFileSink returns a sink writing into dir. An empty dir means the working directory.
func NewFileSink(dir string, logger logging.Logger) *FileSink {
	if dir == "" {
		dir = "."
	}
	return &FileSink{dir: dir, logger: logger}
}

// ColorPath returns where the color raster is written.
func (fs *FileSink) ColorPath() string {
	return filepath.Join(fs.dir, ColorFileName)
}

// DepthPath returns where the encoded depth raster is written.
func (fs *FileSink) DepthPath() string {
	return filepath.Join(fs.dir, DepthFileName)
}

// Persist writes the color raster as a PNG and the encoded depth as a 16-bit PGM. Both
// writes are attempted; every failure is returned.
func (fs *FileSink) Persist(ctx context.Context, color image.Image, depth *rimage.EncodedDepthMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(fs.dir, 0o750); err != nil {
		return errors.Wrapf(err, "creating output directory %q", fs.dir)
	}

	var err error
	if colorErr := rimage.WriteImageToFile(fs.ColorPath(), color); colorErr != nil {
		err = multierr.Combine(err, errors.Wrapf(colorErr, "writing %s", fs.ColorPath()))
	} else {
		fs.logger.CInfow(ctx, "saved color image", "path", fs.ColorPath())
	}
	if depthErr := rimage.WritePGM16ToFile(fs.DepthPath(), depth); depthErr != nil {
		err = multierr.Combine(err, errors.Wrapf(depthErr, "writing %s", fs.DepthPath()))
	} else {
		fs.logger.CInfow(ctx, "saved depth image", "path", fs.DepthPath())
	}
	return err
}
