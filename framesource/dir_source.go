package framesource

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"

	"go.viam.com/imagedumper/logging"
	"go.viam.com/imagedumper/rimage"
	"go.viam.com/imagedumper/ros"
	"go.viam.com/imagedumper/timesync"
)

var channelExtensions = map[timesync.Channel][]string{
	timesync.Annotation: {".json"},
	timesync.Depth:      {".dm", ".dm.gz"},
	timesync.Color:      {".png", ".jpg", ".jpeg", ".bmp", ".ppm", ".qoi"},
}

// ParseFrameFileName splits a file name of the form <channel>_<unixnanos>.<ext> into its
// channel and timestamp. It reports false for names that are not frame files.
func ParseFrameFileName(name string) (timesync.Channel, time.Time, bool) {
	base := filepath.Base(name)
	prefix, rest, ok := strings.Cut(base, "_")
	if !ok {
		return 0, time.Time{}, false
	}
	c, ok := timesync.ChannelFromString(prefix)
	if !ok {
		return 0, time.Time{}, false
	}
	ext, found := lo.Find(channelExtensions[c], func(ext string) bool {
		return strings.HasSuffix(strings.ToLower(rest), ext)
	})
	if !found {
		return 0, time.Time{}, false
	}
	nanos, err := strconv.ParseInt(rest[:len(rest)-len(ext)], 10, 64)
	if err != nil || nanos < 0 {
		return 0, time.Time{}, false
	}
	return c, time.Unix(0, nanos), true
}

// FrameFileName returns the file name a frame of channel c at ts is expected under.
func FrameFileName(c timesync.Channel, ts time.Time, ext string) string {
	return c.String() + "_" + strconv.FormatInt(ts.UnixNano(), 10) + ext
}

// LoadFrameFile reads a frame file into a frame carrying the same payload types a rosbag
// replay produces.
func LoadFrameFile(path string) (timesync.Frame, error) {
	c, ts, ok := ParseFrameFileName(path)
	if !ok {
		return timesync.Frame{}, errors.Errorf("%q is not a frame file", path)
	}
	f := timesync.Frame{Timestamp: ts, Channel: c}
	switch c {
	case timesync.Annotation:
		//nolint:gosec
		data, err := os.ReadFile(path)
		if err != nil {
			return timesync.Frame{}, err
		}
		var li ros.LogicalImage
		if err := json.Unmarshal(data, &li); err != nil {
			return timesync.Frame{}, errors.Wrapf(err, "decoding %s", path)
		}
		if li.Header.Stamp.IsZero() {
			li.Header.Stamp = ros.StampFromTime(ts)
		}
		f.Payload = &li
	case timesync.Depth:
		dm, err := rimage.ParseDepthMap(path)
		if err != nil {
			return timesync.Frame{}, err
		}
		f.Payload = ros.ImageFromDepthMap(dm, ts, c.String())
	case timesync.Color:
		img, err := rimage.NewImageFromFile(path)
		if err != nil {
			return timesync.Frame{}, err
		}
		f.Payload = ros.ImageFromColor(img, ts, c.String())
	}
	return f, nil
}

// DirSource turns frame files appearing in a directory into frames. Files already present
// when it starts are delivered first in timestamp order. Producers should write under a
// temporary name and rename into place; a file that cannot be loaded yet is retried on its
// next write event.
type DirSource struct {
	dir    string
	logger logging.Logger

	watcher                 *fsnotify.Watcher
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewDirSource returns a source watching dir.
func NewDirSource(dir string, logger logging.Logger) *DirSource {
	return &DirSource{dir: dir, logger: logger}
}

// Start begins watching the directory and delivers existing frame files.
func (ds *DirSource) Start(ctx context.Context, inbox chan<- timesync.Frame) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating directory watcher")
	}
	if err := watcher.Add(ds.dir); err != nil {
		utils.UncheckedError(watcher.Close())
		return errors.Wrapf(err, "watching %s", ds.dir)
	}
	existing, err := ds.existingFrameFiles()
	if err != nil {
		utils.UncheckedError(watcher.Close())
		return err
	}
	ds.watcher = watcher
	ds.logger.CInfow(ctx, "watching directory for frames", "dir", ds.dir, "existing", len(existing))

	cancelCtx, cancel := context.WithCancel(ctx)
	ds.cancel = cancel
	ds.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		defer close(inbox)
		ds.run(cancelCtx, inbox, existing)
	}, ds.activeBackgroundWorkers.Done)
	return nil
}

func (ds *DirSource) existingFrameFiles() ([]string, error) {
	entries, err := os.ReadDir(ds.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", ds.dir)
	}
	type stamped struct {
		path string
		ts   time.Time
	}
	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (stamped, bool) {
		if e.IsDir() {
			return stamped{}, false
		}
		_, ts, ok := ParseFrameFileName(e.Name())
		return stamped{filepath.Join(ds.dir, e.Name()), ts}, ok
	})
	slices.SortStableFunc(files, func(a, b stamped) int { return a.ts.Compare(b.ts) })
	return lo.Map(files, func(s stamped, _ int) string { return s.path }), nil
}

func (ds *DirSource) run(ctx context.Context, inbox chan<- timesync.Frame, existing []string) {
	delivered := map[string]bool{}
	send := func(path string) bool {
		if delivered[path] {
			return true
		}
		f, err := LoadFrameFile(path)
		if err != nil {
			ds.logger.CDebugw(ctx, "frame file not loadable yet", "path", path, "error", err)
			return true
		}
		delivered[path] = true
		return deliver(ctx, inbox, []timesync.Frame{f})
	}

	for _, path := range existing {
		if !send(path) {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ds.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if _, _, ok := ParseFrameFileName(event.Name); !ok {
				continue
			}
			if !send(event.Name) {
				return
			}
		case err, ok := <-ds.watcher.Errors:
			if !ok {
				return
			}
			ds.logger.CWarnw(ctx, "directory watcher error", "dir", ds.dir, "error", err)
		}
	}
}

// Close stops watching and waits for the worker to exit.
func (ds *DirSource) Close() error {
	if ds.cancel != nil {
		ds.cancel()
	}
	ds.activeBackgroundWorkers.Wait()
	if ds.watcher == nil {
		return nil
	}
	return ds.watcher.Close()
}
