package framesource

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"

	"go.viam.com/imagedumper/logging"
	"go.viam.com/imagedumper/ros"
	"go.viam.com/imagedumper/timesync"
)

// BagSource replays the three camera topics of a rosbag in timestamp order.
type BagSource struct {
	path   string
	topics Topics
	logger logging.Logger

	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewBagSource returns a source replaying the given topics from the bag at path.
func NewBagSource(path string, topics Topics, logger logging.Logger) *BagSource {
	return &BagSource{path: path, topics: topics, logger: logger}
}

// Start reads the whole bag and replays it from a background worker. Errors reading the bag
// are returned before anything is delivered.
func (bs *BagSource) Start(ctx context.Context, inbox chan<- timesync.Frame) error {
	rb, err := ros.ReadBag(bs.path)
	if err != nil {
		return err
	}
	msgs, err := ros.MessagesForTopics(rb, []string{bs.topics.Annotation, bs.topics.Depth, bs.topics.Color})
	if err != nil {
		return err
	}
	frames, err := framesFromMessages(msgs, bs.topics)
	if err != nil {
		return errors.Wrapf(err, "reading bag %s", bs.path)
	}
	bs.logger.CInfow(ctx, "replaying bag",
		"path", bs.path,
		"frames", len(frames),
		"annotation", len(msgs[bs.topics.Annotation]),
		"depth", len(msgs[bs.topics.Depth]),
		"color", len(msgs[bs.topics.Color]),
	)
	bs.replay(ctx, inbox, frames)
	return nil
}

func (bs *BagSource) replay(ctx context.Context, inbox chan<- timesync.Frame, frames []timesync.Frame) {
	cancelCtx, cancel := context.WithCancel(ctx)
	bs.cancel = cancel
	bs.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		defer close(inbox)
		if deliver(cancelCtx, inbox, frames) {
			bs.logger.CDebugw(cancelCtx, "bag replay finished", "path", bs.path)
		}
	}, bs.activeBackgroundWorkers.Done)
}

// Close stops the replay and waits for it to finish.
func (bs *BagSource) Close() error {
	if bs.cancel != nil {
		bs.cancel()
	}
	bs.activeBackgroundWorkers.Wait()
	return nil
}

// framesFromMessages decodes the raw bag records of each topic and merges them into a single
// timestamp ordered stream.
func framesFromMessages(msgs map[string][][]byte, topics Topics) ([]timesync.Frame, error) {
	annotations, err := ros.DecodeLogicalImageMessages(msgs[topics.Annotation])
	if err != nil {
		return nil, errors.Wrapf(err, "topic %s", topics.Annotation)
	}
	depths, err := ros.DecodeImageMessages(msgs[topics.Depth])
	if err != nil {
		return nil, errors.Wrapf(err, "topic %s", topics.Depth)
	}
	colors, err := ros.DecodeImageMessages(msgs[topics.Color])
	if err != nil {
		return nil, errors.Wrapf(err, "topic %s", topics.Color)
	}

	imageFrames := func(c timesync.Channel, ims []ros.ImageMessage) []timesync.Frame {
		return lo.Map(ims, func(m ros.ImageMessage, i int) timesync.Frame {
			return timesync.Frame{
				Timestamp: ros.StampOrMeta(m.Data.Header, m.Meta),
				Channel:   c,
				Payload:   &ims[i].Data,
			}
		})
	}
	frames := lo.Flatten([][]timesync.Frame{
		lo.Map(annotations, func(m ros.LogicalImageMessage, i int) timesync.Frame {
			return timesync.Frame{
				Timestamp: ros.StampOrMeta(m.Data.Header, m.Meta),
				Channel:   timesync.Annotation,
				Payload:   &annotations[i].Data,
			}
		}),
		imageFrames(timesync.Depth, depths),
		imageFrames(timesync.Color, colors),
	})
	sortFrames(frames)
	return frames, nil
}
