// Package framesource feeds timestamped annotation, depth and color frames into a capture
// loop's inbox.
package framesource

import (
	"context"
	"slices"

	"go.viam.com/imagedumper/timesync"
)

// Default topic names published by the simulated camera rig.
const (
	DefaultAnnotationTopic = "/gazebo/logical_camera_image"
	DefaultDepthTopic      = "/camera/depth/image_raw"
	DefaultColorTopic      = "/camera/rgb/image_raw"
)

// A Source delivers frames to an inbox from a background worker. The source owns the inbox
// once started and closes it when it has nothing more to deliver or ctx is done.
type Source interface {
	Start(ctx context.Context, inbox chan<- timesync.Frame) error
	Close() error
}

// Topics names the stream each channel is read from.
type Topics struct {
	Annotation string `json:"annotation"`
	Depth      string `json:"depth"`
	Color      string `json:"color"`
}

// DefaultTopics returns the topics of the simulated camera rig.
func DefaultTopics() Topics {
	return Topics{
		Annotation: DefaultAnnotationTopic,
		Depth:      DefaultDepthTopic,
		Color:      DefaultColorTopic,
	}
}

// Topic returns the topic configured for a channel.
func (t Topics) Topic(c timesync.Channel) string {
	switch c {
	case timesync.Annotation:
		return t.Annotation
	case timesync.Depth:
		return t.Depth
	case timesync.Color:
		return t.Color
	}
	return ""
}

// sortFrames orders frames by timestamp, keeping arrival order for equal timestamps.
func sortFrames(frames []timesync.Frame) {
	slices.SortStableFunc(frames, func(a, b timesync.Frame) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// deliver sends frames in order until they run out or ctx is done.
func deliver(ctx context.Context, inbox chan<- timesync.Frame, frames []timesync.Frame) bool {
	for _, f := range frames {
		select {
		case <-ctx.Done():
			return false
		case inbox <- f:
		}
	}
	return true
}
