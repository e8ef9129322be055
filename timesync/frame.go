// Package timesync aligns frames from independently clocked sensor streams.
//
// A Synchronizer keeps a small bounded queue per channel and, every time a frame arrives,
// looks for the combination of one annotation, one depth and one color frame whose timestamps
// are closest together. When that combination fits inside the tolerance window it is handed
// to the match callback as an AlignedTriple.
package timesync

import (
	"fmt"
	"time"
)

// Channel identifies one of the sensor streams.
type Channel int

const (
	// Annotation is the scene annotation (logical camera) stream.
	Annotation Channel = iota
	// Depth is the metric depth image stream.
	Depth
	// Color is the color image stream.
	Color

	numChannels = 3
)

// Channels lists every channel in matching order.
var Channels = [numChannels]Channel{Annotation, Depth, Color}

func (c Channel) String() string {
	switch c {
	case Annotation:
		return "annotation"
	case Depth:
		return "depth"
	case Color:
		return "color"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c >= Annotation && c <= Color
}

// ChannelFromString parses a channel name as printed by String.
func ChannelFromString(s string) (Channel, bool) {
	for _, c := range Channels {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Frame is a single timestamped reading. The payload is opaque to the synchronizer.
type Frame struct {
	Timestamp time.Time
	Channel   Channel
	Payload   any
}

// AlignedTriple is one frame per channel whose timestamps fall within the tolerance window.
type AlignedTriple struct {
	Annotation Frame
	Depth      Frame
	Color      Frame
	// MaxSkew is the largest pairwise timestamp difference among the three frames.
	MaxSkew time.Duration
}

// Frame returns the member of the triple for the given channel.
func (t AlignedTriple) Frame(c Channel) Frame {
	switch c {
	case Annotation:
		return t.Annotation
	case Depth:
		return t.Depth
	default:
		return t.Color
	}
}

// Earliest returns the smallest timestamp in the triple.
func (t AlignedTriple) Earliest() time.Time {
	earliest := t.Annotation.Timestamp
	for _, f := range []Frame{t.Depth, t.Color} {
		if f.Timestamp.Before(earliest) {
			earliest = f.Timestamp
		}
	}
	return earliest
}

// Latest returns the largest timestamp in the triple.
func (t AlignedTriple) Latest() time.Time {
	latest := t.Annotation.Timestamp
	for _, f := range []Frame{t.Depth, t.Color} {
		if f.Timestamp.After(latest) {
			latest = f.Timestamp
		}
	}
	return latest
}
