// Package capture turns the first aligned triple into files on disk and then stops.
package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/imagedumper/logging"
	"go.viam.com/imagedumper/rimage"
	"go.viam.com/imagedumper/timesync"
)

// State is the lifecycle position of a capture session.
type State int

const (
	// Waiting is the initial state: no capture has been persisted yet.
	Waiting State = iota
	// Processing means a triple is being decoded, encoded and written.
	Processing
	// Done means both rasters were written.
	Done
	// Terminated means the session is finished and ignores further triples.
	Terminated
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Processing:
		return "processing"
	case Done:
		return "done"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// FrameDecoder turns opaque frame payloads into rasters. Encoding names the pixel encoding
// the frame was published in, or "" when it is unknown.
type FrameDecoder interface {
	DecodeColor(f timesync.Frame) (image.Image, error)
	DecodeDepth(f timesync.Frame) (*rimage.DepthMap, error)
	Encoding(f timesync.Frame) string
}

// Sink persists a captured color raster and its encoded depth.
type Sink interface {
	Persist(ctx context.Context, color image.Image, depth *rimage.EncodedDepthMap) error
}

// Recorder keeps a note of each completed capture.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Record describes a completed capture.
type Record struct {
	ID             string
	CapturedAt     time.Time
	AnnotationTime time.Time
	DepthTime      time.Time
	ColorTime      time.Time
	MaxSkew        time.Duration
	ColorWidth     int
	ColorHeight    int
	DepthWidth     int
	DepthHeight    int
	ValidDepth     int
	Attempt        int
}

// DecodeError is returned when a frame of the triple could not be decoded. The session goes
// back to waiting.
type DecodeError struct {
	Channel timesync.Channel
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s frame: %v", e.Channel, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PersistError is returned when the sink failed to write the capture. The session goes back
// to waiting.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persisting capture: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// SessionConfig holds the depth encoding parameters.
type SessionConfig struct {
	DepthScale float64
	Overflow   rimage.OverflowPolicy
}

// DefaultSessionConfig encodes meters as millimeters and saturates out of range depths.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{DepthScale: rimage.DefaultDepthScale, Overflow: rimage.OverflowSaturate}
}

// SessionOption configures optional session collaborators.
type SessionOption func(*Session)

// WithRecorder adds a recorder notified after each successful capture.
func WithRecorder(r Recorder) SessionOption {
	return func(s *Session) {
		s.recorders = append(s.recorders, r)
	}
}

// WithClock overrides the clock used to stamp records.
func WithClock(c clock.Clock) SessionOption {
	return func(s *Session) {
		s.clock = c
	}
}

// A Session persists exactly one aligned triple. It is driven from a single goroutine.
type Session struct {
	cfg       SessionConfig
	decoder   FrameDecoder
	sink      Sink
	recorders []Recorder
	clock     clock.Clock
	logger    logging.Logger

	state    State
	attempts int
}

// NewSession returns a session in the Waiting state.
func NewSession(
	cfg SessionConfig,
	decoder FrameDecoder,
	sink Sink,
	logger logging.Logger,
	opts ...SessionOption,
) (*Session, error) {
	if cfg.DepthScale <= 0 {
		return nil, errors.Errorf("depth scale must be positive, got %v", cfg.DepthScale)
	}
	if decoder == nil {
		return nil, errors.New("session needs a frame decoder")
	}
	if sink == nil {
		return nil, errors.New("session needs a sink")
	}
	s := &Session{
		cfg:     cfg,
		decoder: decoder,
		sink:    sink,
		clock:   clock.New(),
		logger:  logger,
		state:   Waiting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Stopped reports whether the session has finished and the loop driving it should exit.
func (s *Session) Stopped() bool {
	return s.state == Terminated
}

// Attempts returns how many triples the session tried to persist.
func (s *Session) Attempts() int {
	return s.attempts
}

// Handle processes an aligned triple. Once a capture has been persisted every later triple
// is ignored. Decode and persist failures return the session to Waiting and are returned.
func (s *Session) Handle(ctx context.Context, triple timesync.AlignedTriple) error {
	if s.state != Waiting {
		s.logger.CDebugw(ctx, "ignoring aligned triple", "state", s.state.String(), "latest", triple.Latest())
		return nil
	}
	s.state = Processing
	s.attempts++
	s.logger.CInfow(ctx, "executing capture",
		"attempt", s.attempts,
		"max_skew", triple.MaxSkew,
		"annotation", triple.Annotation.Timestamp,
		"depth", triple.Depth.Timestamp,
		"color", triple.Color.Timestamp,
	)

	color, err := s.decoder.DecodeColor(triple.Color)
	if err != nil {
		s.state = Waiting
		return &DecodeError{Channel: timesync.Color, Err: err}
	}
	colorBounds := color.Bounds()
	s.logger.CInfof(ctx, "got %dx%d %s color image", colorBounds.Dx(), colorBounds.Dy(), s.decoder.Encoding(triple.Color))

	depth, err := s.decoder.DecodeDepth(triple.Depth)
	if err != nil {
		s.state = Waiting
		return &DecodeError{Channel: timesync.Depth, Err: err}
	}
	depthBounds := depth.Bounds()
	minDepth, maxDepth := depth.MinMax()
	s.logger.CInfow(ctx,
		fmt.Sprintf("got %dx%d %s depth image", depthBounds.Dx(), depthBounds.Dy(), s.decoder.Encoding(triple.Depth)),
		"min_depth", minDepth,
		"max_depth", maxDepth,
	)

	encoded := rimage.EncodeDepth(depth, s.cfg.DepthScale, s.cfg.Overflow)

	if err := s.sink.Persist(ctx, color, encoded); err != nil {
		s.state = Waiting
		return &PersistError{Err: err}
	}
	s.state = Done

	rec := Record{
		ID:             uuid.NewString(),
		CapturedAt:     s.clock.Now(),
		AnnotationTime: triple.Annotation.Timestamp,
		DepthTime:      triple.Depth.Timestamp,
		ColorTime:      triple.Color.Timestamp,
		MaxSkew:        triple.MaxSkew,
		ColorWidth:     colorBounds.Dx(),
		ColorHeight:    colorBounds.Dy(),
		DepthWidth:     encoded.Width(),
		DepthHeight:    encoded.Height(),
		ValidDepth:     countValid(encoded),
		Attempt:        s.attempts,
	}
	for _, r := range s.recorders {
		if err := r.Record(ctx, rec); err != nil {
			s.logger.CWarnw(ctx, "failed to record capture", "error", err)
		}
	}

	s.state = Terminated
	s.logger.CInfow(ctx, "capture complete", "id", rec.ID, "valid_depth_pixels", rec.ValidDepth)
	return nil
}

func countValid(em *rimage.EncodedDepthMap) int {
	n := 0
	for _, v := range em.Values() {
		if v != 0 {
			n++
		}
	}
	return n
}
