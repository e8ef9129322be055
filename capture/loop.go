package capture

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/imagedumper/logging"
	"go.viam.com/imagedumper/timesync"
)

// DefaultPollInterval is how long the loop idles between inbox drains.
const DefaultPollInterval = time.Second

// ErrInboxClosed is returned by Loop.Run when every source finished before a capture was made.
var ErrInboxClosed = errors.New("frame inbox closed before a capture was made")

// FramePusher is what the loop feeds frames into.
type FramePusher interface {
	Push(f timesync.Frame) error
	Stats() timesync.Stats
}

// MatchFunc adapts the session to a synchronizer callback bound to ctx.
func (s *Session) MatchFunc(ctx context.Context) timesync.MatchFunc {
	return func(triple timesync.AlignedTriple) error {
		return s.Handle(ctx, triple)
	}
}

// A Loop drains frames from an inbox into a synchronizer until the session stops. All
// synchronization and capture work happens on the goroutine calling Run.
type Loop struct {
	inbox    <-chan timesync.Frame
	pusher   FramePusher
	session  *Session
	interval time.Duration
	clock    clock.Clock
	logger   logging.Logger
}

// NewLoop returns a loop polling inbox every interval. A nil clock means the wall clock.
func NewLoop(
	inbox <-chan timesync.Frame,
	pusher FramePusher,
	session *Session,
	interval time.Duration,
	clk clock.Clock,
	logger logging.Logger,
) (*Loop, error) {
	if interval <= 0 {
		return nil, errors.Errorf("poll interval must be positive, got %s", interval)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{
		inbox:    inbox,
		pusher:   pusher,
		session:  session,
		interval: interval,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Run polls until the session has persisted a capture (nil), the context is cancelled
// (ctx.Err()) or the inbox is closed and drained (ErrInboxClosed).
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.Ticker(l.interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		finished, err := l.drain(ctx)
		if finished {
			stats := l.pusher.Stats()
			l.logger.CInfow(ctx, "capture loop finished",
				"pushed", stats.Pushed,
				"matched", stats.Matched,
				"evicted", stats.Evicted,
				"out_of_order", stats.OutOfOrder,
				"attempts", l.session.Attempts(),
			)
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Loop) drain(ctx context.Context) (bool, error) {
	for {
		if l.session.Stopped() {
			return true, nil
		}
		select {
		case f, ok := <-l.inbox:
			if !ok {
				l.logger.CWarn(ctx, "all frame sources finished without a capture")
				return true, ErrInboxClosed
			}
			l.push(ctx, f)
		default:
			return false, nil
		}
	}
}

func (l *Loop) push(ctx context.Context, f timesync.Frame) {
	err := l.pusher.Push(f)
	if err == nil {
		return
	}
	var (
		decodeErr  *DecodeError
		persistErr *PersistError
	)
	switch {
	case errors.Is(err, timesync.ErrOutOfOrder):
		l.logger.CDebugw(ctx, "dropped out of order frame", "channel", f.Channel.String(), "error", err)
	case errors.As(err, &decodeErr):
		l.logger.CWarnw(ctx, "could not decode aligned triple, waiting for the next one",
			"channel", decodeErr.Channel.String(), "error", decodeErr.Err)
	case errors.As(err, &persistErr):
		l.logger.CErrorw(ctx, "could not save capture, waiting for the next triple", "error", persistErr.Err)
	default:
		l.logger.CWarnw(ctx, "failed to push frame", "channel", f.Channel.String(), "error", err)
	}
}
