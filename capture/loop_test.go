package capture

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/imagedumper/logging"
	"go.viam.com/imagedumper/ros"
	"go.viam.com/imagedumper/timesync"
)

type loopHarness struct {
	inbox   chan timesync.Frame
	sink    *memorySink
	session *Session
	loop    *Loop
	clock   *clock.Mock
}

func newLoopHarness(ctx context.Context, t *testing.T, logger logging.Logger) *loopHarness {
	t.Helper()
	h := &loopHarness{
		inbox: make(chan timesync.Frame, 16),
		sink:  &memorySink{},
		clock: clock.NewMock(),
	}
	var err error
	h.session, err = NewSession(DefaultSessionConfig(), ros.Decoder{}, h.sink, logger)
	test.That(t, err, test.ShouldBeNil)
	sync, err := timesync.NewSynchronizer(
		timesync.Config{QueueDepth: 10, ToleranceWindow: 60 * time.Millisecond}, h.session.MatchFunc(ctx))
	test.That(t, err, test.ShouldBeNil)
	h.loop, err = NewLoop(h.inbox, sync, h.session, time.Second, h.clock, logger)
	test.That(t, err, test.ShouldBeNil)
	return h
}

// run starts the loop and advances the mock clock until it returns.
func (h *loopHarness) run(ctx context.Context, t *testing.T, feed func()) error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- h.loop.Run(ctx)
	}()
	if feed != nil {
		feed()
	}
	for i := 0; i < 200; i++ {
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Millisecond):
			h.clock.Add(time.Second)
		}
	}
	t.Fatal("loop did not finish")
	return nil
}

func sendTriple(inbox chan<- timesync.Frame, triple timesync.AlignedTriple) {
	inbox <- triple.Annotation
	inbox <- triple.Depth
	inbox <- triple.Color
}

func TestNewLoopValidation(t *testing.T) {
	_, err := NewLoop(nil, nil, nil, 0, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoopStopsAfterCapture(t *testing.T) {
	ctx := context.Background()
	h := newLoopHarness(ctx, t, logging.NewTestLogger(t))

	sendTriple(h.inbox, testTriple(t, 100, 140, 90))
	sendTriple(h.inbox, testTriple(t, 300, 310, 305))

	test.That(t, h.run(ctx, t, nil), test.ShouldBeNil)
	test.That(t, h.session.Stopped(), test.ShouldBeTrue)
	test.That(t, h.sink.persisted, test.ShouldEqual, 1)
	// the loop stops draining once the capture is made
	test.That(t, len(h.inbox), test.ShouldEqual, 3)
}

func TestLoopWaitsForLateFrames(t *testing.T) {
	ctx := context.Background()
	h := newLoopHarness(ctx, t, logging.NewTestLogger(t))

	triple := testTriple(t, 100, 140, 90)
	err := h.run(ctx, t, func() {
		h.inbox <- triple.Annotation
		h.inbox <- triple.Depth
		time.Sleep(20 * time.Millisecond)
		h.inbox <- triple.Color
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.sink.persisted, test.ShouldEqual, 1)
}

func TestLoopLogsFailuresAndKeepsGoing(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	h := newLoopHarness(ctx, t, logger)
	h.sink.failures = 1
	h.sink.err = errors.New("disk full")

	sendTriple(h.inbox, testTriple(t, 100, 140, 90))
	// older than the annotation already seen
	h.inbox <- timesync.Frame{Timestamp: at(50), Channel: timesync.Annotation, Payload: &ros.LogicalImage{}}

	sendTriple(h.inbox, testTriple(t, 300, 310, 305))

	test.That(t, h.run(ctx, t, nil), test.ShouldBeNil)
	test.That(t, h.session.Attempts(), test.ShouldEqual, 2)
	test.That(t, h.sink.persisted, test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("could not save capture, waiting for the next triple").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("dropped out of order frame").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("capture loop finished").Len(), test.ShouldEqual, 1)
}

func TestLoopInboxClosed(t *testing.T) {
	ctx := context.Background()
	h := newLoopHarness(ctx, t, logging.NewTestLogger(t))

	h.inbox <- timesync.Frame{Timestamp: at(100), Channel: timesync.Annotation, Payload: &ros.LogicalImage{}}
	close(h.inbox)

	err := h.run(ctx, t, nil)
	test.That(t, errors.Is(err, ErrInboxClosed), test.ShouldBeTrue)
	test.That(t, h.session.Stopped(), test.ShouldBeFalse)
}

func TestLoopCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newLoopHarness(ctx, t, logging.NewTestLogger(t))

	err := h.run(ctx, t, func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	})
	test.That(t, err, test.ShouldBeError, context.Canceled)
	test.That(t, h.sink.persisted, test.ShouldEqual, 0)
}
