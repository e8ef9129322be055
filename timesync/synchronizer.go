package timesync

import (
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	// DefaultQueueDepth is how many frames each channel keeps while waiting for a match.
	DefaultQueueDepth = 10
	// DefaultToleranceWindow is the largest skew allowed inside an aligned triple.
	DefaultToleranceWindow = 100 * time.Millisecond
)

// ErrOutOfOrder is returned when a frame is older than one already pushed on its channel.
var ErrOutOfOrder = errors.New("frame is older than the newest frame on its channel")

// Config controls queue sizes and the matching tolerance.
type Config struct {
	QueueDepth      int
	ToleranceWindow time.Duration
}

// DefaultConfig returns the default synchronizer configuration.
func DefaultConfig() Config {
	return Config{
		QueueDepth:      DefaultQueueDepth,
		ToleranceWindow: DefaultToleranceWindow,
	}
}

// Validate ensures the configuration is usable.
func (cfg Config) Validate() error {
	if cfg.QueueDepth < 1 {
		return errors.Errorf("queue depth must be at least 1, got %d", cfg.QueueDepth)
	}
	if cfg.ToleranceWindow < 0 {
		return errors.Errorf("tolerance window must not be negative, got %s", cfg.ToleranceWindow)
	}
	return nil
}

// MatchFunc receives every aligned triple. Its error is returned from the Push that produced
// the match.
type MatchFunc func(AlignedTriple) error

// Stats counts what happened to pushed frames.
type Stats struct {
	Pushed     uint64
	Evicted    uint64
	Matched    uint64
	OutOfOrder uint64
}

// A Synchronizer buffers frames per channel and emits aligned triples. It is not safe for
// concurrent use; callers drive it from a single loop.
type Synchronizer struct {
	cfg     Config
	onMatch MatchFunc

	queues [numChannels][]Frame
	newest [numChannels]time.Time
	seen   [numChannels]bool
	stats  Stats
}

// NewSynchronizer returns a synchronizer that calls onMatch for every aligned triple.
func NewSynchronizer(cfg Config, onMatch MatchFunc) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Synchronizer{cfg: cfg, onMatch: onMatch}, nil
}

// Push adds a frame to its channel queue and emits a triple if one is now possible. Frames
// are expected in timestamp order within a channel; an older frame is dropped with
// ErrOutOfOrder. When a queue is over capacity its oldest frame is silently evicted.
func (s *Synchronizer) Push(f Frame) error {
	if !f.Channel.Valid() {
		return errors.Errorf("cannot push frame on unknown %s", f.Channel)
	}
	ch := f.Channel
	s.stats.Pushed++
	if s.seen[ch] && f.Timestamp.Before(s.newest[ch]) {
		s.stats.OutOfOrder++
		return errors.Wrapf(ErrOutOfOrder, "%s frame at %s (newest %s)",
			ch, f.Timestamp.Format(time.RFC3339Nano), s.newest[ch].Format(time.RFC3339Nano))
	}
	s.seen[ch] = true
	s.newest[ch] = f.Timestamp

	queue := append(s.queues[ch], f)
	if over := len(queue) - s.cfg.QueueDepth; over > 0 {
		queue = lo.Drop(queue, over)
		s.stats.Evicted += uint64(over)
	}
	s.queues[ch] = queue

	idx, ok := s.bestCandidate()
	if !ok {
		return nil
	}

	triple := AlignedTriple{
		Annotation: s.queues[Annotation][idx[Annotation]],
		Depth:      s.queues[Depth][idx[Depth]],
		Color:      s.queues[Color][idx[Color]],
	}
	triple.MaxSkew = triple.Latest().Sub(triple.Earliest())

	// anything older than a consumed frame can only make a worse match later
	for _, c := range Channels {
		s.queues[c] = lo.Drop(s.queues[c], idx[c]+1)
	}
	s.stats.Matched++

	if s.onMatch == nil {
		return nil
	}
	return s.onMatch(triple)
}

// bestCandidate returns the queue indices of the triple with the smallest skew within the
// tolerance window. Ties go to the triple whose latest frame is earliest, then to the one
// whose earliest frame is earliest.
func (s *Synchronizer) bestCandidate() ([numChannels]int, bool) {
	var best [numChannels]int
	if lo.SomeBy(s.queues[:], func(q []Frame) bool { return len(q) == 0 }) {
		return best, false
	}

	var (
		found                 bool
		bestSkew              time.Duration
		bestLatest, bestEarly time.Time
	)
	for a, fa := range s.queues[Annotation] {
		for d, fd := range s.queues[Depth] {
			for c, fc := range s.queues[Color] {
				earliest, latest := fa.Timestamp, fa.Timestamp
				for _, ts := range []time.Time{fd.Timestamp, fc.Timestamp} {
					if ts.Before(earliest) {
						earliest = ts
					}
					if ts.After(latest) {
						latest = ts
					}
				}
				skew := latest.Sub(earliest)
				if skew > s.cfg.ToleranceWindow {
					continue
				}
				better := !found ||
					skew < bestSkew ||
					(skew == bestSkew && latest.Before(bestLatest)) ||
					(skew == bestSkew && latest.Equal(bestLatest) && earliest.Before(bestEarly))
				if better {
					found = true
					bestSkew, bestLatest, bestEarly = skew, latest, earliest
					best = [numChannels]int{a, d, c}
				}
			}
		}
	}
	return best, found
}

// Len returns the number of frames waiting on a channel.
func (s *Synchronizer) Len(c Channel) int {
	if !c.Valid() {
		return 0
	}
	return len(s.queues[c])
}

// Stats returns frame counters since creation.
func (s *Synchronizer) Stats() Stats {
	return s.stats
}
