package capture

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestSQLiteRecorder(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "captures.db")
	r, err := NewSQLiteRecorder(ctx, path)
	test.That(t, err, test.ShouldBeNil)

	recs, err := r.Captures(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, recs, test.ShouldBeEmpty)

	rec := Record{
		ID:             "first",
		CapturedAt:     at(1000),
		AnnotationTime: at(100),
		DepthTime:      at(140),
		ColorTime:      at(90),
		MaxSkew:        50 * time.Millisecond,
		ColorWidth:     640,
		ColorHeight:    480,
		DepthWidth:     640,
		DepthHeight:    480,
		ValidDepth:     1234,
		Attempt:        2,
	}
	test.That(t, r.Record(ctx, rec), test.ShouldBeNil)
	test.That(t, r.Close(), test.ShouldBeNil)

	// the ledger survives reopening
	r, err = NewSQLiteRecorder(ctx, path)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, r.Close(), test.ShouldBeNil)
	}()
	// capture ids are unique
	test.That(t, r.Record(ctx, rec), test.ShouldNotBeNil)
	rec.ID = "second"
	test.That(t, r.Record(ctx, rec), test.ShouldBeNil)

	recs, err = r.Captures(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, recs, test.ShouldHaveLength, 2)
	got := recs[0]
	test.That(t, got.ID, test.ShouldEqual, "first")
	test.That(t, recs[1].ID, test.ShouldEqual, "second")
	test.That(t, got.CapturedAt.Equal(rec.CapturedAt), test.ShouldBeTrue)
	test.That(t, got.AnnotationTime.Equal(rec.AnnotationTime), test.ShouldBeTrue)
	test.That(t, got.DepthTime.Equal(rec.DepthTime), test.ShouldBeTrue)
	test.That(t, got.ColorTime.Equal(rec.ColorTime), test.ShouldBeTrue)
	test.That(t, got.MaxSkew, test.ShouldEqual, rec.MaxSkew)
	test.That(t, got.ColorWidth, test.ShouldEqual, 640)
	test.That(t, got.DepthHeight, test.ShouldEqual, 480)
	test.That(t, got.ValidDepth, test.ShouldEqual, 1234)
	test.That(t, got.Attempt, test.ShouldEqual, 2)
}
