package capture

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	// register the pure go sqlite driver.
	_ "modernc.org/sqlite"
)

const capturesSchema = `
	CREATE TABLE IF NOT EXISTS captures (
		capture_id INTEGER PRIMARY KEY AUTOINCREMENT,
		capture_uuid TEXT NOT NULL UNIQUE,
		captured_at_ns INTEGER NOT NULL,
		annotation_ns INTEGER NOT NULL,
		depth_ns INTEGER NOT NULL,
		color_ns INTEGER NOT NULL,
		max_skew_ns INTEGER NOT NULL,
		color_width INTEGER NOT NULL,
		color_height INTEGER NOT NULL,
		depth_width INTEGER NOT NULL,
		depth_height INTEGER NOT NULL,
		valid_depth INTEGER NOT NULL,
		attempt INTEGER NOT NULL
	);
`

// SQLiteRecorder keeps a ledger of captures in a sqlite database.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder opens (or creates) the ledger database at path.
func NewSQLiteRecorder(ctx context.Context, path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening capture ledger %q", path)
	}
	if _, err := db.ExecContext(ctx, capturesSchema); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "creating captures table"), db.Close())
	}
	return &SQLiteRecorder{db: db}, nil
}

// Record inserts a capture into the ledger.
func (r *SQLiteRecorder) Record(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO captures (
			capture_uuid, captured_at_ns, annotation_ns, depth_ns, color_ns, max_skew_ns,
			color_width, color_height, depth_width, depth_height, valid_depth, attempt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CapturedAt.UnixNano(), rec.AnnotationTime.UnixNano(), rec.DepthTime.UnixNano(),
		rec.ColorTime.UnixNano(), int64(rec.MaxSkew),
		rec.ColorWidth, rec.ColorHeight, rec.DepthWidth, rec.DepthHeight, rec.ValidDepth, rec.Attempt,
	)
	return errors.Wrap(err, "recording capture")
}

// Captures returns every recorded capture, oldest first.
func (r *SQLiteRecorder) Captures(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT capture_uuid, captured_at_ns, annotation_ns, depth_ns, color_ns, max_skew_ns,
			color_width, color_height, depth_width, depth_height, valid_depth, attempt
		FROM captures ORDER BY capture_id`)
	if err != nil {
		return nil, errors.Wrap(err, "querying captures")
	}
	defer rows.Close() //nolint:errcheck

	var recs []Record
	for rows.Next() {
		var (
			rec                                      Record
			capturedAt, annotation, depth, color, ns int64
		)
		if err := rows.Scan(&rec.ID, &capturedAt, &annotation, &depth, &color, &ns,
			&rec.ColorWidth, &rec.ColorHeight, &rec.DepthWidth, &rec.DepthHeight, &rec.ValidDepth, &rec.Attempt,
		); err != nil {
			return nil, errors.Wrap(err, "scanning capture")
		}
		rec.CapturedAt = time.Unix(0, capturedAt)
		rec.AnnotationTime = time.Unix(0, annotation)
		rec.DepthTime = time.Unix(0, depth)
		rec.ColorTime = time.Unix(0, color)
		rec.MaxSkew = time.Duration(ns)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close closes the ledger database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
