package traversal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/sitephotosync/location"
	"github.com/camden-git/sitephotosync/media"
)

const (
	// DefaultStartRow is the first data row of the location table; row 1 is
	// the header.
	DefaultStartRow        = 2
	DefaultMaxReadFailures = 5
)

type Options struct {
	StartRow int
	// MaxReadFailures ends the traversal after this many unreadable rows
	// in a row.
	MaxReadFailures int
}

func (o Options) withDefaults() Options {
	if o.StartRow <= 0 {
		o.StartRow = DefaultStartRow
	}
	if o.MaxReadFailures <= 0 {
		o.MaxReadFailures = DefaultMaxReadFailures
	}
	return o
}

// Cursor is the traversal position carried from one row to the next. Block
// and Level are the last ones seen; Level is reset by every Block row.
type Cursor struct {
	Row     int
	Block   string
	Level   int
	Filters Checkpoint

	failures int
}

// Controller walks the Block, Level and Plot rows of the location table one
// row at a time and dispatches every plot that has photos staged.
type Controller struct {
	driver     PageDriver
	dispatcher Dispatcher
	store      CheckpointStore
	opts       Options
	log        *zap.Logger
}

// NewController builds a Controller. store may be nil, in which case the
// resume point is not persisted.
func NewController(driver PageDriver, dispatcher Dispatcher, store CheckpointStore, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		driver:     driver,
		dispatcher: dispatcher,
		store:      store,
		opts:       opts.withDefaults(),
		log:        logger.Named("traversal"),
	}
}

// Run traverses the table from the start row with the given resume filters.
// The report is returned even when Run fails. Only a lost row source, a
// lost session or a cancelled context end the run with an error.
func (c *Controller) Run(ctx context.Context, bucket *media.Bucket, cp Checkpoint) (*Report, error) {
	report := NewReport()
	defer func() { report.FinishedAt = time.Now() }()

	if bucket == nil {
		bucket = media.NewBucket()
	}
	c.log.Info("starting traversal",
		zap.String("run_id", report.RunID),
		zap.String("resume", cp.String()),
		zap.Int("locations", len(bucket.Codes())),
		zap.Int("photos", bucket.Len()))

	cur := Cursor{Row: c.opts.StartRow, Filters: cp}
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		next, done, err := c.step(ctx, cur, bucket, report)
		if err != nil {
			return report, err
		}
		if done {
			break
		}
		cur = next
	}

	if report.EndOfTable && c.store != nil {
		if err := c.store.ClearCheckpoint(ctx); err != nil {
			c.log.Warn("failed to clear checkpoint", zap.Error(err))
		}
	}
	if !cur.Filters.IsZero() {
		c.log.Warn("traversal ended with resume filters still pending", zap.String("pending", cur.Filters.String()))
	}

	c.log.Info("traversal finished",
		zap.String("run_id", report.RunID),
		zap.Int("rows", report.Rows),
		zap.Bool("end_of_table", report.EndOfTable),
		zap.Int("uploaded", report.TotalUploaded()),
		zap.Int("failed", len(report.Failures())))
	return report, nil
}

// step visits cur.Row and returns the cursor for the next row. The row
// always advances by one.
func (c *Controller) step(ctx context.Context, cur Cursor, bucket *media.Bucket, report *Report) (Cursor, bool, error) {
	idx := cur.Row
	probe := c.driver.ReadCellText(ctx, idx)
	next := cur
	next.Row++

	switch probe.State() {
	case ProbeAbsent:
		if idx == c.opts.StartRow {
			return cur, true, fmt.Errorf("%w: no row at %d", ErrRowSourceLost, idx)
		}
		c.log.Info("end of location table", zap.Int("row", idx))
		report.EndOfTable = true
		return cur, true, nil
	case ProbeFailed:
		report.ReadFailures++
		if errors.Is(probe.Err(), ErrSession) {
			c.log.Error("session lost reading row, stopping traversal", zap.Int("row", idx), zap.Error(probe.Err()))
			return cur, true, probe.Err()
		}
		if idx == c.opts.StartRow {
			return cur, true, fmt.Errorf("%w: first row unreadable: %v", ErrRowSourceLost, probe.Err())
		}
		next.failures++
		c.log.Warn("cannot read row, skipping", zap.Int("row", idx), zap.Error(probe.Err()))
		if next.failures >= c.opts.MaxReadFailures {
			c.log.Error("too many unreadable rows, stopping traversal",
				zap.Int("row", idx), zap.Int("consecutive", next.failures))
			return next, true, nil
		}
		return next, false, nil
	}

	report.Rows++
	next.failures = 0
	title, _ := probe.Get()
	r := parseRow(title)
	c.log.Debug("row", zap.Int("row", idx), zap.String("title", r.title), zap.Stringer("kind", r.kind))

	switch r.kind {
	case rowBlock:
		return c.visitBlock(ctx, next, idx, r), false, nil
	case rowLevel:
		return c.visitLevel(ctx, next, idx, r), false, nil
	case rowPlot:
		return c.visitPlot(ctx, next, idx, r, bucket, report)
	default:
		return next, false, nil
	}
}

func (c *Controller) visitBlock(ctx context.Context, cur Cursor, idx int, r row) Cursor {
	cur.Block, cur.Level = r.block, 0
	cur.Filters = c.dropVanishedResume(cur.Filters, r)

	if f := cur.Filters.Block; f != "" {
		if !strings.EqualFold(f, r.block) {
			return cur
		}
		c.log.Info("reached resume block", zap.String("block", r.block), zap.Int("row", idx))
		cur.Filters.Block = ""
	}
	c.expand(ctx, idx, r)
	return cur
}

func (c *Controller) visitLevel(ctx context.Context, cur Cursor, idx int, r row) Cursor {
	cur.Level = r.number
	cur.Filters = c.dropVanishedResume(cur.Filters, r)

	if f := cur.Filters.Level; f != "" {
		if !matchNumber(f, r.number) {
			return cur
		}
		c.log.Info("reached resume level", zap.String("block", cur.Block), zap.Int("level", r.number), zap.Int("row", idx))
		cur.Filters.Level = ""
	}
	c.expand(ctx, idx, r)
	return cur
}

// dropVanishedResume clears After once the traversal leaves the level it
// was expected in without finding it.
func (c *Controller) dropVanishedResume(f Checkpoint, r row) Checkpoint {
	if f.After != "" && f.Block == "" && f.Level == "" {
		c.log.Warn("resume location not found in its level, continuing", zap.String("after", f.After), zap.String("at", r.title))
		f.After = ""
	}
	return f
}

func (c *Controller) expand(ctx context.Context, idx int, r row) {
	if err := c.driver.ClickExpand(ctx, idx); err != nil {
		c.log.Warn("failed to expand row", zap.Int("row", idx), zap.String("title", r.title), zap.Error(err))
	}
}

func (c *Controller) visitPlot(ctx context.Context, cur Cursor, idx int, r row, bucket *media.Bucket, report *Report) (Cursor, bool, error) {
	code, err := location.NewCode(cur.Block, cur.Level, r.number)
	if err != nil {
		c.log.Warn("plot row outside a known block and level", zap.Int("row", idx), zap.String("title", r.title), zap.Error(err))
		return cur, false, nil
	}
	key := code.String()

	if after := cur.Filters.After; after != "" {
		if key == after {
			c.log.Info("resuming after last dispatched location", zap.String("code", key), zap.Int("row", idx))
			cur.Filters.After = ""
		}
		return cur, false, nil
	}

	if !bucket.Has(key) {
		report.Add(Outcome{Code: key, Kind: OutcomeSkippedNoPhotos, Row: idx})
		return cur, false, nil
	}
	if f := cur.Filters.Plot; f != "" {
		if !matchNumber(f, r.number) {
			return cur, false, nil
		}
		c.log.Info("reached resume plot", zap.String("code", key), zap.Int("row", idx))
		cur.Filters.Plot = ""
	}

	outcome, err := c.dispatch(ctx, idx, code, bucket)
	report.Add(outcome)
	if err != nil {
		return cur, true, err
	}
	if outcome.succeeded() {
		c.saveCheckpoint(ctx, report.RunID, code)
	}
	return cur, false, nil
}

// dispatch runs one location to completion. The returned error is non-nil
// only when the session is lost.
func (c *Controller) dispatch(ctx context.Context, idx int, code location.Code, bucket *media.Bucket) (Outcome, error) {
	key := code.String()
	log := c.log.With(zap.String("code", key), zap.Int("row", idx))

	probe := c.driver.LocationFormState(ctx, idx)
	form := FormNone
	switch probe.State() {
	case ProbeFailed:
		log.Warn("cannot read form state", zap.Error(probe.Err()))
		out := DispatchFailed(key, "form state unreadable: "+probe.Err().Error())
		out.Row = idx
		return out, nil
	case ProbePresent:
		form, _ = probe.Get()
	}

	if form == FormCompleted {
		log.Info("form already completed, skipping")
		return Outcome{Code: key, Kind: OutcomeSkippedCompleted, Row: idx}, nil
	}

	log.Info("dispatching location", zap.Stringer("form", form), zap.Int("photos", len(bucket.Photos(key))))
	out, err := c.dispatcher.Dispatch(ctx, Target{Code: code, Row: idx, Form: form, Bucket: bucket})
	if err != nil {
		fail := DispatchFailed(key, reasonOf(err))
		fail.Row = idx
		if errors.Is(err, ErrSession) {
			log.Error("session lost, stopping traversal", zap.Error(err))
			return fail, err
		}
		log.Warn("dispatch failed", zap.Error(err))
		return fail, nil
	}

	out.Code, out.Row = key, idx
	log.Info("dispatched location", zap.Stringer("outcome", out))
	return out, nil
}

func (c *Controller) saveCheckpoint(ctx context.Context, runID string, code location.Code) {
	if c.store == nil {
		return
	}
	saved := SavedCheckpoint{RunID: runID, LastCode: code, SavedAt: time.Now()}
	if err := c.store.SaveCheckpoint(ctx, saved); err != nil {
		c.log.Warn("failed to persist checkpoint", zap.String("code", code.String()), zap.Error(err))
	}
}
