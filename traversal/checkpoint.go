package traversal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/camden-git/sitephotosync/location"
)

// Checkpoint holds the pending resume filters. A filter is cleared the
// first time it matches, after which rows are processed normally. An empty
// filter never blocks.
//
// Block is a lower-case letter as it appears in row titles ("block c");
// Level and Plot are two-digit numbers ("07").
type Checkpoint struct {
	Block string
	Level string
	Plot  string

	// After names a location that was already dispatched. Plots are skipped
	// up to and including it, whether or not they have photos staged.
	After string
}

// NewCheckpoint validates operator input. Empty strings mean no filter.
func NewCheckpoint(block, level, plot string) (Checkpoint, error) {
	var cp Checkpoint

	if b := strings.ToUpper(strings.TrimSpace(block)); b != "" {
		if !location.IsBlock(b) {
			return Checkpoint{}, fmt.Errorf("%w: block %q not in A..G", ErrInvalidFilter, block)
		}
		cp.Block = strings.ToLower(b)
	}

	var err error
	if cp.Level, err = padFilter("level", level, location.MinLevel, location.MaxLevel); err != nil {
		return Checkpoint{}, err
	}
	if cp.Plot, err = padFilter("plot", plot, location.MinPlot, location.MaxPlot); err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

// ResumeAfter builds the checkpoint that continues a traversal right after
// code was dispatched.
func ResumeAfter(code location.Code) Checkpoint {
	return Checkpoint{
		Block: strings.ToLower(code.Block()),
		Level: fmt.Sprintf("%02d", code.Level()),
		After: code.String(),
	}
}

func padFilter(name, raw string, min, max int) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return "", fmt.Errorf("%w: %s %q not in %d..%d", ErrInvalidFilter, name, raw, min, max)
	}
	return fmt.Sprintf("%02d", n), nil
}

// IsZero reports whether no filter is pending.
func (c Checkpoint) IsZero() bool {
	return c.Block == "" && c.Level == "" && c.Plot == "" && c.After == ""
}

func (c Checkpoint) String() string {
	if c.IsZero() {
		return "start"
	}
	var parts []string
	if c.Block != "" {
		parts = append(parts, "block "+c.Block)
	}
	if c.Level != "" {
		parts = append(parts, "level "+c.Level)
	}
	if c.Plot != "" {
		parts = append(parts, "plot "+c.Plot)
	}
	if c.After != "" {
		parts = append(parts, "after "+c.After)
	}
	return strings.Join(parts, ", ")
}

// matchNumber compares a zero-padded filter with a row number.
func matchNumber(filter string, n int) bool {
	want, err := strconv.Atoi(filter)
	return err == nil && want == n
}

// SavedCheckpoint is the resume point persisted after each successful
// dispatch.
type SavedCheckpoint struct {
	RunID    string
	LastCode location.Code
	SavedAt  time.Time
}

// Checkpoint returns the filters that resume after the saved location.
func (s SavedCheckpoint) Checkpoint() Checkpoint {
	return ResumeAfter(s.LastCode)
}

// CheckpointStore persists the resume point across process restarts.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp SavedCheckpoint) error
	// LoadCheckpoint reports false when nothing is saved.
	LoadCheckpoint(ctx context.Context) (SavedCheckpoint, bool, error)
	ClearCheckpoint(ctx context.Context) error
}
