package location

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tables holds the two read-only lookup tables used by the Normalizer.
//
// The plot table lists, per block and level, which plot numbers exist:
//
//	{"A": {"1": ["1", "2", "3"]}, "B": {"10": ["82"]}}
//
// The window table maps a window code to the canonical location code string:
//
//	{"W0203": "A_L1_Plot_7"}
//
// Both files are JSON in the field, which yaml.v3 decodes as-is; YAML is
// accepted as well.
type Tables struct {
	plots   map[string]map[int]map[int]struct{}
	windows map[string]Code
}

// NewTables builds Tables from already-decoded maps. Invalid entries are
// rejected so that a lookup never yields an unparsable code.
func NewTables(plots map[string]map[string][]string, windows map[string]string) (*Tables, error) {
	t := &Tables{
		plots:   make(map[string]map[int]map[int]struct{}, len(plots)),
		windows: make(map[string]Code, len(windows)),
	}

	for block, levels := range plots {
		block = strings.ToUpper(strings.TrimSpace(block))
		if !IsBlock(block) {
			return nil, fmt.Errorf("plot table: unknown block %q", block)
		}
		byLevel := t.plots[block]
		if byLevel == nil {
			byLevel = make(map[int]map[int]struct{}, len(levels))
			t.plots[block] = byLevel
		}
		for levelStr, plotList := range levels {
			level, err := strconv.Atoi(strings.TrimSpace(levelStr))
			if err != nil || level < MinLevel || level > MaxLevel {
				return nil, fmt.Errorf("plot table: block %s has invalid level %q", block, levelStr)
			}
			set := byLevel[level]
			if set == nil {
				set = make(map[int]struct{}, len(plotList))
				byLevel[level] = set
			}
			for _, plotStr := range plotList {
				plot, err := strconv.Atoi(strings.TrimSpace(plotStr))
				if err != nil || plot < MinPlot || plot > MaxPlot {
					return nil, fmt.Errorf("plot table: %s level %d has invalid plot %q", block, level, plotStr)
				}
				set[plot] = struct{}{}
			}
		}
	}

	for key, codeStr := range windows {
		code, err := ParseCode(strings.TrimSpace(codeStr))
		if err != nil {
			return nil, fmt.Errorf("window table: entry %q: %w", key, err)
		}
		t.windows[strings.ToUpper(key)] = code
	}

	return t, nil
}

// LoadTables reads the plot and window tables from disk.
func LoadTables(plotPath, windowPath string) (*Tables, error) {
	var plots map[string]map[string][]string
	if err := decodeFile(plotPath, &plots); err != nil {
		return nil, fmt.Errorf("failed to load plot table: %w", err)
	}
	var windows map[string]string
	if err := decodeFile(windowPath, &windows); err != nil {
		return nil, fmt.Errorf("failed to load window table: %w", err)
	}
	return NewTables(plots, windows)
}

func decodeFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// HasPlot reports whether plot exists on the given block and level.
func (t *Tables) HasPlot(block string, level, plot int) bool {
	if t == nil {
		return false
	}
	_, ok := t.plots[block][level][plot]
	return ok
}

// LookupWindow resolves a window code key such as "W0203".
func (t *Tables) LookupWindow(key string) (Code, bool) {
	if t == nil {
		return Code{}, false
	}
	c, ok := t.windows[key]
	return c, ok
}

// PlotCount returns the number of plots listed across all blocks and levels.
func (t *Tables) PlotCount() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, levels := range t.plots {
		for _, plots := range levels {
			n += len(plots)
		}
	}
	return n
}

func (t *Tables) WindowCount() int {
	if t == nil {
		return 0
	}
	return len(t.windows)
}
