package location

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeRoundTrip(t *testing.T) {
	for _, block := range Blocks {
		for _, level := range []int{1, 9, 14} {
			for _, plot := range []int{1, 7, 456, 999} {
				c, err := NewCode(block, level, plot)
				require.NoError(t, err)

				s := c.String()
				parsed, err := ParseCode(s)
				require.NoError(t, err, s)
				assert.Equal(t, c, parsed)
			}
		}
	}

	assert.Equal(t, "A_L1_Plot_7", MustCode("A", 1, 7).String())
	assert.Equal(t, "G_L14_Plot_456", MustCode("G", 14, 456).String())
}

func TestNewCodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		block string
		level int
		plot  int
	}{
		{"lower case block", "a", 1, 1},
		{"block H", "H", 1, 1},
		{"level zero", "A", 0, 1},
		{"level fifteen", "A", 15, 1},
		{"plot zero", "A", 1, 0},
		{"plot too large", "A", 1, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCode(tt.block, tt.level, tt.plot)
			assert.True(t, errors.Is(err, ErrInvalidCode))
		})
	}
}

func TestParseCodeRejectsForeignNames(t *testing.T) {
	for _, s := range []string{"unsorted", "A_L1_Plot_", "A-L1-Plot-7", "A_L1_Plot_7_copy", ""} {
		_, err := ParseCode(s)
		assert.Error(t, err, s)
	}
}

func TestWindowCode(t *testing.T) {
	w := WindowCode{Series: "W", Digits: "0203"}
	assert.Equal(t, "W0203", w.Key())
	assert.Equal(t, 203, w.Number())
	assert.False(t, w.IsZero())
	assert.True(t, WindowCode{Series: "W"}.IsZero())
}

func TestLoadTables(t *testing.T) {
	dir := t.TempDir()
	plotPath := filepath.Join(dir, "plot_mapping.json")
	windowPath := filepath.Join(dir, "window_mapping.yaml")

	require.NoError(t, os.WriteFile(plotPath, []byte(`{"A": {"1": ["1", "2"], "10": [82]}}`), 0o644))
	require.NoError(t, os.WriteFile(windowPath, []byte("W0118: A_L10_Plot_82\n"), 0o644))

	tables, err := LoadTables(plotPath, windowPath)
	require.NoError(t, err)

	assert.True(t, tables.HasPlot("A", 1, 2))
	assert.True(t, tables.HasPlot("A", 10, 82))
	assert.False(t, tables.HasPlot("A", 1, 3))
	assert.False(t, tables.HasPlot("B", 1, 1))
	assert.Equal(t, 3, tables.PlotCount())

	code, ok := tables.LookupWindow("W0118")
	require.True(t, ok)
	assert.Equal(t, "A_L10_Plot_82", code.String())
	assert.Equal(t, 1, tables.WindowCount())
}

func TestNewTablesRejectsBadEntries(t *testing.T) {
	_, err := NewTables(map[string]map[string][]string{"Z": {"1": {"1"}}}, nil)
	assert.Error(t, err)

	_, err = NewTables(map[string]map[string][]string{"A": {"x": {"1"}}}, nil)
	assert.Error(t, err)

	_, err = NewTables(nil, map[string]string{"W1": "not a code"})
	assert.Error(t, err)
}

func TestNilTables(t *testing.T) {
	var tables *Tables
	assert.False(t, tables.HasPlot("A", 1, 1))
	_, ok := tables.LookupWindow("W1")
	assert.False(t, ok)
}
