package location

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	MinLevel = 1
	MaxLevel = 14
	MinPlot  = 1
	MaxPlot  = 999
)

// Blocks lists the valid block letters in traversal order.
var Blocks = []string{"A", "B", "C", "D", "E", "F", "G"}

var ErrInvalidCode = errors.New("invalid location code")

var codePattern = regexp.MustCompile(`^([A-G])_L(\d{1,2})_Plot_(\d{1,3})$`)

// Code identifies one inspection unit: block letter, level and plot number.
// The zero value is not a valid code.
type Code struct {
	block string
	level int
	plot  int
}

// NewCode validates and builds a Code.
func NewCode(block string, level, plot int) (Code, error) {
	if !IsBlock(block) {
		return Code{}, fmt.Errorf("%w: block %q not in A..G", ErrInvalidCode, block)
	}
	if level < MinLevel || level > MaxLevel {
		return Code{}, fmt.Errorf("%w: level %d out of range %d..%d", ErrInvalidCode, level, MinLevel, MaxLevel)
	}
	if plot < MinPlot || plot > MaxPlot {
		return Code{}, fmt.Errorf("%w: plot %d out of range %d..%d", ErrInvalidCode, plot, MinPlot, MaxPlot)
	}
	return Code{block: block, level: level, plot: plot}, nil
}

// MustCode is NewCode for literals known to be valid.
func MustCode(block string, level, plot int) Code {
	c, err := NewCode(block, level, plot)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCode parses the canonical "{block}_L{level}_Plot_{plot}" form.
func ParseCode(s string) (Code, error) {
	m := codePattern.FindStringSubmatch(s)
	if m == nil {
		return Code{}, fmt.Errorf("%w: %q", ErrInvalidCode, s)
	}
	level, _ := strconv.Atoi(m[2])
	plot, _ := strconv.Atoi(m[3])
	return NewCode(m[1], level, plot)
}

// IsBlock reports whether s is one of the seven block letters.
func IsBlock(s string) bool {
	for _, b := range Blocks {
		if s == b {
			return true
		}
	}
	return false
}

func (c Code) Block() string { return c.block }
func (c Code) Level() int    { return c.level }
func (c Code) Plot() int     { return c.plot }

// IsZero reports whether c was never constructed.
func (c Code) IsZero() bool { return c.block == "" }

func (c Code) String() string {
	if c.IsZero() {
		return ""
	}
	return c.block + "_L" + strconv.Itoa(c.level) + "_Plot_" + strconv.Itoa(c.plot)
}

// WindowCode is the secondary identifier painted next to window openings,
// e.g. series "W" number "0203". Digits keep their leading zeros because the
// lookup key is textual.
type WindowCode struct {
	Series string
	Digits string
}

// Number returns the numeric value of the window digits.
func (w WindowCode) Number() int {
	n, _ := strconv.Atoi(w.Digits)
	return n
}

// Key is the windowTable lookup key.
func (w WindowCode) Key() string {
	return w.Series + w.Digits
}

func (w WindowCode) IsZero() bool { return w.Series == "" || w.Digits == "" }

func (w WindowCode) String() string { return w.Key() }

// normalizeSeries maps the OCR letter O to the digit 0 inside window letters.
func normalizeSeries(series string) string {
	return strings.ReplaceAll(series, "O", "0")
}
