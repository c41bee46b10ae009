package location

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// MinTextLength is the shortest cleaned OCR text worth parsing.
const MinTextLength = 4

var ErrUnclassified = errors.New("unclassified")

// ClassificationError explains why a text fragment could not be mapped to a location.
type ClassificationError struct {
	Text   string
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed for %q: %s", e.Text, e.Reason)
}

func (e *ClassificationError) Unwrap() error { return ErrUnclassified }

// Kind tells how a Result was obtained.
type Kind int

const (
	Unclassified Kind = iota
	// Direct means the code was parsed from the text and confirmed by the plot table.
	Direct
	// ViaWindow means the code came from the window table.
	ViaWindow
)

func (k Kind) String() string {
	switch k {
	case Direct:
		return "direct"
	case ViaWindow:
		return "window"
	default:
		return "unclassified"
	}
}

// Result is the outcome of Classify. Code is set unless Kind is Unclassified.
type Result struct {
	Kind   Kind
	Code   Code
	Window WindowCode
	Text   string
	Err    error
}

func (r Result) OK() bool { return r.Kind != Unclassified }

// Folder returns the sorting folder name for the result: the canonical code,
// or "unsorted".
func (r Result) Folder() string {
	if !r.OK() {
		return UnsortedFolder
	}
	return r.Code.String()
}

// UnsortedFolder receives photos whose text could not be classified.
const UnsortedFolder = "unsorted"

// fragment is what a single parser extracts from cleaned text. Plot is empty
// when the pattern carries no plot digits.
type fragment struct {
	block  string
	level  int
	plot   string
	window WindowCode
}

type parser struct {
	name string
	fn   func(text string) (fragment, bool)
}

const (
	blockPrefix  = `^(?:BLOCK)?([A-G])`
	levelMarker  = `(?:L|LV|LEV|LVL)`
	levelDigits  = `(1[0-4]|[1-9]|I|L)`
	plotMarker   = `(?:PLOT|PLT|PL|PT|P)`
	plotDigits   = `(\d{1,3})`
	windowLetter = `([A-Z]+)`
	windowDigits = `(\d{1,4})`
)

var (
	// location code, trailing window info optional
	plotFirstPattern = regexp.MustCompile(blockPrefix + levelMarker + levelDigits + plotMarker + `?` + plotDigits + windowLetter + `?` + windowDigits + `?`)
	// window info embedded before the plot marker
	windowFirstPattern = regexp.MustCompile(blockPrefix + levelMarker + levelDigits + windowLetter + windowDigits + plotMarker + plotDigits)
	// plot marker followed by window info, no plot digits
	windowOnlyPattern = regexp.MustCompile(blockPrefix + levelMarker + levelDigits + plotMarker + windowLetter + windowDigits)
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Z0-9]+`)

// parsers are tried in order; the first match wins.
var parsers = []parser{
	{name: "plot-first", fn: func(text string) (fragment, bool) {
		m := plotFirstPattern.FindStringSubmatch(text)
		if m == nil {
			return fragment{}, false
		}
		return fragment{block: m[1], level: parseLevel(m[2]), plot: m[3], window: WindowCode{Series: m[4], Digits: m[5]}}, true
	}},
	{name: "window-first", fn: func(text string) (fragment, bool) {
		m := windowFirstPattern.FindStringSubmatch(text)
		if m == nil {
			return fragment{}, false
		}
		return fragment{block: m[1], level: parseLevel(m[2]), plot: m[5], window: WindowCode{Series: m[3], Digits: m[4]}}, true
	}},
	{name: "window-only", fn: func(text string) (fragment, bool) {
		m := windowOnlyPattern.FindStringSubmatch(text)
		if m == nil {
			return fragment{}, false
		}
		return fragment{block: m[1], level: parseLevel(m[2]), window: WindowCode{Series: m[3], Digits: m[4]}}, true
	}},
}

// parseLevel reads level digits; I and L are OCR misreads of 1.
func parseLevel(s string) int {
	if s == "I" || s == "L" {
		return 1
	}
	n, _ := strconv.Atoi(s)
	return n
}

// Clean upper-cases text and strips everything but letters and digits.
func Clean(raw string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToUpper(raw), "")
}

// Normalizer maps OCR text fragments to location codes.
type Normalizer struct {
	tables *Tables
	log    *zap.Logger
}

func NewNormalizer(tables *Tables, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{tables: tables, log: logger.Named("location")}
}

// Classify parses raw OCR text. It never fails hard: anything that cannot be
// mapped comes back as Unclassified with Err describing why.
func (n *Normalizer) Classify(raw string) Result {
	text := Clean(raw)
	if len(text) < MinTextLength {
		return n.unclassified(text, "text too short")
	}

	for _, p := range parsers {
		frag, ok := p.fn(text)
		if !ok {
			continue
		}
		n.log.Debug("pattern matched",
			zap.String("text", text),
			zap.String("parser", p.name),
			zap.String("block", frag.block),
			zap.Int("level", frag.level),
			zap.String("plot", frag.plot),
			zap.String("window", frag.window.Key()))
		return n.resolve(text, frag)
	}

	return n.unclassified(text, "no pattern matched")
}

func (n *Normalizer) resolve(text string, frag fragment) Result {
	if frag.plot != "" {
		plot, err := strconv.Atoi(frag.plot)
		if err == nil && n.tables.HasPlot(frag.block, frag.level, plot) {
			code, err := NewCode(frag.block, frag.level, plot)
			if err == nil {
				return Result{Kind: Direct, Code: code, Window: n.normalizeWindow(frag.window), Text: text}
			}
		}
		n.log.Debug("plot not in plot table, trying window code",
			zap.String("block", frag.block), zap.Int("level", frag.level), zap.String("plot", frag.plot))
	}

	if frag.window.IsZero() {
		return n.unclassified(text, fmt.Sprintf("plot %q not found on %s level %d and no window code", frag.plot, frag.block, frag.level))
	}

	window := n.normalizeWindow(frag.window)
	for _, key := range windowKeys(window) {
		if code, ok := n.tables.LookupWindow(key); ok {
			return Result{Kind: ViaWindow, Code: code, Window: WindowCode{Series: strings.TrimSuffix(key, window.Digits), Digits: window.Digits}, Text: text}
		}
	}
	return n.unclassified(text, fmt.Sprintf("window %s not found", window.Key()))
}

func (n *Normalizer) normalizeWindow(w WindowCode) WindowCode {
	if w.IsZero() {
		return WindowCode{}
	}
	return WindowCode{Series: normalizeSeries(w.Series), Digits: w.Digits}
}

// windowKeys lists the lookup keys to try for w. A leading I or L in a
// multi-letter series is usually a misread separator digit, so the series
// without it is tried second.
func windowKeys(w WindowCode) []string {
	keys := []string{w.Key()}
	if len(w.Series) > 1 && (w.Series[0] == 'I' || w.Series[0] == 'L') {
		keys = append(keys, w.Series[1:]+w.Digits)
	}
	return keys
}

func (n *Normalizer) unclassified(text, reason string) Result {
	err := &ClassificationError{Text: text, Reason: reason}
	n.log.Debug("unclassified", zap.String("text", text), zap.String("reason", reason))
	return Result{Kind: Unclassified, Text: text, Err: err}
}
