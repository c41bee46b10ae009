package traversal

import (
	"strconv"
	"strings"

	"github.com/camden-git/sitephotosync/location"
)

type rowKind int

const (
	rowUnknown rowKind = iota
	rowBlock
	rowLevel
	rowPlot
)

func (k rowKind) String() string {
	switch k {
	case rowBlock:
		return "block"
	case rowLevel:
		return "level"
	case rowPlot:
		return "plot"
	default:
		return "unknown"
	}
}

// row is a parsed location title. Title is lower-cased with single spaces.
type row struct {
	kind   rowKind
	title  string
	block  string
	number int
}

// parseRow classifies a title by keyword; the value is its last word.
func parseRow(raw string) row {
	fields := strings.Fields(strings.ToLower(raw))
	r := row{title: strings.Join(fields, " ")}
	if len(fields) < 2 {
		return r
	}
	last := fields[len(fields)-1]

	switch {
	case strings.Contains(r.title, "block"):
		letter := strings.ToUpper(last)
		if location.IsBlock(letter) {
			r.kind, r.block = rowBlock, letter
		}
	case strings.Contains(r.title, "level"):
		if n, err := strconv.Atoi(last); err == nil {
			r.kind, r.number = rowLevel, n
		}
	case strings.Contains(r.title, "plot"):
		if n, err := strconv.Atoi(last); err == nil {
			r.kind, r.number = rowPlot, n
		}
	}
	return r
}
