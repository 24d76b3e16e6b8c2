// Package grid loads a worksheet into an untyped 2-D cell grid and puts a
// typed boundary around the loosely-typed values excelize hands back.
package grid

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Kind identifies the value held by a Cell.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindDate
)

// Cell is a tagged union over the value types a spreadsheet cell can carry.
// Coercion to a target type is explicit via the As* methods; there is no
// implicit everything-is-a-string fallback past this boundary.
type Cell struct {
	kind   Kind
	text   string
	number float64
	date   time.Time
}

// Empty returns the empty cell.
func Empty() Cell { return Cell{kind: KindEmpty} }

// Text returns a text cell. The raw value is kept untrimmed; trimming is a
// coercion concern.
func Text(s string) Cell { return Cell{kind: KindText, text: s} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{kind: KindNumber, number: f} }

// Date returns a date cell.
func Date(t time.Time) Cell { return Cell{kind: KindDate, date: t} }

// Kind reports the cell's value type.
func (c Cell) Kind() Kind { return c.kind }

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool { return c.kind == KindEmpty }

// AsText returns the cell rendered as text. Numbers and dates render with
// their canonical formats; empty cells report false.
func (c Cell) AsText() (string, bool) {
	switch c.kind {
	case KindText:
		return c.text, true
	case KindNumber:
		return strconv.FormatFloat(c.number, 'f', -1, 64), true
	case KindDate:
		return c.date.Format("2006-01-02"), true
	default:
		return "", false
	}
}

// AsNumber returns the cell's numeric value. Only cells the workbook itself
// typed as numeric qualify; a text cell that merely contains digits does not.
func (c Cell) AsNumber() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return c.number, true
}

// AsDecimal coerces the cell to a decimal for money fields. Unlike AsNumber
// it accepts numeric-looking text, because price columns are frequently
// stored as formatted strings; thousands separators are tolerated.
func (c Cell) AsDecimal() (decimal.Decimal, bool) {
	switch c.kind {
	case KindNumber:
		return decimal.NewFromFloat(c.number), true
	case KindText:
		s := strings.ReplaceAll(strings.TrimSpace(c.text), ",", "")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}

// AsFloat is AsDecimal's float counterpart for non-money numeric fields.
func (c Cell) AsFloat() (float64, bool) {
	if f, ok := c.AsNumber(); ok {
		return f, true
	}
	if c.kind == KindText {
		s := strings.ReplaceAll(strings.TrimSpace(c.text), ",", "")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// dateLayouts are the human date formats seen in the invoice sheets.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2 January 2006",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
	"01-02-06",
}

// AsDate coerces the cell to a date. Date cells pass through, numeric cells
// are treated as Excel serial dates, and text cells are tried against the
// known layouts. Failure reports false, never an error.
func (c Cell) AsDate() (time.Time, bool) {
	switch c.kind {
	case KindDate:
		return c.date, true
	case KindNumber:
		t, err := excelize.ExcelDateToTime(c.number, false)
		if err != nil || t.Year() < 1900 {
			return time.Time{}, false
		}
		return t, true
	case KindText:
		s := strings.TrimSpace(c.text)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// Normalized returns the cell's text trimmed and upper-cased, the form used
// to match marker tokens such as "AGENT" or "NO".
func (c Cell) Normalized() string {
	s, ok := c.AsText()
	if !ok {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(s))
}
