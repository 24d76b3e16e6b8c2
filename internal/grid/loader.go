package grid

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrSheetNotFound is returned when the named worksheet is absent.
	ErrSheetNotFound = errors.New("worksheet not found")
	// ErrUnreadableFile is returned when the byte stream is not a valid
	// spreadsheet container.
	ErrUnreadableFile = errors.New("unreadable spreadsheet file")
)

// Grid is an immutable 2-D sequence of cells as read from one worksheet.
// Row 0 is the sheet's first row verbatim; no header row is consumed.
// Positions only become meaningful relative to discovered marker rows.
type Grid struct {
	rows [][]Cell
}

// RowCount returns the number of rows in the grid.
func (g *Grid) RowCount() int { return len(g.rows) }

// Row returns the cells of row i. Out-of-range indexes return nil.
func (g *Grid) Row(i int) []Cell {
	if i < 0 || i >= len(g.rows) {
		return nil
	}
	return g.rows[i]
}

// CellAt returns the cell at (row, col), or the empty cell when the sheet is
// ragged and the position does not exist.
func (g *Grid) CellAt(row, col int) Cell {
	r := g.Row(row)
	if col < 0 || col >= len(r) {
		return Empty()
	}
	return r[col]
}

// Load reads the named worksheet from an xlsx byte stream into a Grid.
// It fails with ErrUnreadableFile for invalid containers and
// ErrSheetNotFound for a missing sheet; it has no other side effects.
func Load(r io.Reader, sheet string) (*Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	// Classification works on stored values, not display strings: a currency
	// or padded-integer format must not turn a numeric cell into text.
	rawRows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	g := &Grid{rows: make([][]Cell, len(rows))}
	for ri, row := range rows {
		cells := make([]Cell, len(row))
		var rawRow []string
		if ri < len(rawRows) {
			rawRow = rawRows[ri]
		}
		for ci, formatted := range row {
			raw := formatted
			if ci < len(rawRow) {
				raw = rawRow[ci]
			}
			cells[ci] = typedCell(f, sheet, ri, ci, formatted, raw)
		}
		g.rows[ri] = cells
	}
	return g, nil
}

// FromRows builds a grid directly from typed cells. Used by tests and by
// callers that already hold an in-memory table.
func FromRows(rows [][]Cell) *Grid {
	return &Grid{rows: rows}
}

// typedCell classifies one cell using the workbook's own cell type and the
// stored (unformatted) value; the formatted string only survives as the
// text rendering. Shared and inline strings stay text even when they look
// numeric; only workbook-typed numeric cells become numbers. That
// distinction drives the contiguous-numeric-run rule downstream.
func typedCell(f *excelize.File, sheet string, row, col int, formatted, raw string) Cell {
	if strings.TrimSpace(raw) == "" {
		return Empty()
	}

	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return Text(formatted)
	}
	ct, err := f.GetCellType(sheet, name)
	if err == nil {
		switch ct {
		case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeError:
			return Text(formatted)
		case excelize.CellTypeDate:
			c := Text(raw)
			if t, ok := c.AsDate(); ok {
				return Date(t)
			}
			return Text(formatted)
		}
	}

	// Unset or numeric cell type: the stored value decides.
	if n, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64); perr == nil {
		return Number(n)
	}
	return Text(formatted)
}
