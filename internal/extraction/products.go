package extraction

import (
	"fmt"

	"invoicelens/internal/grid"
	"invoicelens/internal/infrastructure"
	"invoicelens/pkg/contracts/domain"
)

// tableColumns is the fixed arity of the product table. The six-column
// order (NO, PRODUCT DESCRIPTION, UNIT/PRC, UNIT, QTY, TOTAL USD) is an
// external contract of the upstream invoice template, not something this
// extractor infers from headers.
const tableColumns = 6

// RejectedRow records one body row that was dropped, with the grid row
// index and the reason. Dropping malformed rows is policy, not failure;
// the list exists so callers can surface data-quality warnings.
type RejectedRow struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
}

// Result carries the retained product lines together with the rows the
// extractor discarded.
type Result struct {
	Table    domain.ProductTable `json:"table"`
	Rejected []RejectedRow       `json:"rejected,omitempty"`
}

// ExtractProducts locates the product table in the grid and recovers its
// typed lines.
//
// The header marker is the first row whose first cell normalizes to "NO";
// with no marker the result is an empty table. The body is the contiguous
// run of rows after the marker whose first cell is a numeric cell — a text
// cell that merely contains digits ends the run, which is what stops the
// extractor at trailing footer and subtotal rows. Rows without a
// description, and rows where unit price, quantity, or total value fail
// numeric coercion, are dropped: strict on the financial fields, lenient on
// everything else.
func ExtractProducts(g *grid.Grid) *Result {
	res := &Result{}

	marker := -1
	for i := 0; i < g.RowCount(); i++ {
		if g.CellAt(i, 0).Normalized() == markerTable {
			marker = i
			break
		}
	}
	if marker < 0 {
		return res
	}

	for i := marker + 1; i < g.RowCount(); i++ {
		seq, ok := g.CellAt(i, 0).AsNumber()
		if !ok {
			break
		}

		line, reason := buildLine(g, i, int(seq))
		if reason != "" {
			res.Rejected = append(res.Rejected, RejectedRow{RowIndex: i, Reason: reason})
			infrastructure.RowsRejected.WithLabelValues(reason).Inc()
			continue
		}
		res.Table.Lines = append(res.Table.Lines, line)
	}
	return res
}

func buildLine(g *grid.Grid, row, seq int) (domain.ProductLine, string) {
	desc, ok := trimmedText(g.CellAt(row, 1))
	if !ok {
		return domain.ProductLine{}, "missing description"
	}

	unitPrice, ok := g.CellAt(row, 2).AsDecimal()
	if !ok {
		return domain.ProductLine{}, "unparseable unit price"
	}
	qty, ok := g.CellAt(row, 4).AsFloat()
	if !ok {
		return domain.ProductLine{}, "unparseable quantity"
	}
	total, ok := g.CellAt(row, 5).AsDecimal()
	if !ok {
		return domain.ProductLine{}, "unparseable total value"
	}

	unit := ""
	if u, ok := trimmedText(g.CellAt(row, 3)); ok {
		unit = u
	}

	return domain.ProductLine{
		SequenceNo:  seq,
		Description: desc,
		UnitPrice:   unitPrice,
		Unit:        unit,
		Quantity:    qty,
		TotalValue:  total,
	}, ""
}

// String makes rejection rows readable in logs.
func (r RejectedRow) String() string {
	return fmt.Sprintf("row %d: %s", r.RowIndex, r.Reason)
}
