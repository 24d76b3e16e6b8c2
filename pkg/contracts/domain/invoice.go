package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metadata holds the labeled fields recovered from an invoice sheet.
// A nil field means the label was not found or its value did not parse;
// empty strings are never used as an absence marker.
type Metadata struct {
	Agent       *string    `json:"agent,omitempty"`
	Vessel      *string    `json:"vessel,omitempty"`
	InvoiceDate *time.Time `json:"invoice_date,omitempty"`
}

// ProductLine is one validated row of the extracted product table.
// UnitPrice and TotalValue are decimal because they are money; Quantity stays
// a float because spreadsheets routinely carry fractional quantities.
type ProductLine struct {
	SequenceNo  int             `json:"sequence_no" csv:"NO"`
	Description string          `json:"description" csv:"PRODUCT DESCRIPTION"`
	UnitPrice   decimal.Decimal `json:"unit_price" csv:"UNIT/PRC"`
	Unit        string          `json:"unit,omitempty" csv:"UNIT"`
	Quantity    float64         `json:"quantity" csv:"QTY"`
	TotalValue  decimal.Decimal `json:"total_value" csv:"TOTAL USD"`
}

// ProductTable is the ordered sequence of lines extracted from one sheet.
type ProductTable struct {
	Lines []ProductLine `json:"lines"`
}

// IsEmpty reports whether the extraction found no valid product lines.
func (t ProductTable) IsEmpty() bool {
	return len(t.Lines) == 0
}

// CombinedLine is a product line tagged with its provenance. The tags are
// added at aggregation time and are not part of the single-file shape.
type CombinedLine struct {
	ProductLine
	SourceFile  string     `json:"source_file" csv:"SOURCE_FILE"`
	InvoiceDate *time.Time `json:"invoice_date,omitempty" csv:"-"`
}

// CombinedDataset is the concatenation of product tables from multiple
// source files, in file order then original row order. Identical
// descriptions from different files stay distinct rows.
type CombinedDataset struct {
	Lines []CombinedLine `json:"lines"`
}

// Products projects the dataset back to plain product lines, dropping the
// provenance tags.
func (d CombinedDataset) Products() []ProductLine {
	lines := make([]ProductLine, len(d.Lines))
	for i, l := range d.Lines {
		lines[i] = l.ProductLine
	}
	return lines
}

// FromTable builds a combined dataset from a single table, tagging every
// line with the given source file and invoice date.
func FromTable(table ProductTable, sourceFile string, invoiceDate *time.Time) CombinedDataset {
	ds := CombinedDataset{Lines: make([]CombinedLine, 0, len(table.Lines))}
	for _, line := range table.Lines {
		ds.Lines = append(ds.Lines, CombinedLine{
			ProductLine: line,
			SourceFile:  sourceFile,
			InvoiceDate: invoiceDate,
		})
	}
	return ds
}
