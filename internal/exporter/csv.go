package exporter

import (
	"github.com/gocarina/gocsv"

	apperrors "invoicelens/internal/errors"
	"invoicelens/pkg/contracts/domain"
)

// csvLine is the flat CSV projection of a combined line. gocsv drives the
// header names from the tags, which mirror the source column names.
type csvLine struct {
	SequenceNo  int     `csv:"NO"`
	Description string  `csv:"PRODUCT DESCRIPTION"`
	UnitPrice   string  `csv:"UNIT/PRC"`
	Unit        string  `csv:"UNIT"`
	Quantity    float64 `csv:"QTY"`
	TotalValue  string  `csv:"TOTAL USD"`
	InvoiceDate string  `csv:"INVOICE_DATE"`
	SourceFile  string  `csv:"SOURCE_FILE"`
}

// WriteCSV serializes a combined dataset to CSV, preserving column order.
func WriteCSV(ds domain.CombinedDataset) ([]byte, error) {
	lines := make([]csvLine, 0, len(ds.Lines))
	for _, l := range ds.Lines {
		date := ""
		if l.InvoiceDate != nil {
			date = l.InvoiceDate.Format("2006-01-02")
		}
		lines = append(lines, csvLine{
			SequenceNo:  l.SequenceNo,
			Description: l.Description,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Unit:        l.Unit,
			Quantity:    l.Quantity,
			TotalValue:  l.TotalValue.StringFixed(2),
			InvoiceDate: date,
			SourceFile:  l.SourceFile,
		})
	}

	out, err := gocsv.MarshalBytes(&lines)
	if err != nil {
		return nil, apperrors.NewStorageError("serialize CSV export", err)
	}
	return out, nil
}
