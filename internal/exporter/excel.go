package exporter

import (
	"github.com/xuri/excelize/v2"

	apperrors "invoicelens/internal/errors"
	"invoicelens/pkg/contracts/domain"
)

// exportSheet is the sheet name of a combined-table download.
const exportSheet = "Batch_Product_Table"

// combinedHeader preserves the extracted column order plus the provenance
// tags added in batch mode.
var combinedHeader = []interface{}{"NO", "PRODUCT DESCRIPTION", "UNIT/PRC", "UNIT", "QTY", "TOTAL USD", "INVOICE_DATE", "SOURCE_FILE"}

// WriteWorkbook serializes a combined dataset to an xlsx byte stream.
// Column order is the only schema.
func WriteWorkbook(ds domain.CombinedDataset) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, apperrors.NewStorageError("rename export sheet", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &combinedHeader); err != nil {
		return nil, apperrors.NewStorageError("write export header", err)
	}

	for i, line := range ds.Lines {
		date := ""
		if line.InvoiceDate != nil {
			date = line.InvoiceDate.Format("2006-01-02")
		}
		row := []interface{}{
			line.SequenceNo,
			line.Description,
			line.UnitPrice.InexactFloat64(),
			line.Unit,
			line.Quantity,
			line.TotalValue.InexactFloat64(),
			date,
			line.SourceFile,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, apperrors.NewStorageError("resolve export cell", err)
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, apperrors.NewStorageError("write export row", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, apperrors.NewStorageError("serialize export workbook", err)
	}
	return buf.Bytes(), nil
}
