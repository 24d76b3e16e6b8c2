// Package exporter serializes analysis results back into spreadsheet and
// CSV form: the fixed-layout filled invoice template and plain table
// downloads.
package exporter

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	apperrors "invoicelens/internal/errors"
	"invoicelens/pkg/contracts/domain"
)

// Fixed template layout. Agent and vessel go into two fixed cells and the
// product lines into six fixed columns from a fixed row offset; this is the
// template file's contract, not something discovered at runtime.
const (
	templateAgentCell  = "A2"
	templateVesselCell = "B2"
	templateFirstRow   = 10
)

// FillTemplate opens the template workbook, writes the metadata fields and
// product lines into their fixed positions, and returns the filled
// document. A missing or unreadable template propagates to the caller, who
// downgrades it to a disabled download rather than a failed analysis.
func FillTemplate(templatePath string, meta domain.Metadata, lines []domain.ProductLine) ([]byte, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("template file %q not found", templatePath), err)
	}

	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return nil, apperrors.NewStorageError("open template workbook", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if meta.Agent != nil {
		if err := f.SetCellValue(sheet, templateAgentCell, *meta.Agent); err != nil {
			return nil, apperrors.NewStorageError("write agent cell", err)
		}
	}
	if meta.Vessel != nil {
		if err := f.SetCellValue(sheet, templateVesselCell, *meta.Vessel); err != nil {
			return nil, apperrors.NewStorageError("write vessel cell", err)
		}
	}

	for i, line := range lines {
		row := templateFirstRow + i
		values := []interface{}{
			line.SequenceNo,
			line.Description,
			line.UnitPrice.InexactFloat64(),
			line.Unit,
			line.Quantity,
			line.TotalValue.InexactFloat64(),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, apperrors.NewStorageError("resolve template cell", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, apperrors.NewStorageError("write product line cell", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, apperrors.NewStorageError("serialize filled template", err)
	}
	return buf.Bytes(), nil
}
