package exporter

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "invoicelens/internal/errors"
	"invoicelens/pkg/contracts/domain"
)

func sampleDataset() domain.CombinedDataset {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return domain.CombinedDataset{Lines: []domain.CombinedLine{
		{
			ProductLine: domain.ProductLine{
				SequenceNo:  1,
				Description: "Widget",
				UnitPrice:   decimal.NewFromFloat(2.5),
				Unit:        "pcs",
				Quantity:    10,
				TotalValue:  decimal.NewFromFloat(25),
			},
			SourceFile:  "jan.xlsx",
			InvoiceDate: &date,
		},
		{
			ProductLine: domain.ProductLine{
				SequenceNo:  2,
				Description: "Gadget",
				UnitPrice:   decimal.NewFromFloat(5),
				Unit:        "pcs",
				Quantity:    4,
				TotalValue:  decimal.NewFromFloat(20),
			},
			SourceFile: "feb.xlsx",
		},
	}}
}

func TestWriteWorkbook(t *testing.T) {
	data, err := WriteWorkbook(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "NO", rows[0][0])
	assert.Equal(t, "SOURCE_FILE", rows[0][7])

	assert.Equal(t, "Widget", rows[1][1])
	assert.Equal(t, "2024-03-15", rows[1][6])
	assert.Equal(t, "jan.xlsx", rows[1][7])

	// Undated lines export an empty date column, not a sentinel.
	assert.Equal(t, "Gadget", rows[2][1])
	assert.Equal(t, "feb.xlsx", rows[2][7])
}

func TestWriteCSV(t *testing.T) {
	data, err := WriteCSV(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "NO,PRODUCT DESCRIPTION,UNIT/PRC,UNIT,QTY,TOTAL USD,INVOICE_DATE,SOURCE_FILE", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "Widget")
	assert.Contains(t, lines[1], "2.50")
	assert.Contains(t, lines[1], "2024-03-15")
}

func TestFillTemplate(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "template.xlsx")

	tpl := excelize.NewFile()
	require.NoError(t, tpl.SaveAs(templatePath))

	agent, vessel := "ACME", "MV Star"
	meta := domain.Metadata{Agent: &agent, Vessel: &vessel}

	out, err := FillTemplate(templatePath, meta, sampleDataset().Products())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	sheet := f.GetSheetName(0)

	got, err := f.GetCellValue(sheet, templateAgentCell)
	require.NoError(t, err)
	assert.Equal(t, "ACME", got)

	got, err = f.GetCellValue(sheet, templateVesselCell)
	require.NoError(t, err)
	assert.Equal(t, "MV Star", got)

	desc, err := f.GetCellValue(sheet, "B10")
	require.NoError(t, err)
	assert.Equal(t, "Widget", desc)

	desc, err = f.GetCellValue(sheet, "B11")
	require.NoError(t, err)
	assert.Equal(t, "Gadget", desc)

	qty, err := f.GetCellValue(sheet, "E10")
	require.NoError(t, err)
	assert.Equal(t, "10", qty)
}

func TestFillTemplateMissingMetadata(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "template.xlsx")
	tpl := excelize.NewFile()
	require.NoError(t, tpl.SaveAs(templatePath))

	// Absent agent and vessel leave the fixed cells untouched.
	out, err := FillTemplate(templatePath, domain.Metadata{}, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetCellValue(f.GetSheetName(0), templateAgentCell)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFillTemplateMissing(t *testing.T) {
	_, err := FillTemplate(filepath.Join(t.TempDir(), "nope.xlsx"), domain.Metadata{}, nil)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeNotFound, appErr.Type)
}
