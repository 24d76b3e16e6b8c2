package batch

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildInvoice returns the bytes of a workbook with the standard invoice
// layout on the given sheet. products is (description, qty, price) triples.
func buildInvoice(t *testing.T, sheet, agent, dod string, products [][3]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))

	rows := [][]interface{}{
		{"AGENT", agent},
		{"DOD", dod},
		{"NO", "PRODUCT DESCRIPTION", "UNIT/PRC", "UNIT", "QTY", "TOTAL USD"},
	}
	for i, p := range products {
		price := p[2].(float64)
		qty := p[1].(float64)
		rows = append(rows, []interface{}{i + 1, p[0], price, "pcs", qty, price * qty})
	}
	rows = append(rows, []interface{}{"Total", "", "", "", "", ""})

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestAggregate(t *testing.T) {
	a := buildInvoice(t, "analysis", "ACME", "2024-01-15", [][3]interface{}{
		{"Widget", 10.0, 2.5},
		{"Gadget", 4.0, 5.0},
	})
	b := buildInvoice(t, "analysis", "OTHER", "2024-02-15", [][3]interface{}{
		{"Widget", 6.0, 2.5},
	})

	agg := NewAggregator("analysis", 1, nil)
	res, err := agg.Aggregate(context.Background(), []Source{
		{Name: "jan.xlsx", Reader: bytes.NewReader(a)},
		{Name: "feb.xlsx", Reader: bytes.NewReader(b)},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.FilesProcessed)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Dataset.Lines, 3, "combined rows equal the sum of the tables")

	// File order then row order, each row tagged with its source.
	assert.Equal(t, "jan.xlsx", res.Dataset.Lines[0].SourceFile)
	assert.Equal(t, "jan.xlsx", res.Dataset.Lines[1].SourceFile)
	assert.Equal(t, "feb.xlsx", res.Dataset.Lines[2].SourceFile)
	assert.Equal(t, "Widget", res.Dataset.Lines[0].Description)
	assert.Equal(t, "Gadget", res.Dataset.Lines[1].Description)

	require.NotNil(t, res.Dataset.Lines[0].InvoiceDate)
	assert.Equal(t, 2024, res.Dataset.Lines[0].InvoiceDate.Year())
	require.NotNil(t, res.Dataset.Lines[2].InvoiceDate)
	assert.Equal(t, 2, int(res.Dataset.Lines[2].InvoiceDate.Month()))
}

func TestAggregateSkipsBadFiles(t *testing.T) {
	good := buildInvoice(t, "analysis", "ACME", "2024-01-15", [][3]interface{}{
		{"Widget", 10.0, 2.5},
	})
	wrongSheet := buildInvoice(t, "Sheet1", "ACME", "2024-01-15", [][3]interface{}{
		{"Widget", 10.0, 2.5},
	})
	noTable := func(t *testing.T) []byte {
		f := excelize.NewFile()
		require.NoError(t, f.SetSheetName(f.GetSheetName(0), "analysis"))
		require.NoError(t, f.SetCellValue("analysis", "A1", "AGENT"))
		buf, err := f.WriteToBuffer()
		require.NoError(t, err)
		return buf.Bytes()
	}(t)

	agg := NewAggregator("analysis", 1, nil)
	res, err := agg.Aggregate(context.Background(), []Source{
		{Name: "garbage.xlsx", Reader: strings.NewReader("not a spreadsheet")},
		{Name: "good.xlsx", Reader: bytes.NewReader(good)},
		{Name: "wrong-sheet.xlsx", Reader: bytes.NewReader(wrongSheet)},
		{Name: "no-table.xlsx", Reader: bytes.NewReader(noTable)},
	})
	require.NoError(t, err, "bad files are skipped, never batch-fatal")

	assert.Equal(t, 1, res.FilesProcessed)
	require.Len(t, res.Skipped, 3)
	skippedNames := []string{res.Skipped[0].Name, res.Skipped[1].Name, res.Skipped[2].Name}
	assert.ElementsMatch(t, []string{"garbage.xlsx", "wrong-sheet.xlsx", "no-table.xlsx"}, skippedNames)

	require.Len(t, res.Dataset.Lines, 1)
	assert.Equal(t, "good.xlsx", res.Dataset.Lines[0].SourceFile)
}

func TestAggregateParallelPreservesOrder(t *testing.T) {
	var sources []Source
	names := []string{"a.xlsx", "b.xlsx", "c.xlsx", "d.xlsx"}
	for i, name := range names {
		data := buildInvoice(t, "analysis", "ACME", "2024-01-15", [][3]interface{}{
			{name, float64(i + 1), 1.0},
		})
		sources = append(sources, Source{Name: name, Reader: bytes.NewReader(data)})
	}

	agg := NewAggregator("analysis", 4, nil)
	res, err := agg.Aggregate(context.Background(), sources)
	require.NoError(t, err)

	require.Len(t, res.Dataset.Lines, 4)
	for i, name := range names {
		assert.Equal(t, name, res.Dataset.Lines[i].SourceFile, "merge restores input order")
	}
}

func TestAggregateAllSkipped(t *testing.T) {
	agg := NewAggregator("analysis", 1, nil)
	res, err := agg.Aggregate(context.Background(), []Source{
		{Name: "junk.xlsx", Reader: strings.NewReader("junk")},
	})
	require.NoError(t, err)
	assert.Zero(t, res.FilesProcessed)
	assert.Empty(t, res.Dataset.Lines)
}
