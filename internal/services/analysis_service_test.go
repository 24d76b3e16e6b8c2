package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"invoicelens/internal/batch"
	"invoicelens/internal/config"
	apperrors "invoicelens/internal/errors"
)

// buildInvoice mirrors the standard invoice layout: marker rows, the "NO"
// header, a numeric body, and a non-numeric footer.
func buildInvoice(t *testing.T, agent, vessel, dod string, products [][3]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), "analysis"))

	rows := [][]interface{}{
		{"AGENT", agent},
		{"VESSEL", vessel},
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
		require.NoError(t, f.SetSheetRow("analysis", cell, &rows[i]))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newService(t *testing.T) *AnalysisService {
	t.Helper()
	return NewAnalysisService(config.Default(), nil, nil)
}

func TestAnalyzeSingle(t *testing.T) {
	svc := newService(t)
	doc := buildInvoice(t, "ACME", "MV Star", "2024-03-15", [][3]interface{}{
		{"Widget", 10.0, 2.5},
		{"Gadget", 4.0, 5.0},
	})

	analysis, err := svc.AnalyzeSingle(context.Background(), "invoice.xlsx", bytes.NewReader(doc))
	require.NoError(t, err)

	session := analysis.Session
	require.NotNil(t, session)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, ModeSingle, session.Mode)
	assert.Equal(t, 1, session.FilesProcessed)

	require.NotNil(t, session.Metadata.Agent)
	assert.Equal(t, "ACME", *session.Metadata.Agent)
	require.NotNil(t, session.Metadata.Vessel)
	assert.Equal(t, "MV Star", *session.Metadata.Vessel)
	require.NotNil(t, session.Metadata.InvoiceDate)
	assert.Equal(t, 2024, session.Metadata.InvoiceDate.Year())

	require.Len(t, session.Dataset.Lines, 2)
	assert.Equal(t, "invoice.xlsx", session.Dataset.Lines[0].SourceFile)

	assert.Equal(t, int64(14), analysis.Summary.TotalQuantity)
	assert.Equal(t, 2, analysis.Summary.UniqueItems)
	assert.Empty(t, analysis.Info)
	assert.Empty(t, analysis.Narrative, "narrative is a batch-mode feature")

	// The session stays addressable after the analysis response.
	fetched, err := svc.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, fetched.Session.ID)
}

func TestAnalyzeSingleNoTable(t *testing.T) {
	svc := newService(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), "analysis"))
	require.NoError(t, f.SetCellStr("analysis", "A1", "just some notes"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	analysis, err := svc.AnalyzeSingle(context.Background(), "notes.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err, "a missing product table is not an error")
	assert.Empty(t, analysis.Session.Dataset.Lines)
	require.Len(t, analysis.Info, 1)
	assert.Contains(t, analysis.Info[0], "No valid product table")
}

func TestAnalyzeSingleUnreadable(t *testing.T) {
	svc := newService(t)

	_, err := svc.AnalyzeSingle(context.Background(), "bad.xlsx", strings.NewReader("not a workbook"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeParsing, appErr.Type)
}

func TestAnalyzeSingleWrongSheet(t *testing.T) {
	svc := newService(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), "other"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = svc.AnalyzeSingle(context.Background(), "wrong.xlsx", bytes.NewReader(buf.Bytes()))
	require.Error(t, err, "single-file mode fails hard on a missing worksheet")
}

func TestAnalyzeBatch(t *testing.T) {
	svc := newService(t)
	jan := buildInvoice(t, "ACME", "MV Star", "2024-01-15", [][3]interface{}{
		{"Widget", 10.0, 2.5},
	})
	feb := buildInvoice(t, "ACME", "MV Star", "2024-02-15", [][3]interface{}{
		{"Widget", 6.0, 2.5},
		{"Gadget", 4.0, 5.0},
	})

	analysis, err := svc.AnalyzeBatch(context.Background(), []batch.Source{
		{Name: "jan.xlsx", Reader: bytes.NewReader(jan)},
		{Name: "feb.xlsx", Reader: bytes.NewReader(feb)},
		{Name: "bad.xlsx", Reader: strings.NewReader("garbage")},
	})
	require.NoError(t, err)

	session := analysis.Session
	assert.Equal(t, ModeBatch, session.Mode)
	assert.Equal(t, 2, session.FilesProcessed)
	require.Len(t, session.Skipped, 1)
	assert.Equal(t, "bad.xlsx", session.Skipped[0].Name)
	require.Len(t, session.Dataset.Lines, 3)

	assert.NotEmpty(t, analysis.Narrative)
	assert.Empty(t, analysis.Info)
}

func TestAnalyzeBatchAllSkipped(t *testing.T) {
	svc := newService(t)

	analysis, err := svc.AnalyzeBatch(context.Background(), []batch.Source{
		{Name: "a.xlsx", Reader: strings.NewReader("nope")},
		{Name: "b.xlsx", Reader: strings.NewReader("nope")},
	})
	require.NoError(t, err, "a batch of unusable files still yields a session")
	assert.Equal(t, 0, analysis.Session.FilesProcessed)
	assert.Len(t, analysis.Session.Skipped, 2)
	require.Len(t, analysis.Info, 1)
	assert.Contains(t, analysis.Info[0], "No valid product tables")
	assert.Empty(t, analysis.Narrative)
}

func TestDerivedViews(t *testing.T) {
	svc := newService(t)
	doc := buildInvoice(t, "ACME", "MV Star", "2024-03-15", [][3]interface{}{
		{"Widget", 10.0, 2.5},
		{"Gadget", 4.0, 5.0},
		{"Widget", 2.0, 2.5},
	})
	analysis, err := svc.AnalyzeSingle(context.Background(), "invoice.xlsx", bytes.NewReader(doc))
	require.NoError(t, err)
	id := analysis.Session.ID

	top, err := svc.TopProducts(id, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Widget", top[0].Description)
	assert.InDelta(t, 12.0, top[0].Quantity, 0.001)

	recurring, err := svc.Recurring(id, 10)
	require.NoError(t, err)
	require.Len(t, recurring, 1)
	assert.Equal(t, "Widget", recurring[0].Description)

	shares, err := svc.Shares(id, 10)
	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.InDelta(t, 0.75, shares[0].Share, 0.001)

	trend, err := svc.Trends(id)
	require.NoError(t, err)
	assert.Len(t, trend, 2, "one point per (date, product) pair")

	series, err := svc.ProductSeries(id, "Widget")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "Widget", series[0].Description)
	assert.InDelta(t, 12.0, series[0].Quantity, 0.001)

	res, err := svc.ForecastProduct(context.Background(), id, "Widget")
	require.NoError(t, err)
	assert.True(t, res.Insufficient, "one distinct date cannot support a forecast")
}

func TestExports(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.TemplateFile = filepath.Join(dir, "template.xlsx")

	tpl := excelize.NewFile()
	require.NoError(t, tpl.SaveAs(cfg.Paths.TemplateFile))

	svc := NewAnalysisService(cfg, nil, nil)
	doc := buildInvoice(t, "ACME", "MV Star", "2024-03-15", [][3]interface{}{
		{"Widget", 10.0, 2.5},
	})
	analysis, err := svc.AnalyzeSingle(context.Background(), "invoice.xlsx", bytes.NewReader(doc))
	require.NoError(t, err)
	id := analysis.Session.ID

	xlsx, err := svc.ExportWorkbook(id)
	require.NoError(t, err)
	assert.NotEmpty(t, xlsx)

	csvOut, err := svc.ExportCSV(id)
	require.NoError(t, err)
	assert.Contains(t, string(csvOut), "PRODUCT DESCRIPTION")
	assert.Contains(t, string(csvOut), "Widget")

	filled, err := svc.FilledTemplate(id)
	require.NoError(t, err)

	out, err := excelize.OpenReader(bytes.NewReader(filled))
	require.NoError(t, err)
	defer out.Close()
	agent, err := out.GetCellValue(out.GetSheetName(0), "A2")
	require.NoError(t, err)
	assert.Equal(t, "ACME", agent)
}

func TestFilledTemplateMissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.TemplateFile = filepath.Join(t.TempDir(), "absent.xlsx")
	svc := NewAnalysisService(cfg, nil, nil)

	doc := buildInvoice(t, "ACME", "MV Star", "2024-03-15", [][3]interface{}{
		{"Widget", 10.0, 2.5},
	})
	analysis, err := svc.AnalyzeSingle(context.Background(), "invoice.xlsx", bytes.NewReader(doc))
	require.NoError(t, err)

	_, err = svc.FilledTemplate(analysis.Session.ID)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeNotFound, appErr.Type)
}

func TestSessionNotFound(t *testing.T) {
	svc := newService(t)

	_, err := svc.Get("no-such-session")
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeNotFound, appErr.Type)
}
