// Package services orchestrates the extraction pipeline for the HTTP layer
// and owns the in-memory analysis sessions. Sessions are the only state in
// the process and live until replaced or until the process exits; there is
// no durable storage.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoicelens/internal/analytics"
	"invoicelens/internal/batch"
	"invoicelens/internal/config"
	apperrors "invoicelens/internal/errors"
	"invoicelens/internal/exporter"
	"invoicelens/internal/extraction"
	"invoicelens/internal/forecast"
	"invoicelens/internal/grid"
	"invoicelens/pkg/contracts/domain"
)

// Mode distinguishes how a session's dataset was produced.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeBatch  Mode = "batch"
)

// Session holds one analysis' extracted data for the rest of its lifetime.
type Session struct {
	ID             string                   `json:"id"`
	CreatedAt      time.Time                `json:"created_at"`
	Mode           Mode                     `json:"mode"`
	Metadata       domain.Metadata          `json:"metadata"`
	Dataset        domain.CombinedDataset   `json:"dataset"`
	FilesProcessed int                      `json:"files_processed"`
	Skipped        []batch.SkippedFile      `json:"skipped,omitempty"`
	Rejected       []extraction.RejectedRow `json:"rejected,omitempty"`
}

// Analysis is the payload returned for a new or fetched session: the
// session plus its derived figures. Info carries the user-facing messages
// for structural-absence outcomes.
type Analysis struct {
	Session   *Session          `json:"session"`
	Summary   analytics.Summary `json:"summary"`
	Narrative []string          `json:"narrative,omitempty"`
	Info      []string          `json:"info,omitempty"`
}

// AnalysisService runs single-file and batch analyses and serves the
// derived views over the resulting sessions.
type AnalysisService struct {
	cfg          config.AnalysisConfig
	templatePath string
	aggregator   *batch.Aggregator
	adapter      *forecast.Adapter
	logger       *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewAnalysisService wires the pipeline components. forecaster may be nil
// to use the built-in engine.
func NewAnalysisService(cfg *config.Config, forecaster forecast.Forecaster, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		cfg:          cfg.Analysis,
		templatePath: cfg.Paths.TemplateFile,
		aggregator:   batch.NewAggregator(cfg.Analysis.SheetName, cfg.Analysis.BatchWorkers, logger),
		adapter:      forecast.NewAdapter(forecaster, cfg.Analysis.ForecastPeriods, logger),
		logger:       logger.With(slog.String("component", "analysis_service")),
		sessions:     make(map[string]*Session),
	}
}

// AnalyzeSingle extracts one invoice. File-level defects (unreadable file,
// missing worksheet) fail the whole request in single-file mode; a missing
// product table does not, it returns an empty analysis with an
// informational message.
func (s *AnalysisService) AnalyzeSingle(ctx context.Context, filename string, r io.Reader) (*Analysis, error) {
	g, err := grid.Load(r, s.cfg.SheetName)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("cannot read %q: %v", filename, err), err)
	}

	meta := extraction.ExtractMetadata(g)
	res := extraction.ExtractProducts(g)

	session := &Session{
		ID:             uuid.New().String(),
		CreatedAt:      time.Now(),
		Mode:           ModeSingle,
		Metadata:       meta,
		Dataset:        domain.FromTable(res.Table, filename, meta.InvoiceDate),
		FilesProcessed: 1,
		Rejected:       res.Rejected,
	}
	s.store(session)

	analysis := s.buildAnalysis(session)
	if res.Table.IsEmpty() {
		analysis.Info = append(analysis.Info, "No valid product table found in your file.")
	}

	s.logger.InfoContext(ctx, "single-file analysis complete",
		slog.String("session_id", session.ID),
		slog.String("file", filename),
		slog.Int("rows", len(res.Table.Lines)),
		slog.Int("rejected", len(res.Rejected)))
	return analysis, nil
}

// AnalyzeBatch extracts N invoices, skipping files that fail, and combines
// the rest. A batch where every file was skipped still succeeds with an
// empty dataset and an informational message.
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, sources []batch.Source) (*Analysis, error) {
	res, err := s.aggregator.Aggregate(ctx, sources)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:             uuid.New().String(),
		CreatedAt:      time.Now(),
		Mode:           ModeBatch,
		Dataset:        res.Dataset,
		FilesProcessed: res.FilesProcessed,
		Skipped:        res.Skipped,
	}
	s.store(session)

	analysis := s.buildAnalysis(session)
	if len(res.Dataset.Lines) == 0 {
		analysis.Info = append(analysis.Info, "No valid product tables found in the uploaded files.")
	}

	s.logger.InfoContext(ctx, "batch analysis complete",
		slog.String("session_id", session.ID),
		slog.Int("files_processed", res.FilesProcessed),
		slog.Int("files_skipped", len(res.Skipped)),
		slog.Int("rows", len(res.Dataset.Lines)))
	return analysis, nil
}

// Get returns the analysis view of an existing session.
func (s *AnalysisService) Get(id string) (*Analysis, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return s.buildAnalysis(session), nil
}

// TopProducts ranks products by summed quantity.
func (s *AnalysisService) TopProducts(id string, n int) ([]analytics.ProductGroup, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return analytics.TopProducts(session.Dataset, n), nil
}

// Recurring returns products contributed by more than one row.
func (s *AnalysisService) Recurring(id string, n int) ([]analytics.ProductGroup, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return analytics.RecurringItems(session.Dataset, n), nil
}

// Shares returns the top-n quantity shares for treemap-style views.
func (s *AnalysisService) Shares(id string, n int) ([]analytics.ProductShare, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return analytics.ProductShares(session.Dataset, n), nil
}

// Trends returns the per-(date, product) series.
func (s *AnalysisService) Trends(id string) ([]analytics.TrendPoint, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return analytics.Trend(session.Dataset), nil
}

// ProductSeries returns one product's per-date quantity series, the data
// behind the individual product trend view.
func (s *AnalysisService) ProductSeries(id, product string) ([]analytics.TrendPoint, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return analytics.ProductQuantitySeries(session.Dataset, product), nil
}

// ForecastProduct forecasts a product's quantity series.
func (s *AnalysisService) ForecastProduct(ctx context.Context, id, product string) (*domain.ForecastResult, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return s.adapter.ForecastProduct(ctx, session.Dataset, product)
}

// ExportWorkbook serializes the session's dataset to xlsx.
func (s *AnalysisService) ExportWorkbook(id string) ([]byte, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return exporter.WriteWorkbook(session.Dataset)
}

// ExportCSV serializes the session's dataset to CSV.
func (s *AnalysisService) ExportCSV(id string) ([]byte, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return exporter.WriteCSV(session.Dataset)
}

// FilledTemplate writes the session's metadata and product lines into the
// fixed template. A missing template surfaces as NOT_FOUND so the HTTP
// layer can warn and disable the download without failing the session.
func (s *AnalysisService) FilledTemplate(id string) ([]byte, error) {
	session, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return exporter.FillTemplate(s.templatePath, session.Metadata, session.Dataset.Products())
}

func (s *AnalysisService) buildAnalysis(session *Session) *Analysis {
	summary := analytics.Summarize(session.Dataset.Products())
	a := &Analysis{Session: session, Summary: summary}
	if session.Mode == ModeBatch && len(session.Dataset.Lines) > 0 {
		top := analytics.TopProducts(session.Dataset, 10)
		recurring := analytics.RecurringItems(session.Dataset, 10)
		a.Narrative = analytics.Narrative(session.FilesProcessed, summary, top, recurring)
	}
	return a
}

func (s *AnalysisService) store(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

func (s *AnalysisService) session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("analysis session %q not found", id), nil)
	}
	return session, nil
}
