// Package batch runs the extraction pipeline over many invoice files and
// concatenates the results into one combined dataset.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"invoicelens/internal/extraction"
	"invoicelens/internal/grid"
	"invoicelens/internal/infrastructure"
	"invoicelens/pkg/contracts/domain"
)

// Source is one uploaded file: its name and its byte stream.
type Source struct {
	Name   string
	Reader io.Reader
}

// SkippedFile records a file that contributed no rows and why. Skipping is
// the batch-mode availability policy: one bad file never aborts the batch.
type SkippedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result is the outcome of one batch run.
type Result struct {
	Dataset        domain.CombinedDataset   `json:"dataset"`
	FilesProcessed int                      `json:"files_processed"`
	Skipped        []SkippedFile            `json:"skipped,omitempty"`
	Rejected       map[string]int           `json:"rejected,omitempty"`
}

// Aggregator runs grid loading, metadata lookup and product extraction over
// each source and appends non-empty tables to the combined dataset in input
// order.
type Aggregator struct {
	sheet   string
	workers int
	logger  *slog.Logger
}

// NewAggregator creates an aggregator reading the named worksheet.
// workers bounds file-level parallelism; 1 processes sequentially, which is
// the reference behavior. Extraction per file is independent and read-only,
// so parallel workers are safe; the merge step restores input order.
func NewAggregator(sheet string, workers int, logger *slog.Logger) *Aggregator {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		sheet:   sheet,
		workers: workers,
		logger:  logger.With(slog.String("component", "batch_aggregator")),
	}
}

// fileOutcome is the per-file extraction result before the ordered merge.
type fileOutcome struct {
	dataset  domain.CombinedDataset
	skip     *SkippedFile
	rejected int
}

// Aggregate processes the sources and returns the combined dataset.
// Files that fail to load or produce an empty table are skipped with a WARN
// log and a skip record; they are never batch-fatal.
func (a *Aggregator) Aggregate(ctx context.Context, sources []Source) (*Result, error) {
	outcomes := make([]fileOutcome, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = a.processFile(gctx, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch aggregation: %w", err)
	}

	res := &Result{Rejected: make(map[string]int)}
	for i, out := range outcomes {
		if out.skip != nil {
			res.Skipped = append(res.Skipped, *out.skip)
			continue
		}
		res.FilesProcessed++
		if out.rejected > 0 {
			res.Rejected[sources[i].Name] = out.rejected
		}
		res.Dataset.Lines = append(res.Dataset.Lines, out.dataset.Lines...)
	}

	a.logger.InfoContext(ctx, "batch aggregation complete",
		slog.Int("files_in", len(sources)),
		slog.Int("files_processed", res.FilesProcessed),
		slog.Int("files_skipped", len(res.Skipped)),
		slog.Int("combined_rows", len(res.Dataset.Lines)))
	return res, nil
}

func (a *Aggregator) processFile(ctx context.Context, src Source) fileOutcome {
	g, err := grid.Load(src.Reader, a.sheet)
	if err != nil {
		a.logger.WarnContext(ctx, "skipping unreadable file",
			slog.String("file", src.Name),
			slog.String("error", err.Error()))
		infrastructure.FilesSkipped.WithLabelValues("unreadable").Inc()
		return fileOutcome{skip: &SkippedFile{Name: src.Name, Reason: err.Error()}}
	}

	invoiceDate := extraction.ExtractInvoiceDate(g)
	res := extraction.ExtractProducts(g)
	if res.Table.IsEmpty() {
		a.logger.WarnContext(ctx, "skipping file without product table",
			slog.String("file", src.Name),
			slog.Int("rejected_rows", len(res.Rejected)))
		infrastructure.FilesSkipped.WithLabelValues("no_product_table").Inc()
		return fileOutcome{skip: &SkippedFile{Name: src.Name, Reason: "no product table found"}}
	}

	infrastructure.FilesProcessed.Inc()
	return fileOutcome{
		dataset:  domain.FromTable(res.Table, src.Name, invoiceDate),
		rejected: len(res.Rejected),
	}
}
