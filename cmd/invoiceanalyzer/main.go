// Command invoiceanalyzer runs the extraction pipeline over a directory of
// invoice workbooks and writes the combined table plus a summary to the
// output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"invoicelens/internal/analytics"
	"invoicelens/internal/batch"
	"invoicelens/internal/config"
	"invoicelens/internal/exporter"
	"invoicelens/internal/forecast"
	"invoicelens/internal/infrastructure"
)

func main() {
	inDir := flag.String("in", ".", "input directory containing .xlsx invoice files")
	outDir := flag.String("out", "out", "output directory for combined table and summary")
	workers := flag.Int("workers", 0, "parallel file extraction workers (0 = config default)")
	forecastFor := flag.String("forecast", "", "optional product description to forecast")
	flag.Parse()

	cfg := config.Default()
	if *workers > 0 {
		cfg.Analysis.BatchWorkers = *workers
	}
	logger := infrastructure.InitializeLogger(cfg.Logging)

	if err := run(context.Background(), cfg, logger, *inDir, *outDir, *forecastFor); err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, inDir, outDir, forecastFor string) error {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return fmt.Errorf("read input directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".xlsx") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Errorf("no .xlsx files in %s", inDir)
	}

	var sources []batch.Source
	var open []*os.File
	defer func() {
		for _, f := range open {
			f.Close()
		}
	}()
	for _, name := range names {
		f, err := os.Open(filepath.Join(inDir, name))
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		open = append(open, f)
		sources = append(sources, batch.Source{Name: name, Reader: f})
	}

	agg := batch.NewAggregator(cfg.Analysis.SheetName, cfg.Analysis.BatchWorkers, logger)
	res, err := agg.Aggregate(ctx, sources)
	if err != nil {
		return err
	}
	for _, s := range res.Skipped {
		logger.Warn("file skipped", "file", s.Name, "reason", s.Reason)
	}
	if len(res.Dataset.Lines) == 0 {
		return fmt.Errorf("no valid product tables found in %d files", len(sources))
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	xlsx, err := exporter.WriteWorkbook(res.Dataset)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "batch_invoice_table.xlsx"), xlsx, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	csvData, err := exporter.WriteCSV(res.Dataset)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "batch_invoice_table.csv"), csvData, 0o644); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	summary := analytics.Summarize(res.Dataset.Products())
	top := analytics.TopProducts(res.Dataset, 10)
	recurring := analytics.RecurringItems(res.Dataset, 10)
	for _, line := range analytics.Narrative(res.FilesProcessed, summary, top, recurring) {
		fmt.Println("- " + line)
	}

	if forecastFor != "" {
		adapter := forecast.NewAdapter(nil, cfg.Analysis.ForecastPeriods, logger)
		result, err := adapter.ForecastProduct(ctx, res.Dataset, forecastFor)
		if err != nil {
			return err
		}
		if result.Insufficient {
			fmt.Printf("- Not enough data for forecasting %s.\n", forecastFor)
		} else {
			for _, p := range result.Points {
				if p.Historical {
					continue
				}
				fmt.Printf("- Forecast %s %s: %.1f [%.1f, %.1f]\n",
					forecastFor, p.Date.Format("2006-01"), p.Estimate, p.Lower, p.Upper)
			}
		}
	}

	logger.Info("analysis written",
		slog.String("out_dir", outDir),
		slog.Int("rows", len(res.Dataset.Lines)),
		slog.Int("files_processed", res.FilesProcessed))
	return nil
}
