// Package forecast reshapes per-product time series into the observation
// format a forecasting engine expects, enforces the minimum-observation
// threshold, and ships a default linear engine. The adapter owns only the
// reshaping and threshold logic; the model itself sits behind Forecaster.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"invoicelens/pkg/contracts/domain"
)

// Frequency is the spacing of predicted future periods.
type Frequency string

// FrequencyMonthly steps one calendar month per future period. It is the
// only frequency the invoice domain uses.
const FrequencyMonthly Frequency = "monthly"

// Observation is one (date, value) point in a series.
type Observation struct {
	Date  time.Time
	Value float64
}

// Config tells the engine how far to predict.
type Config struct {
	Periods   int
	Frequency Frequency
}

// Forecaster is the external forecasting capability. Implementations fit
// the ordered observations and return fitted history plus Config.Periods
// future points with confidence bounds.
type Forecaster interface {
	Forecast(ctx context.Context, obs []Observation, cfg Config) ([]domain.ForecastPoint, error)
}

// minObservations is the threshold below which forecasting is undefined.
const minObservations = 2

// Adapter validates and reshapes product series before delegating to a
// Forecaster.
type Adapter struct {
	forecaster Forecaster
	periods    int
	logger     *slog.Logger
}

// NewAdapter creates an adapter around the given engine. A nil engine gets
// the default linear forecaster; periods <= 0 falls back to 3.
func NewAdapter(forecaster Forecaster, periods int, logger *slog.Logger) *Adapter {
	if forecaster == nil {
		forecaster = NewLinearForecaster()
	}
	if periods <= 0 {
		periods = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		forecaster: forecaster,
		periods:    periods,
		logger:     logger.With(slog.String("component", "forecast_adapter")),
	}
}

// ForecastProduct aggregates the product's quantity per distinct invoice
// date and forecasts the next periods at monthly frequency. Fewer than two
// distinct dates yields an insufficient-data result without invoking the
// engine; that is an informational outcome, not an error.
func (a *Adapter) ForecastProduct(ctx context.Context, ds domain.CombinedDataset, product string) (*domain.ForecastResult, error) {
	obs := aggregateByDate(ds, product)

	if len(obs) < minObservations {
		a.logger.InfoContext(ctx, "insufficient data for forecast",
			slog.String("product", product),
			slog.Int("distinct_dates", len(obs)))
		return &domain.ForecastResult{
			Product:      product,
			Insufficient: true,
			Observations: len(obs),
		}, nil
	}

	points, err := a.forecaster.Forecast(ctx, obs, Config{
		Periods:   a.periods,
		Frequency: FrequencyMonthly,
	})
	if err != nil {
		return nil, fmt.Errorf("forecast %q: %w", product, err)
	}

	return &domain.ForecastResult{
		Product:      product,
		Observations: len(obs),
		Points:       points,
	}, nil
}

// aggregateByDate sums quantity per distinct date for one product and
// returns the observations ordered by date ascending. Dates repeat across
// source files; lines without a date cannot be observed.
func aggregateByDate(ds domain.CombinedDataset, product string) []Observation {
	byDate := make(map[time.Time]float64)
	for _, line := range ds.Lines {
		if line.Description != product || line.InvoiceDate == nil {
			continue
		}
		byDate[line.InvoiceDate.Truncate(24*time.Hour)] += line.Quantity
	}

	obs := make([]Observation, 0, len(byDate))
	for date, value := range byDate {
		obs = append(obs, Observation{Date: date, Value: value})
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })
	return obs
}
