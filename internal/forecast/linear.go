package forecast

import (
	"context"
	"fmt"
	"math"

	"invoicelens/pkg/contracts/domain"
)

// LinearForecaster is the built-in forecasting engine: an ordinary
// least-squares trend over the observation index with a symmetric
// confidence band from the residual standard deviation. It is deliberately
// simple; anything smarter plugs in through the Forecaster interface.
type LinearForecaster struct {
	// zScore widens the confidence band; 1.96 approximates a 95% interval.
	zScore float64
}

// NewLinearForecaster returns the default engine.
func NewLinearForecaster() *LinearForecaster {
	return &LinearForecaster{zScore: 1.96}
}

// Forecast fits the observations and returns fitted historical points plus
// cfg.Periods future points. Future dates advance one calendar month per
// period from the last observation.
func (f *LinearForecaster) Forecast(_ context.Context, obs []Observation, cfg Config) ([]domain.ForecastPoint, error) {
	if len(obs) < minObservations {
		return nil, fmt.Errorf("cannot fit: need at least %d observations, got %d", minObservations, len(obs))
	}
	if cfg.Frequency != FrequencyMonthly {
		return nil, fmt.Errorf("unsupported frequency %q", cfg.Frequency)
	}

	slope, intercept := leastSquares(obs)

	// Residual standard deviation over the fitted range.
	var ssr float64
	for i, o := range obs {
		fitted := intercept + slope*float64(i)
		ssr += (o.Value - fitted) * (o.Value - fitted)
	}
	sd := math.Sqrt(ssr / float64(len(obs)))
	band := f.zScore * sd

	points := make([]domain.ForecastPoint, 0, len(obs)+cfg.Periods)
	for i, o := range obs {
		fitted := intercept + slope*float64(i)
		points = append(points, domain.ForecastPoint{
			Date:       o.Date,
			Estimate:   fitted,
			Lower:      fitted - band,
			Upper:      fitted + band,
			Historical: true,
		})
	}

	last := obs[len(obs)-1].Date
	for p := 1; p <= cfg.Periods; p++ {
		idx := float64(len(obs) - 1 + p)
		est := intercept + slope*idx
		points = append(points, domain.ForecastPoint{
			Date:     last.AddDate(0, p, 0),
			Estimate: est,
			Lower:    est - band,
			Upper:    est + band,
		})
	}
	return points, nil
}

// leastSquares returns the slope and intercept of the OLS fit of value
// against the observation index.
func leastSquares(obs []Observation) (slope, intercept float64) {
	n := float64(len(obs))
	var sumX, sumY, sumXY, sumXX float64
	for i, o := range obs {
		x := float64(i)
		sumX += x
		sumY += o.Value
		sumXY += x * o.Value
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
