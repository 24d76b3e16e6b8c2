package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"invoicelens/pkg/contracts/domain"
)

// TrendPoint is one (invoice date, product) aggregate in a trend series.
type TrendPoint struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	// Quantity is the summed quantity for the group.
	Quantity float64 `json:"quantity"`
	// MeanUnitPrice is the average unit price for the group.
	MeanUnitPrice decimal.Decimal `json:"mean_unit_price"`
}

// Trend groups the dataset by (invoice date, description), summing quantity
// and averaging unit price. Lines without an invoice date cannot be placed
// on a time axis and are excluded. Output is ordered by date then
// description.
func Trend(ds domain.CombinedDataset) []TrendPoint {
	type key struct {
		date time.Time
		desc string
	}
	type acc struct {
		qty      float64
		priceSum decimal.Decimal
		count    int64
	}

	byKey := make(map[key]*acc)
	for _, line := range ds.Lines {
		if line.InvoiceDate == nil {
			continue
		}
		k := key{date: line.InvoiceDate.Truncate(24 * time.Hour), desc: line.Description}
		a, ok := byKey[k]
		if !ok {
			a = &acc{priceSum: decimal.Zero}
			byKey[k] = a
		}
		a.qty += line.Quantity
		a.priceSum = a.priceSum.Add(line.UnitPrice)
		a.count++
	}

	points := make([]TrendPoint, 0, len(byKey))
	for k, a := range byKey {
		points = append(points, TrendPoint{
			Date:          k.date,
			Description:   k.desc,
			Quantity:      a.qty,
			MeanUnitPrice: a.priceSum.Div(decimal.NewFromInt(a.count)),
		})
	}

	sort.Slice(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.Before(points[j].Date)
		}
		return points[i].Description < points[j].Description
	})
	return points
}

// ProductQuantitySeries returns the per-date summed quantity for one
// product, ordered by date ascending. It backs the single-product trend
// view.
func ProductQuantitySeries(ds domain.CombinedDataset, product string) []TrendPoint {
	byDate := make(map[time.Time]float64)
	for _, line := range ds.Lines {
		if line.Description != product || line.InvoiceDate == nil {
			continue
		}
		byDate[line.InvoiceDate.Truncate(24*time.Hour)] += line.Quantity
	}

	points := make([]TrendPoint, 0, len(byDate))
	for date, qty := range byDate {
		points = append(points, TrendPoint{Date: date, Description: product, Quantity: qty, MeanUnitPrice: decimal.Zero})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}
