package domain

import "time"

// ForecastPoint is one fitted or predicted value with confidence bounds.
type ForecastPoint struct {
	Date       time.Time `json:"date"`
	Estimate   float64   `json:"estimate"`
	Lower      float64   `json:"lower"`
	Upper      float64   `json:"upper"`
	Historical bool      `json:"historical"`
}

// ForecastResult covers the historical fitted range plus the requested
// future periods for one product. Insufficient is set when fewer than two
// distinct observation dates were available; Points is empty in that case
// and no model was fitted.
type ForecastResult struct {
	Product      string          `json:"product"`
	Insufficient bool            `json:"insufficient,omitempty"`
	Observations int             `json:"observations"`
	Points       []ForecastPoint `json:"points,omitempty"`
}
