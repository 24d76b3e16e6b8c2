// Package extraction recovers the metadata block and the product table from
// an invoice cell grid. Both extractors are pure functions of the grid and
// tolerate arbitrary surrounding noise: structural absence is an empty
// result, never an error.
package extraction

import (
	"strings"
	"time"

	"invoicelens/internal/grid"
	"invoicelens/pkg/contracts/domain"
)

// Marker tokens recognized in the first cell of a row, after trimming and
// case normalization.
const (
	markerAgent  = "AGENT"
	markerVessel = "VESSEL"
	markerDOD    = "DOD"
	markerTable  = "NO"
)

// ExtractMetadata scans every row for labeled key/value pairs and returns
// whatever it recovered. If a label repeats, the last matching row wins:
// the scan is linear and later rows overwrite earlier ones. Missing labels
// stay nil. A DOD value that does not parse as a date also stays nil; this
// is best-effort extraction over noisy input, not validation.
func ExtractMetadata(g *grid.Grid) domain.Metadata {
	var meta domain.Metadata
	for i := 0; i < g.RowCount(); i++ {
		switch g.CellAt(i, 0).Normalized() {
		case markerAgent:
			if v, ok := trimmedText(g.CellAt(i, 1)); ok {
				meta.Agent = &v
			}
		case markerVessel:
			if v, ok := trimmedText(g.CellAt(i, 1)); ok {
				meta.Vessel = &v
			}
		case markerDOD:
			if t, ok := g.CellAt(i, 1).AsDate(); ok {
				meta.InvoiceDate = &t
			}
		}
	}
	return meta
}

// ExtractInvoiceDate returns only the DOD field. The batch aggregator uses
// it when the rest of the metadata block is not needed.
func ExtractInvoiceDate(g *grid.Grid) *time.Time {
	return ExtractMetadata(g).InvoiceDate
}

func trimmedText(c grid.Cell) (string, bool) {
	s, ok := c.AsText()
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}
