// Package analytics computes descriptive statistics and groupings over
// extracted product tables and combined datasets. Everything here is a pure
// function of its input; the charting layer consumes the results as-is.
package analytics

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"invoicelens/pkg/contracts/domain"
)

// Summary holds the headline figures for a product table.
type Summary struct {
	// TotalQuantity is the quantity sum truncated to an integer.
	TotalQuantity int64 `json:"total_quantity"`
	// TotalValue is the sum of the total-value column.
	TotalValue decimal.Decimal `json:"total_value"`
	// UniqueItems counts distinct descriptions, case-sensitive and
	// exact-match. Spelling variants of the same product stay distinct;
	// fuzzy dedup is a known limitation, not a goal.
	UniqueItems int `json:"unique_items"`
}

// Summarize computes the headline figures over a set of product lines.
func Summarize(lines []domain.ProductLine) Summary {
	var qty float64
	total := decimal.Zero
	seen := make(map[string]struct{}, len(lines))

	for _, line := range lines {
		qty += line.Quantity
		total = total.Add(line.TotalValue)
		seen[line.Description] = struct{}{}
	}

	return Summary{
		TotalQuantity: int64(qty),
		TotalValue:    total,
		UniqueItems:   len(seen),
	}
}

// ProductGroup is the aggregate for one distinct description.
type ProductGroup struct {
	Description string          `json:"description"`
	Quantity    float64         `json:"quantity"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Occurrences int             `json:"occurrences"`
}

// groupByDescription folds the dataset into per-description aggregates,
// sorted by summed quantity descending with description as the tie-break so
// output order is stable.
func groupByDescription(ds domain.CombinedDataset) []ProductGroup {
	byDesc := make(map[string]*ProductGroup)
	for _, line := range ds.Lines {
		g, ok := byDesc[line.Description]
		if !ok {
			g = &ProductGroup{Description: line.Description, TotalValue: decimal.Zero}
			byDesc[line.Description] = g
		}
		g.Quantity += line.Quantity
		g.TotalValue = g.TotalValue.Add(line.TotalValue)
		g.Occurrences++
	}

	groups := make([]ProductGroup, 0, len(byDesc))
	for _, g := range byDesc {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Quantity != groups[j].Quantity {
			return groups[i].Quantity > groups[j].Quantity
		}
		return groups[i].Description < groups[j].Description
	})
	return groups
}

// TopProducts returns the n products with the highest summed quantity.
func TopProducts(ds domain.CombinedDataset, n int) []ProductGroup {
	return truncate(groupByDescription(ds), n)
}

// RecurringItems returns products contributed by more than one row, ranked
// by summed quantity descending. An empty result is a valid outcome, not an
// error.
func RecurringItems(ds domain.CombinedDataset, n int) []ProductGroup {
	groups := groupByDescription(ds)
	recurring := groups[:0:0]
	for _, g := range groups {
		if g.Occurrences > 1 {
			recurring = append(recurring, g)
		}
	}
	return truncate(recurring, n)
}

// ProductShare is a product group with its share of the total quantity.
type ProductShare struct {
	ProductGroup
	Share float64 `json:"share"`
}

// ProductShares returns the top n groups with each group's fraction of the
// dataset's total quantity.
func ProductShares(ds domain.CombinedDataset, n int) []ProductShare {
	groups := groupByDescription(ds)

	var total float64
	for _, g := range groups {
		total += g.Quantity
	}

	shares := make([]ProductShare, 0, len(groups))
	for _, g := range truncate(groups, n) {
		s := ProductShare{ProductGroup: g}
		if total > 0 {
			s.Share = g.Quantity / total
		}
		shares = append(shares, s)
	}
	return shares
}

func truncate(groups []ProductGroup, n int) []ProductGroup {
	if n > 0 && len(groups) > n {
		return groups[:n]
	}
	return groups
}

// Narrative renders the human-readable summary bullets the UI shows under
// a batch analysis.
func Narrative(filesProcessed int, summary Summary, top, recurring []ProductGroup) []string {
	bullets := []string{
		fmt.Sprintf("Processed %d files.", filesProcessed),
		fmt.Sprintf("Combined total of %d unique products.", summary.UniqueItems),
		fmt.Sprintf("Total quantity: %d.", summary.TotalQuantity),
		fmt.Sprintf("Total value: $%s.", summary.TotalValue.StringFixed(2)),
	}
	if len(top) > 0 {
		bullets = append(bullets, fmt.Sprintf("Top product across all files: %s with quantity %g.", top[0].Description, top[0].Quantity))
	}
	if len(recurring) > 0 {
		bullets = append(bullets, fmt.Sprintf("Most recurring high-quantity item: %s.", recurring[0].Description))
	} else {
		bullets = append(bullets, "No recurring high-quantity items found.")
	}
	return bullets
}
