package stock

import (
	"time"

	"github.com/pillkeep/pillkeep/internal/model"
)

// ShelfState is the expiry bucket of a single batch.
type ShelfState string

const (
	StateExpired      ShelfState = "expired"
	StateExpiringSoon ShelfState = "expiring_soon"
	StateHealthy      ShelfState = "healthy"
)

// expiringSoonDays is the remaining shelf life at or under which a batch
// counts as expiring soon.
const expiringSoonDays = 30

// Remaining is the shelf life left on a batch, both as a raw day count and
// as a calendar breakdown for display.
type Remaining struct {
	Expired   bool `json:"expired"`
	Years     int  `json:"years"`
	Months    int  `json:"months"`
	Days      int  `json:"days"`
	TotalDays int  `json:"total_days"`
}

// TimeRemaining computes the shelf life between now and expiry. The
// calendar breakdown borrows days from the length of the current month
// rather than dividing by 30, so "1m 3d" is exact.
func TimeRemaining(expiry, now time.Time) Remaining {
	if expiry.Before(now) {
		return Remaining{Expired: true}
	}

	years := expiry.Year() - now.Year()
	months := int(expiry.Month()) - int(now.Month())
	days := expiry.Day() - now.Day()

	if days < 0 {
		months--
		days += daysInMonth(now.Year(), now.Month())
	}
	if months < 0 {
		years--
		months += 12
	}

	return Remaining{
		Years:     years,
		Months:    months,
		Days:      days,
		TotalDays: int(expiry.Sub(now).Hours() / 24),
	}
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Classify places one expiry date into exactly one shelf-life bucket.
func Classify(expiry, now time.Time) ShelfState {
	r := TimeRemaining(expiry, now)
	switch {
	case r.Expired:
		return StateExpired
	case r.TotalDays <= expiringSoonDays:
		return StateExpiringSoon
	default:
		return StateHealthy
	}
}

// ShelfReport partitions a ledger snapshot into the three buckets. The
// buckets are disjoint and cover every batch.
type ShelfReport struct {
	Expired      []model.InventoryBatch `json:"expired"`
	ExpiringSoon []model.InventoryBatch `json:"expiring_soon"`
	Healthy      []model.InventoryBatch `json:"healthy"`
}

// Partition classifies every batch in the snapshot. Pure; no store access.
func Partition(batches []model.InventoryBatch, now time.Time) ShelfReport {
	var report ShelfReport
	for _, b := range batches {
		switch Classify(b.Expiry(), now) {
		case StateExpired:
			report.Expired = append(report.Expired, b)
		case StateExpiringSoon:
			report.ExpiringSoon = append(report.ExpiringSoon, b)
		default:
			report.Healthy = append(report.Healthy, b)
		}
	}
	return report
}

// LowStockWarning flags a drug whose total available units across all
// batches have fallen to the threshold or below.
type LowStockWarning struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

// LowStock sums available units per normalized drug name and returns a
// warning for each name at or under the threshold. Exhausted batches do
// not contribute, but a drug whose every batch is empty still warns at 0.
func LowStock(batches []model.InventoryBatch, threshold int) []LowStockWarning {
	totals := make(map[string]int)
	var order []string
	for _, b := range batches {
		name := NormalizeName(b.Name)
		if _, seen := totals[name]; !seen {
			totals[name] = 0
			order = append(order, name)
		}
		if b.Quantity > 0 {
			totals[name] += b.Quantity
		}
	}

	var warnings []LowStockWarning
	for _, name := range order {
		if totals[name] <= threshold {
			warnings = append(warnings, LowStockWarning{Name: name, Total: totals[name]})
		}
	}
	return warnings
}
