package forecast

import (
	"sort"
	"time"

	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/internal/utils"
)

// MinMonthlyPoints is the data-sufficiency gate: groups with fewer monthly
// points are skipped without a forecast and without an error.
const MinMonthlyPoints = 10

// Resample buckets one group's records by calendar month and sums quantity
// per bucket. Months with no records do not appear; no zero-fill. A date the
// ingestion layer let through but that does not parse fails the whole group,
// and with it the job.
func Resample(records []models.TransactionRecord) (models.MonthlySeries, error) {
	totals := map[time.Time]float64{}
	for _, r := range records {
		t, err := utils.ParseDate(r.Date)
		if err != nil {
			return nil, err
		}
		totals[utils.MonthStart(t)] += r.Quantity
	}
	series := make(models.MonthlySeries, 0, len(totals))
	for m, q := range totals {
		series = append(series, models.MonthlyPoint{Month: m, Quantity: q})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Month.Before(series[j].Month)
	})
	return series, nil
}
