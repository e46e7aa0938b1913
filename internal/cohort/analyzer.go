package cohort

import (
	"fmt"
	"sort"

	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/internal/utils"
)

// Analyze derives per-quarter customer cohorts from a record set. A quarter's
// active set holds every customer with at least one record in it; its
// inactive set holds customers seen in any strictly earlier quarter but
// absent from this one, so the first quarter's inactive set is always empty.
// Quarters without records do not appear. Output ordering is fully
// deterministic: quarters ascending, names sorted.
func Analyze(records []models.TransactionRecord) ([]models.QuarterlyActivity, error) {
	activeByQuarter := map[string]map[string]struct{}{}
	for _, r := range records {
		t, err := utils.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("quarterly activity: %w", err)
		}
		if r.CustomerName == "" {
			continue
		}
		q := utils.QuarterLabel(t)
		set, ok := activeByQuarter[q]
		if !ok {
			set = map[string]struct{}{}
			activeByQuarter[q] = set
		}
		set[r.CustomerName] = struct{}{}
	}

	quarters := make([]string, 0, len(activeByQuarter))
	for q := range activeByQuarter {
		quarters = append(quarters, q)
	}
	sort.Strings(quarters)

	seen := map[string]struct{}{}
	out := make([]models.QuarterlyActivity, 0, len(quarters))
	for _, q := range quarters {
		cur := activeByQuarter[q]

		active := make([]string, 0, len(cur))
		for name := range cur {
			active = append(active, name)
		}
		sort.Strings(active)

		inactive := make([]string, 0)
		for name := range seen {
			if _, ok := cur[name]; !ok {
				inactive = append(inactive, name)
			}
		}
		sort.Strings(inactive)

		out = append(out, models.QuarterlyActivity{
			Quarter:       q,
			Active:        active,
			Inactive:      inactive,
			ActiveCount:   len(active),
			InactiveCount: len(inactive),
		})
		for name := range cur {
			seen[name] = struct{}{}
		}
	}
	return out, nil
}
