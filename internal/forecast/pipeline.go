package forecast

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/models"
)

// ProgressFunc receives the number of groups processed so far out of the
// total. It is called after every group, skipped or forecast.
type ProgressFunc func(processed, total int)

// Stats summarizes one pipeline execution.
type Stats struct {
	GroupsTotal      int `json:"groups_total"`
	GroupsForecasted int `json:"groups_forecasted"`
	GroupsSkipped    int `json:"groups_skipped"`
	Rows             int `json:"rows"`
}

// Pipeline runs the per-group forecasting sequence over a record set. Groups
// are processed strictly sequentially in key order; the first malformed date
// or fit failure stops the run, and callers must discard everything from a
// failed run.
type Pipeline struct {
	Engine Engine
	Logger zerolog.Logger
}

func (p Pipeline) Run(ctx context.Context, records []models.TransactionRecord, scheme models.GroupingScheme, progress ProgressFunc) ([]models.ForecastRow, Stats, error) {
	if err := ValidateDimensions(records, scheme); err != nil {
		return nil, Stats{}, err
	}

	keys := GroupKeys(records, scheme)
	stats := Stats{GroupsTotal: len(keys)}

	var rows []models.ForecastRow
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("forecasting stopped: %w", err)
		}

		group := FilterGroup(records, scheme, key)
		series, err := Resample(group)
		if err != nil {
			return nil, stats, fmt.Errorf("group %s: %w", key.Label(), err)
		}
		if len(series) < MinMonthlyPoints {
			stats.GroupsSkipped++
			p.Logger.Debug().
				Str("group", key.Label()).
				Int("months", len(series)).
				Msg("group below minimum history, skipped")
			if progress != nil {
				progress(i+1, len(keys))
			}
			continue
		}

		pred, err := p.Engine.Fit(series)
		if err != nil {
			return nil, stats, fmt.Errorf("group %s: %w", key.Label(), err)
		}
		rows = append(rows, MergeGroup(key, series, pred)...)
		stats.GroupsForecasted++
		if progress != nil {
			progress(i+1, len(keys))
		}
	}
	stats.Rows = len(rows)
	return rows, stats, nil
}
