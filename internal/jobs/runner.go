package jobs

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/forecast"
	"github.com/demandcast/backend/internal/models"
)

// Store is the slice of persistence the runner needs.
type Store interface {
	GetDataset(ctx context.Context, id string) (models.Dataset, error)
	ListTransactions(ctx context.Context, datasetID string) ([]models.TransactionRecord, error)
	ReplaceForecastRows(ctx context.Context, datasetID string, rows []models.ForecastRow) error
	CreateForecastRun(ctx context.Context, datasetID string) (string, error)
	FinishForecastRun(ctx context.Context, runID, status, errMsg string, groupsTotal, groupsForecasted, groupsSkipped int) error
}

// Runner owns the background forecasting workers: one goroutine per job, job
// id equal to dataset id, so a dataset has at most one live job.
type Runner struct {
	Tracker *Tracker
	Store   Store
	Engine  forecast.Engine
	Logger  zerolog.Logger
	Timeout time.Duration
}

// StartForecast checks the dataset exists, registers the job and spawns its
// worker. ErrJobRunning comes back while a previous instance is still going;
// a finished instance is overwritten.
func (r *Runner) StartForecast(ctx context.Context, datasetID string) error {
	ds, err := r.Store.GetDataset(ctx, datasetID)
	if err != nil {
		return err
	}
	if err := r.Tracker.Start(ds.ID); err != nil {
		return err
	}
	go r.run(ds)
	return nil
}

func (r *Runner) run(ds models.Dataset) {
	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	log := r.Logger.With().Str("job_id", ds.ID).Logger()

	runID, err := r.Store.CreateForecastRun(ctx, ds.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to create forecast run")
		r.Tracker.Fail(ds.ID, fmt.Errorf("create run: %w", err))
		return
	}

	stats, err := r.execute(ctx, ds)
	if err != nil {
		log.Error().Err(err).Msg("forecasting failed")
		r.Tracker.Fail(ds.ID, err)
		r.finishRun(runID, "FAILED", err.Error(), stats, log)
		return
	}

	r.Tracker.Complete(ds.ID)
	r.finishRun(runID, "SUCCESS", "", stats, log)
	log.Info().
		Int("rows", stats.Rows).
		Int("groups_total", stats.GroupsTotal).
		Int("groups_forecasted", stats.GroupsForecasted).
		Int("groups_skipped", stats.GroupsSkipped).
		Msg("forecasting complete")
}

func (r *Runner) execute(ctx context.Context, ds models.Dataset) (forecast.Stats, error) {
	records, err := r.Store.ListTransactions(ctx, ds.ID)
	if err != nil {
		return forecast.Stats{}, fmt.Errorf("load records: %w", err)
	}

	scheme := forecast.SchemeFor(ds.HasSales)
	pipe := forecast.Pipeline{Engine: r.Engine, Logger: r.Logger}
	rows, stats, err := pipe.Run(ctx, records, scheme, func(done, total int) {
		r.Tracker.SetProgress(ds.ID, ProgressPercent(done, total))
	})
	if err != nil {
		return stats, err
	}

	// a failed run must never leave rows behind, so persistence happens only
	// here, after the whole pipeline succeeded
	if err := r.Store.ReplaceForecastRows(ctx, ds.ID, rows); err != nil {
		return stats, fmt.Errorf("persist forecast rows: %w", err)
	}
	return stats, nil
}

// finishRun records the run outcome on a fresh context; the job context may
// already be expired when the job failed on its deadline.
func (r *Runner) finishRun(runID, status, errMsg string, stats forecast.Stats, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.Store.FinishForecastRun(ctx, runID, status, errMsg, stats.GroupsTotal, stats.GroupsForecasted, stats.GroupsSkipped); err != nil {
		log.Error().Err(err).Msg("failed to finish forecast run")
	}
}

// ProgressPercent rounds done/total into a 0..100 integer. An empty group
// set reads 100: there is nothing left to do.
func ProgressPercent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
