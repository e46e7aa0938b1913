package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/forecast"
	"github.com/demandcast/backend/internal/models"
)

// stubStore is an in-memory Store for runner tests. When gate is non-nil,
// ListTransactions blocks on it, which pins the job in the running state.
type stubStore struct {
	mu      sync.Mutex
	dataset models.Dataset
	records []models.TransactionRecord
	gate    chan struct{}

	rows      []models.ForecastRow
	replaced  bool
	runStatus string
	runError  string
}

func (s *stubStore) GetDataset(_ context.Context, id string) (models.Dataset, error) {
	if id != s.dataset.ID {
		return models.Dataset{}, pgx.ErrNoRows
	}
	return s.dataset, nil
}

func (s *stubStore) ListTransactions(_ context.Context, _ string) ([]models.TransactionRecord, error) {
	if s.gate != nil {
		<-s.gate
	}
	return s.records, nil
}

func (s *stubStore) ReplaceForecastRows(_ context.Context, _ string, rows []models.ForecastRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
	s.replaced = true
	return nil
}

func (s *stubStore) CreateForecastRun(_ context.Context, _ string) (string, error) {
	return "run-1", nil
}

func (s *stubStore) FinishForecastRun(_ context.Context, _, status, errMsg string, _, _, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runStatus = status
	s.runError = errMsg
	return nil
}

func (s *stubStore) snapshot() (bool, int, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaced, len(s.rows), s.runStatus, s.runError
}

func newRunner(store *stubStore) *Runner {
	return &Runner{
		Tracker: NewTracker(),
		Store:   store,
		Engine:  forecast.DefaultEngine(),
		Logger:  zerolog.Nop(),
		Timeout: time.Minute,
	}
}

func waitComplete(t *testing.T, tr *Tracker, id string) models.JobStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := tr.Get(id); ok && st.Complete {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not complete in time", id)
	return models.JobStatus{}
}

func salesRecords(months int, constant bool) []models.TransactionRecord {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.TransactionRecord, months)
	for i := 0; i < months; i++ {
		q := float64(10 + i)
		if constant {
			q = 10
		}
		out[i] = models.TransactionRecord{
			Date:         start.AddDate(0, i, 14).Format("2006-01-02"),
			CustomerName: "PT Alpha",
			ItemName:     "Widget",
			Quantity:     q,
		}
	}
	return out
}

func TestRunnerSuccess(t *testing.T) {
	store := &stubStore{
		dataset: models.Dataset{ID: "ds-1", RowCount: 12},
		records: salesRecords(12, false),
	}
	r := newRunner(store)

	if err := r.StartForecast(context.Background(), "ds-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := waitComplete(t, r.Tracker, "ds-1")
	if st.Error != "" || st.Progress != 100 {
		t.Fatalf("unexpected final status: %+v", st)
	}

	replaced, rows, status, errMsg := store.snapshot()
	if !replaced || rows == 0 {
		t.Fatalf("forecast rows not persisted: replaced=%v rows=%d", replaced, rows)
	}
	if status != "SUCCESS" || errMsg != "" {
		t.Fatalf("run record wrong: %s %q", status, errMsg)
	}
}

func TestRunnerFailureDiscardsRows(t *testing.T) {
	store := &stubStore{
		dataset: models.Dataset{ID: "ds-1", RowCount: 10},
		records: salesRecords(10, true),
	}
	r := newRunner(store)

	if err := r.StartForecast(context.Background(), "ds-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := waitComplete(t, r.Tracker, "ds-1")
	if st.Error == "" {
		t.Fatalf("constant series should fail the job")
	}

	replaced, _, status, errMsg := store.snapshot()
	if replaced {
		t.Fatalf("failed run must not persist rows")
	}
	if status != "FAILED" || errMsg == "" {
		t.Fatalf("run record wrong: %s %q", status, errMsg)
	}
}

func TestRunnerUnknownDataset(t *testing.T) {
	store := &stubStore{dataset: models.Dataset{ID: "ds-1"}}
	r := newRunner(store)
	if err := r.StartForecast(context.Background(), "nope"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
	if _, ok := r.Tracker.Get("nope"); ok {
		t.Fatalf("no job may be registered for an unknown dataset")
	}
}

func TestRunnerRejectsConcurrentStart(t *testing.T) {
	gate := make(chan struct{})
	store := &stubStore{
		dataset: models.Dataset{ID: "ds-1", RowCount: 12},
		records: salesRecords(12, false),
		gate:    gate,
	}
	r := newRunner(store)

	if err := r.StartForecast(context.Background(), "ds-1"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := r.StartForecast(context.Background(), "ds-1"); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("expected ErrJobRunning, got %v", err)
	}

	close(gate)
	waitComplete(t, r.Tracker, "ds-1")

	// a finished job may be overwritten by a new submission
	if err := r.StartForecast(context.Background(), "ds-1"); err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
	waitComplete(t, r.Tracker, "ds-1")
}

func TestRunnerEmptyDatasetCompletesImmediately(t *testing.T) {
	store := &stubStore{dataset: models.Dataset{ID: "ds-1", RowCount: 0}}
	r := newRunner(store)

	if err := r.StartForecast(context.Background(), "ds-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := waitComplete(t, r.Tracker, "ds-1")
	if st.Error != "" || st.Progress != 100 {
		t.Fatalf("empty dataset should complete clean at 100, got %+v", st)
	}
}
