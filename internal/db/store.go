package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"

	"github.com/demandcast/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		filename TEXT NOT NULL,
		has_sales BOOLEAN NOT NULL,
		row_count INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS datasets_content_hash_idx ON datasets (content_hash)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		txn_date TEXT NOT NULL,
		sales_name TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL,
		item_name TEXT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		amount NUMERIC NOT NULL,
		currency TEXT NOT NULL,
		city TEXT NOT NULL,
		document_number TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_dataset_idx ON transactions (dataset_id, seq)`,
	`CREATE TABLE IF NOT EXISTS forecast_rows (
		dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		sales_name TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL,
		item_name TEXT NOT NULL,
		row_date DATE NOT NULL,
		row_type TEXT NOT NULL,
		quantity DOUBLE PRECISION,
		predicted DOUBLE PRECISION,
		lower_bound DOUBLE PRECISION,
		upper_bound DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS forecast_rows_dataset_idx ON forecast_rows (dataset_id, seq)`,
	`CREATE TABLE IF NOT EXISTS forecast_runs (
		id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		groups_total INTEGER NOT NULL DEFAULT 0,
		groups_forecasted INTEGER NOT NULL DEFAULT 0,
		groups_skipped INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS forecast_runs_dataset_idx ON forecast_runs (dataset_id, started_at DESC)`,
}

// EnsureSchema creates the tables on startup. Statements run one by one;
// the extended protocol takes a single statement per Exec.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// CreateDataset inserts the catalogue row and bulk-loads its records in one
// transaction.
func (s *Store) CreateDataset(ctx context.Context, ds models.Dataset, records []models.TransactionRecord) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO datasets (id, name, filename, has_sales, row_count, content_hash, uploaded_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, ds.ID, ds.Name, ds.Filename, ds.HasSales, ds.RowCount, ds.ContentHash, ds.UploadedAt)
		if err != nil {
			return err
		}

		rows := make([][]any, 0, len(records))
		for i, r := range records {
			rows = append(rows, []any{ds.ID, i, r.Date, r.SalesName, r.CustomerName, r.ItemName, r.Quantity, r.Amount, r.Currency, r.City, r.DocumentNumber})
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"transactions"},
			[]string{"dataset_id", "seq", "txn_date", "sales_name", "customer_name", "item_name", "quantity", "amount", "currency", "city", "document_number"},
			pgx.CopyFromRows(rows))
		return err
	})
}

func scanDataset(row pgx.Row) (models.Dataset, error) {
	var ds models.Dataset
	err := row.Scan(&ds.ID, &ds.Name, &ds.Filename, &ds.HasSales, &ds.RowCount, &ds.ContentHash, &ds.UploadedAt)
	return ds, err
}

func (s *Store) GetDataset(ctx context.Context, id string) (models.Dataset, error) {
	return scanDataset(s.Pool.QueryRow(ctx, `
		SELECT id, name, filename, has_sales, row_count, content_hash, uploaded_at
		FROM datasets WHERE id = $1
	`, id))
}

func (s *Store) FindDatasetByHash(ctx context.Context, hash string) (models.Dataset, error) {
	return scanDataset(s.Pool.QueryRow(ctx, `
		SELECT id, name, filename, has_sales, row_count, content_hash, uploaded_at
		FROM datasets WHERE content_hash = $1
	`, hash))
}

func (s *Store) ListDatasets(ctx context.Context) ([]models.Dataset, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, filename, has_sales, row_count, content_hash, uploaded_at
		FROM datasets ORDER BY uploaded_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Dataset
	for rows.Next() {
		var ds models.Dataset
		if err := rows.Scan(&ds.ID, &ds.Name, &ds.Filename, &ds.HasSales, &ds.RowCount, &ds.ContentHash, &ds.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (s *Store) ListTransactions(ctx context.Context, datasetID string) ([]models.TransactionRecord, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT txn_date, sales_name, customer_name, item_name, quantity, amount, currency, city, document_number
		FROM transactions WHERE dataset_id = $1 ORDER BY seq ASC
	`, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TransactionRecord
	for rows.Next() {
		var r models.TransactionRecord
		if err := rows.Scan(&r.Date, &r.SalesName, &r.CustomerName, &r.ItemName, &r.Quantity, &r.Amount, &r.Currency, &r.City, &r.DocumentNumber); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceForecastRows swaps a dataset's forecast table for the new rows in
// one transaction, so pollers never observe a half-written result.
func (s *Store) ReplaceForecastRows(ctx context.Context, datasetID string, rows []models.ForecastRow) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM forecast_rows WHERE dataset_id = $1`, datasetID); err != nil {
			return err
		}
		batch := make([][]any, 0, len(rows))
		for i, r := range rows {
			batch = append(batch, []any{datasetID, i, r.SalesName, r.CustomerName, r.ItemName, r.Date, r.Type, r.Quantity, r.Predicted, r.Lower, r.Upper})
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"forecast_rows"},
			[]string{"dataset_id", "seq", "sales_name", "customer_name", "item_name", "row_date", "row_type", "quantity", "predicted", "lower_bound", "upper_bound"},
			pgx.CopyFromRows(batch))
		return err
	})
}

func (s *Store) scanForecastRows(rows pgx.Rows) ([]models.ForecastRow, error) {
	defer rows.Close()
	var out []models.ForecastRow
	for rows.Next() {
		var (
			r            models.ForecastRow
			q, p, lo, up *float64
		)
		if err := rows.Scan(&r.SalesName, &r.CustomerName, &r.ItemName, &r.Date, &r.Type, &q, &p, &lo, &up); err != nil {
			return nil, err
		}
		r.Quantity, r.Predicted, r.Lower, r.Upper = q, p, lo, up
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListForecastRows(ctx context.Context, datasetID, rowType string, limit, offset int) ([]models.ForecastRow, error) {
	if limit <= 0 || limit > 5000 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT sales_name, customer_name, item_name, row_date, row_type, quantity, predicted, lower_bound, upper_bound
		FROM forecast_rows`
	args := []any{datasetID}
	wheres := []string{"dataset_id = $1"}
	if rowType != "" {
		args = append(args, rowType)
		wheres = append(wheres, fmt.Sprintf("row_type = $%d", len(args)))
	}
	query += " WHERE " + strings.Join(wheres, " AND ")
	query += " ORDER BY seq ASC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return s.scanForecastRows(rows)
}

// ListAllForecastRows is the export path: the full table in pipeline order.
func (s *Store) ListAllForecastRows(ctx context.Context, datasetID string) ([]models.ForecastRow, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT sales_name, customer_name, item_name, row_date, row_type, quantity, predicted, lower_bound, upper_bound
		FROM forecast_rows WHERE dataset_id = $1 ORDER BY seq ASC
	`, datasetID)
	if err != nil {
		return nil, err
	}
	return s.scanForecastRows(rows)
}

func (s *Store) CountForecastRows(ctx context.Context, datasetID string) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM forecast_rows WHERE dataset_id = $1`, datasetID).Scan(&n)
	return n, err
}

func (s *Store) CreateForecastRun(ctx context.Context, datasetID string) (string, error) {
	id := uuid.NewString()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO forecast_runs (id, dataset_id, status, started_at) VALUES ($1, $2, 'RUNNING', NOW())
	`, id, datasetID)
	return id, err
}

func (s *Store) FinishForecastRun(ctx context.Context, runID, status, errMsg string, groupsTotal, groupsForecasted, groupsSkipped int) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE forecast_runs
		SET status = $1, error = $2, groups_total = $3, groups_forecasted = $4, groups_skipped = $5, finished_at = NOW()
		WHERE id = $6
	`, status, errMsg, groupsTotal, groupsForecasted, groupsSkipped, runID)
	return err
}

func (s *Store) ListForecastRuns(ctx context.Context, datasetID string, limit int) ([]models.ForecastRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, dataset_id, started_at, finished_at, status, error, groups_total, groups_forecasted, groups_skipped
		FROM forecast_runs WHERE dataset_id = $1 ORDER BY started_at DESC LIMIT $2
	`, datasetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ForecastRun
	for rows.Next() {
		var (
			run      models.ForecastRun
			finished *time.Time
		)
		if err := rows.Scan(&run.ID, &run.DatasetID, &run.StartedAt, &finished, &run.Status, &run.Error, &run.GroupsTotal, &run.GroupsForecasted, &run.GroupsSkipped); err != nil {
			return nil, err
		}
		if finished != nil {
			run.FinishedAt = *finished
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
