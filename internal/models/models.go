package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is one ingested sales transaction. Records are read-only
// inputs to the pipeline; Date carries the raw cell text and is parsed where
// it is consumed so a bad value fails the job that touches it, not the rows
// around it.
type TransactionRecord struct {
	Date           string          `json:"date"`
	SalesName      string          `json:"sales_name,omitempty"`
	CustomerName   string          `json:"customer_name"`
	ItemName       string          `json:"item_name"`
	Quantity       float64         `json:"quantity"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	City           string          `json:"city"`
	DocumentNumber string          `json:"document_number"`
}

// GroupingScheme says which entity combination forecasts are computed for.
// It is selected once per dataset and carried as a value from then on.
type GroupingScheme int

const (
	SchemePair    GroupingScheme = iota // customer + item
	SchemeTriplet                       // salesperson + customer + item
)

func (s GroupingScheme) String() string {
	if s == SchemeTriplet {
		return "triplet"
	}
	return "pair"
}

// Dimensions lists the group dimension labels in output column order.
func (s GroupingScheme) Dimensions() []string {
	if s == SchemeTriplet {
		return []string{"Sales Name", "Customer Name", "Item Name"}
	}
	return []string{"Customer Name", "Item Name"}
}

// GroupKey identifies one forecast group. SalesName is empty under the pair
// scheme.
type GroupKey struct {
	SalesName    string `json:"sales_name,omitempty"`
	CustomerName string `json:"customer_name"`
	ItemName     string `json:"item_name"`
}

// Label renders the key for log lines and error messages.
func (k GroupKey) Label() string {
	if k.SalesName != "" {
		return k.SalesName + " / " + k.CustomerName + " / " + k.ItemName
	}
	return k.CustomerName + " / " + k.ItemName
}

// MonthlyPoint is one calendar month's total quantity for a group. Month is
// normalized to the first day of the month, midnight UTC.
type MonthlyPoint struct {
	Month    time.Time `json:"month"`
	Quantity float64   `json:"quantity"`
}

// MonthlySeries is ascending by month; months without records are absent.
type MonthlySeries []MonthlyPoint

// ForecastPoint is one predicted month with its uncertainty bounds.
type ForecastPoint struct {
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

const (
	RowTypeActual   = "Actual"
	RowTypeForecast = "Forecast"
)

// ForecastRow is one row of the merged longitudinal table. Quantity is set on
// Actual rows; Predicted, Lower and Upper on Forecast rows. Dates are
// month-end calendar dates.
type ForecastRow struct {
	SalesName      string    `json:"sales_name,omitempty"`
	CustomerName   string    `json:"customer_name"`
	ItemName       string    `json:"item_name"`
	Date           time.Time `json:"date"`
	Type           string    `json:"type"`
	Quantity       *float64  `json:"quantity,omitempty"`
	Predicted      *float64  `json:"predicted_quantity,omitempty"`
	Lower          *float64  `json:"lower_bound,omitempty"`
	Upper          *float64  `json:"upper_bound,omitempty"`
}

// JobStatus is the polling snapshot of one training job.
type JobStatus struct {
	JobID      string    `json:"job_id"`
	Progress   int       `json:"progress"`
	Complete   bool      `json:"complete"`
	Error      string    `json:"error"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// QuarterlyActivity is one quarter's customer cohort. Inactive holds
// customers seen in an earlier quarter but absent from this one.
type QuarterlyActivity struct {
	Quarter       string   `json:"quarter"`
	Active        []string `json:"active"`
	Inactive      []string `json:"inactive"`
	ActiveCount   int      `json:"active_count"`
	InactiveCount int      `json:"inactive_count"`
}

// Dataset is the catalogue entry for one uploaded record set.
type Dataset struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Filename    string    `json:"filename"`
	HasSales    bool      `json:"has_sales_dimension"`
	RowCount    int       `json:"row_count"`
	ContentHash string    `json:"content_hash"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// ForecastRun is the persisted history entry for one pipeline execution.
type ForecastRun struct {
	ID               string    `json:"id"`
	DatasetID        string    `json:"dataset_id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	GroupsTotal      int       `json:"groups_total"`
	GroupsForecasted int       `json:"groups_forecasted"`
	GroupsSkipped    int       `json:"groups_skipped"`
}
