package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/cohort"
	"github.com/demandcast/backend/internal/dataset"
	"github.com/demandcast/backend/internal/db"
	"github.com/demandcast/backend/internal/export"
	"github.com/demandcast/backend/internal/forecast"
	"github.com/demandcast/backend/internal/insights"
	"github.com/demandcast/backend/internal/jobs"
	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/internal/utils"
)

type Handler struct {
	Store       *db.Store
	Tracker     *jobs.Tracker
	Runner      *jobs.Runner
	Insights    insights.Service
	Validator   *validator.Validate
	Logger      zerolog.Logger
	AdminKey    string
	MaxUploadMB int64
}

// UploadSummary is the upload response. Deduplicated is set when the exact
// same file content was uploaded before; the existing dataset comes back.
type UploadSummary struct {
	Dataset      models.Dataset `json:"dataset"`
	Deduplicated bool           `json:"deduplicated"`
	Scheme       string         `json:"grouping_scheme"`
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Upload sales records
// @Description Upload a .csv or .xlsx file of transactional sales records
// @Tags datasets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "records file"
// @Param name formData string false "dataset display name"
// @Success 201 {object} UploadSummary
// @Failure 400 {object} map[string]any
// @Router /api/datasets [post]
func (h *Handler) UploadDataset(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
		return
	}

	maxBytes := h.MaxUploadMB << 20
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	if fh.Size > maxBytes {
		writeError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds %d MB", maxBytes>>20), nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "failed to open upload", err.Error())
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "failed to read upload", err.Error())
		return
	}

	ctx := c.Request.Context()
	hash := utils.HashBytes(data)
	existing, err := h.Store.FindDatasetByHash(ctx, hash)
	if err == nil {
		c.JSON(http.StatusOK, UploadSummary{
			Dataset:      existing,
			Deduplicated: true,
			Scheme:       forecast.SchemeFor(existing.HasSales).String(),
		})
		return
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to check for duplicates", err.Error())
		return
	}

	parsed, rowErrs, err := dataset.Parse(fh.Filename, bytes.NewReader(data))
	if err != nil {
		var schemaErr *dataset.SchemaError
		if errors.As(err, &schemaErr) {
			writeError(c, http.StatusBadRequest, "SCHEMA_ERROR", "Required columns missing", schemaErr.Missing)
			return
		}
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	if len(rowErrs) > 0 {
		writeError(c, http.StatusBadRequest, "ROW_PARSE_ERROR", "Record validation errors", rowErrs)
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename))
	}
	ds := models.Dataset{
		ID:          uuid.NewString(),
		Name:        name,
		Filename:    filepath.Base(fh.Filename),
		HasSales:    parsed.HasSales,
		RowCount:    len(parsed.Records),
		ContentHash: hash,
		UploadedAt:  time.Now().UTC(),
	}
	if err := h.Store.CreateDataset(ctx, ds, parsed.Records); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to store dataset", err.Error())
		return
	}

	h.Logger.Info().
		Str("dataset_id", ds.ID).
		Str("scheme", forecast.SchemeFor(ds.HasSales).String()).
		Int("rows", ds.RowCount).
		Msg("dataset uploaded")
	c.JSON(http.StatusCreated, UploadSummary{
		Dataset: ds,
		Scheme:  forecast.SchemeFor(ds.HasSales).String(),
	})
}

func (h *Handler) ListDatasets(c *gin.Context) {
	items, err := h.Store.ListDatasets(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list datasets", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) GetDataset(c *gin.Context) {
	ds, ok := h.loadDataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ds)
}

// @Summary Start a forecasting job
// @Description Spawn the background job that trains per-group demand models for a dataset. The job id equals the dataset id.
// @Tags forecasts
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 202 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/forecasts/{id} [post]
func (h *Handler) StartForecast(c *gin.Context) {
	id := c.Param("id")
	if err := h.Runner.StartForecast(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Dataset not found", nil)
		case errors.Is(err, jobs.ErrJobRunning):
			writeError(c, http.StatusConflict, "JOB_RUNNING", "A forecasting job for this dataset is already running", nil)
		default:
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to start forecasting job", err.Error())
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"job_id":     id,
		"status_url": "/api/forecasts/" + id + "/status",
	})
}

// @Summary Job status
// @Tags forecasts
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} models.JobStatus
// @Router /api/forecasts/{id}/status [get]
func (h *Handler) ForecastStatus(c *gin.Context) {
	status, ok := h.Tracker.Get(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No forecasting job for this dataset", nil)
		return
	}
	c.JSON(http.StatusOK, status)
}

type resultQuery struct {
	Type   string `form:"type" validate:"omitempty,oneof=Actual Forecast"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=5000"`
	Offset int    `form:"offset" validate:"omitempty,min=0"`
}

// @Summary Forecast result rows
// @Description The merged longitudinal table of Actual and Forecast rows, in group order.
// @Tags forecasts
// @Produce json
// @Param id path string true "Dataset ID"
// @Param type query string false "row type filter (Actual or Forecast)"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} map[string]any
// @Router /api/forecasts/{id}/result [get]
func (h *Handler) ForecastResult(c *gin.Context) {
	var q resultQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query", err.Error())
		return
	}
	if err := h.Validator.Struct(q); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if q.Limit <= 0 {
		q.Limit = 500
	}

	ds, ok := h.loadDataset(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rows, err := h.Store.ListForecastRows(ctx, ds.ID, q.Type, q.Limit, q.Offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list forecast rows", err.Error())
		return
	}
	total, err := h.Store.CountForecastRows(ctx, ds.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to count forecast rows", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "total": total, "limit": q.Limit, "offset": q.Offset})
}

func (h *Handler) ForecastResultCSV(c *gin.Context) {
	ds, ok := h.loadDataset(c)
	if !ok {
		return
	}
	rows, err := h.Store.ListAllForecastRows(c.Request.Context(), ds.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list forecast rows", err.Error())
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="forecast_`+ds.ID+`.csv"`)
	c.Status(http.StatusOK)
	if err := export.WriteForecastCSV(c.Writer, forecast.SchemeFor(ds.HasSales), rows); err != nil {
		h.Logger.Error().Err(err).Str("dataset_id", ds.ID).Msg("failed to stream forecast csv")
	}
}

func (h *Handler) ForecastRuns(c *gin.Context) {
	ds, ok := h.loadDataset(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.Store.ListForecastRuns(c.Request.Context(), ds.ID, limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list runs", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

// @Summary Quarterly customer activity
// @Description Active and inactive customer cohorts per calendar quarter.
// @Tags activity
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} map[string]any
// @Router /api/datasets/{id}/activity [get]
func (h *Handler) Activity(c *gin.Context) {
	quarters, ok := h.loadActivity(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": quarters})
}

func (h *Handler) ActivityXLSX(c *gin.Context) {
	quarters, ok := h.loadActivity(c)
	if !ok {
		return
	}
	wb, err := export.WriteActivityWorkbook(quarters)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to build workbook", err.Error())
		return
	}
	defer wb.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="activity_`+c.Param("id")+`.xlsx"`)
	c.Status(http.StatusOK)
	if _, err := wb.WriteTo(c.Writer); err != nil {
		h.Logger.Error().Err(err).Msg("failed to stream activity workbook")
	}
}

func (h *Handler) loadActivity(c *gin.Context) ([]models.QuarterlyActivity, bool) {
	ds, ok := h.loadDataset(c)
	if !ok {
		return nil, false
	}
	records, err := h.Store.ListTransactions(c.Request.Context(), ds.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load records", err.Error())
		return nil, false
	}
	quarters, err := cohort.Analyze(records)
	if err != nil {
		writeError(c, http.StatusUnprocessableEntity, "INVALID_DATA", "Activity computation failed", err.Error())
		return nil, false
	}
	return quarters, true
}

type insightsQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=50"`
}

// @Summary Top customers
// @Description Customers ranked by total quantity and by monetary value in base currency.
// @Tags insights
// @Produce json
// @Param id path string true "Dataset ID"
// @Param limit query int false "ranking size, 1..50"
// @Success 200 {object} insights.Ranking
// @Router /api/datasets/{id}/insights/customers [get]
func (h *Handler) TopCustomers(c *gin.Context) {
	records, limit, ok := h.insightsInput(c)
	if !ok {
		return
	}
	ranking, err := h.Insights.TopCustomers(c.Request.Context(), records, limit)
	if err != nil {
		writeError(c, http.StatusBadGateway, "RATES_ERROR", "Exchange rates unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, ranking)
}

func (h *Handler) TopItems(c *gin.Context) {
	records, limit, ok := h.insightsInput(c)
	if !ok {
		return
	}
	items, err := h.Insights.TopItems(c.Request.Context(), records, limit)
	if err != nil {
		writeError(c, http.StatusBadGateway, "RATES_ERROR", "Exchange rates unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) TopCities(c *gin.Context) {
	records, limit, ok := h.insightsInput(c)
	if !ok {
		return
	}
	items, err := h.Insights.TopCities(c.Request.Context(), records, limit)
	if err != nil {
		writeError(c, http.StatusBadGateway, "RATES_ERROR", "Exchange rates unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) TopSalespeople(c *gin.Context) {
	records, limit, ok := h.insightsInput(c)
	if !ok {
		return
	}
	ranking, err := h.Insights.TopSalespeople(c.Request.Context(), records, limit)
	if err != nil {
		if errors.Is(err, insights.ErrNoSalesDimension) {
			writeError(c, http.StatusUnprocessableEntity, "NO_SALES_DIMENSION", "Dataset has no salesperson dimension", nil)
			return
		}
		writeError(c, http.StatusBadGateway, "RATES_ERROR", "Exchange rates unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, ranking)
}

func (h *Handler) insightsInput(c *gin.Context) ([]models.TransactionRecord, int, bool) {
	var q insightsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query", err.Error())
		return nil, 0, false
	}
	if err := h.Validator.Struct(q); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return nil, 0, false
	}

	ds, ok := h.loadDataset(c)
	if !ok {
		return nil, 0, false
	}
	records, err := h.Store.ListTransactions(c.Request.Context(), ds.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load records", err.Error())
		return nil, 0, false
	}
	return records, q.Limit, true
}

func (h *Handler) loadDataset(c *gin.Context) (models.Dataset, bool) {
	ds, err := h.Store.GetDataset(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Dataset not found", nil)
		} else {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load dataset", err.Error())
		}
		return models.Dataset{}, false
	}
	return ds, true
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
