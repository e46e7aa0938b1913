package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/demandcast/backend/internal/db"
	"github.com/demandcast/backend/internal/forecast"
	"github.com/demandcast/backend/internal/insights"
	"github.com/demandcast/backend/internal/jobs"
	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/internal/rates"
)

// TestUploadForecastFlowIntegration walks the whole life of a dataset against
// a real database: upload, dedupe, forecast job, status polling, result pages,
// CSV export, activity and insights.
func TestUploadForecastFlowIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := db.New(ctx, url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	tracker := jobs.NewTracker()
	h := &Handler{
		Store:     store,
		Tracker:   tracker,
		Runner:    &jobs.Runner{Tracker: tracker, Store: store, Engine: forecast.DefaultEngine(), Logger: zerolog.Nop()},
		Insights:  insights.Service{Rates: rates.StaticProvider{Rates: map[string]float64{"Rupiah": 1}}, Logger: zerolog.Nop()},
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
	}
	r := gin.New()
	r.POST("/api/datasets", h.UploadDataset)
	r.POST("/api/forecasts/:id", h.StartForecast)
	r.GET("/api/forecasts/:id/status", h.ForecastStatus)
	r.GET("/api/forecasts/:id/result", h.ForecastResult)
	r.GET("/api/forecasts/:id/result.csv", h.ForecastResultCSV)
	r.GET("/api/forecasts/:id/runs", h.ForecastRuns)
	r.GET("/api/datasets/:id/activity", h.Activity)
	r.GET("/api/datasets/:id/insights/customers", h.TopCustomers)

	// the batch column is ignored by the parser but makes the content hash
	// unique, so reruns of this test do not collide on dedupe
	var sb strings.Builder
	sb.WriteString("Date,Customer Name,Item Name,Quantity,Amount,Currency,City,Document Number,Batch\n")
	start := time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC)
	batch := uuid.NewString()
	for i := 0; i < 14; i++ {
		fmt.Fprintf(&sb, "%s,PT Alpha,Widget,%d,%d,Rupiah,Jakarta,INV-%03d,%s\n",
			start.AddDate(0, i, 0).Format("2006-01-02"), 5+i%3, 100000*(i+1), i+1, batch)
	}
	content := []byte(sb.String())

	upload := func() *httptest.ResponseRecorder {
		body, contentType := multipartUpload(t, "file", "records.csv", content)
		req, _ := http.NewRequest(http.MethodPost, "/api/datasets", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := upload()
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var summary UploadSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if summary.Scheme != "pair" || summary.Dataset.RowCount != 14 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	id := summary.Dataset.ID

	w = upload()
	if w.Code != http.StatusOK {
		t.Fatalf("re-upload: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var dup UploadSummary
	if err := json.Unmarshal(w.Body.Bytes(), &dup); err != nil {
		t.Fatalf("decode re-upload: %v", err)
	}
	if !dup.Deduplicated || dup.Dataset.ID != id {
		t.Fatalf("re-upload must return the existing dataset: %+v", dup)
	}

	req, _ := http.NewRequest(http.MethodPost, "/api/forecasts/"+id, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("start forecast: expected 202, got %d: %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		req, _ := http.NewRequest(http.MethodGet, "/api/forecasts/"+id+"/status", nil)
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var status models.JobStatus
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if status.Complete {
			if status.Error != "" {
				t.Fatalf("job failed: %s", status.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish")
		}
		time.Sleep(20 * time.Millisecond)
	}

	req, _ = http.NewRequest(http.MethodGet, "/api/forecasts/"+id+"/result?type=Forecast&limit=100", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("result: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var page struct {
		Items []models.ForecastRow `json:"items"`
		Total int                  `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(page.Items) != forecast.HorizonMonths {
		t.Fatalf("forecast rows = %d, want %d", len(page.Items), forecast.HorizonMonths)
	}
	if page.Total != 14+forecast.HorizonMonths {
		t.Fatalf("total rows = %d", page.Total)
	}

	req, _ = http.NewRequest(http.MethodGet, "/api/forecasts/"+id+"/result.csv", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("result.csv: expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "Customer Name,Item Name,Date") {
		t.Fatalf("csv header missing: %q", firstLine(w.Body.String()))
	}

	req, _ = http.NewRequest(http.MethodGet, "/api/forecasts/"+id+"/runs", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("runs: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var runs struct {
		Items []models.ForecastRun `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs.Items) == 0 || runs.Items[0].Status != "SUCCESS" {
		t.Fatalf("unexpected runs: %+v", runs.Items)
	}

	req, _ = http.NewRequest(http.MethodGet, "/api/datasets/"+id+"/activity", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("activity: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var activity struct {
		Items []models.QuarterlyActivity `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &activity); err != nil {
		t.Fatalf("decode activity: %v", err)
	}
	if len(activity.Items) == 0 {
		t.Fatalf("activity must cover at least one quarter")
	}

	req, _ = http.NewRequest(http.MethodGet, "/api/datasets/"+id+"/insights/customers", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("insights: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var ranking insights.Ranking
	if err := json.Unmarshal(w.Body.Bytes(), &ranking); err != nil {
		t.Fatalf("decode ranking: %v", err)
	}
	if len(ranking.ByQuantity) != 1 || ranking.ByQuantity[0].Name != "PT Alpha" {
		t.Fatalf("unexpected ranking: %+v", ranking)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
