package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/demandcast/backend/internal/config"
	"github.com/demandcast/backend/internal/db"
	"github.com/demandcast/backend/internal/http/handlers"
	"github.com/demandcast/backend/internal/http/middleware"
	"github.com/demandcast/backend/internal/insights"
	"github.com/demandcast/backend/internal/jobs"

	_ "github.com/demandcast/backend/docs"
)

func Router(cfg config.Config, store *db.Store, tracker *jobs.Tracker, runner *jobs.Runner, insight insights.Service, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:       store,
		Tracker:     tracker,
		Runner:      runner,
		Insights:    insight,
		Validator:   validator.New(),
		Logger:      logger,
		AdminKey:    cfg.AdminKey,
		MaxUploadMB: cfg.MaxUploadSizeMB,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/datasets", h.ListDatasets)
		api.GET("/datasets/:id", h.GetDataset)
		api.GET("/datasets/:id/activity", h.Activity)
		api.GET("/datasets/:id/activity.xlsx", h.ActivityXLSX)
		api.GET("/datasets/:id/insights/customers", h.TopCustomers)
		api.GET("/datasets/:id/insights/items", h.TopItems)
		api.GET("/datasets/:id/insights/cities", h.TopCities)
		api.GET("/datasets/:id/insights/salespeople", h.TopSalespeople)
		api.GET("/forecasts/:id/status", h.ForecastStatus)
		api.GET("/forecasts/:id/result", h.ForecastResult)
		api.GET("/forecasts/:id/result.csv", h.ForecastResultCSV)
		api.GET("/forecasts/:id/runs", h.ForecastRuns)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/datasets", h.UploadDataset)
		admin.POST("/forecasts/:id", h.StartForecast)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
