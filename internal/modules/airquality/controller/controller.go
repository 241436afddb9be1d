package controller

import (
	"context"
	"net/http"
	"time"

	"sen66-server/internal/modules/airquality/types"
)

// AirQuality is the read contract the controller needs. *service.Service
// implements it.
type AirQuality interface {
	Station() string
	Latest(ctx context.Context) types.Latest
	Trend(ctx context.Context) types.Trend
	History(ctx context.Context, rng time.Duration) types.History
	PMX(ctx context.Context, explain bool) types.PMX
}

type AirQualityController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type airQualityControllerImpl struct {
	service AirQuality
	refresh time.Duration
}

// NewAirQualityController builds the controller. refresh is the dashboard
// auto-refresh interval.
func NewAirQualityController(service AirQuality, refresh time.Duration) AirQualityController {
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	return &airQualityControllerImpl{service: service, refresh: refresh}
}

func (c *airQualityControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /partials/current", c.handleCurrentPartial)
	mux.HandleFunc("GET /api/v1/latest", c.handleLatest)
	mux.HandleFunc("GET /api/v1/iaq", c.handleIAQ)
	mux.HandleFunc("GET /api/v1/indices", c.handleIndices)
	mux.HandleFunc("GET /api/v1/trend", c.handleTrend)
	mux.HandleFunc("GET /api/v1/history", c.handleHistory)
	mux.HandleFunc("GET /api/v1/pmx", c.handlePMX)
}
