package controller

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"sen66-server/internal/iaq"
	"sen66-server/internal/modules/airquality/types"
	"sen66-server/internal/modules/airquality/views"
	"sen66-server/internal/utils"
)

func (c *airQualityControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		utils.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	data := &views.DashboardData{
		Station:        c.service.Station(),
		Current:        c.current(r.Context()),
		Ranges:         rangeOptions(defaultHistoryRangeKey),
		RefreshSeconds: int(c.refresh.Seconds()),
	}
	utils.WriteHTML(w, func(out io.Writer) error {
		return views.RenderDashboard(out, data)
	})
}

func (c *airQualityControllerImpl) handleCurrentPartial(w http.ResponseWriter, r *http.Request) {
	data := c.current(r.Context())
	utils.WriteHTML(w, func(out io.Writer) error {
		return views.RenderCurrentPartial(out, &data)
	})
}

// current loads the three lanes shown on the dashboard side by side.
func (c *airQualityControllerImpl) current(ctx context.Context) views.CurrentData {
	var data views.CurrentData
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { data.Latest = c.service.Latest(ctx); return nil })
	g.Go(func() error { data.Trend = c.service.Trend(ctx); return nil })
	g.Go(func() error { data.PMX = c.service.PMX(ctx, false); return nil })
	_ = g.Wait()
	return data
}

func (c *airQualityControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.service.Latest(r.Context()))
}

type iaqResponse struct {
	Station string `json:"station"`
	iaq.Result
	LEDs int `json:"leds"`
	types.Freshness
}

func (c *airQualityControllerImpl) handleIAQ(w http.ResponseWriter, r *http.Request) {
	latest := c.service.Latest(r.Context())
	utils.WriteJSON(w, http.StatusOK, iaqResponse{
		Station:   latest.Station,
		Result:    latest.IAQ,
		LEDs:      latest.LEDs,
		Freshness: latest.Freshness,
	})
}

type indicesResponse struct {
	Station string `json:"station"`
	iaq.Indices
	types.Freshness
}

func (c *airQualityControllerImpl) handleIndices(w http.ResponseWriter, r *http.Request) {
	latest := c.service.Latest(r.Context())
	utils.WriteJSON(w, http.StatusOK, indicesResponse{
		Station:   latest.Station,
		Indices:   latest.Indices,
		Freshness: latest.Freshness,
	})
}

func (c *airQualityControllerImpl) handleTrend(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.service.Trend(r.Context()))
}

func (c *airQualityControllerImpl) handleHistory(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("range")
	rng, ok := resolveHistoryRange(key)
	if !ok {
		slog.Warn("history: invalid range", "range", key)
		utils.WriteError(w, http.StatusBadRequest, "invalid 'range' (allowed: 1h, 6h, 24h, 7d)")
		return
	}
	utils.WriteJSON(w, http.StatusOK, c.service.History(r.Context(), rng.Duration))
}

func (c *airQualityControllerImpl) handlePMX(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.service.PMX(r.Context(), parseBool(r, "explain")))
}
