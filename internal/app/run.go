package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"sen66-server/internal/cache"
	"sen66-server/internal/config"
	"sen66-server/internal/db"
	"sen66-server/internal/db/migrate"
	"sen66-server/internal/httpapi"
	"sen66-server/internal/metrics"
	"sen66-server/internal/modules/airquality"
	"sen66-server/internal/modules/airquality/service"
	"sen66-server/internal/modules/airquality/views"
	"sen66-server/internal/mqtt"
	"sen66-server/internal/snapshot"
	"sen66-server/internal/telemetry"
)

const (
	dashboardRefresh = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// components is everything Run starts, built without touching the network.
type components struct {
	db      *sql.DB
	store   *telemetry.Client
	metrics *metrics.Metrics
	service *service.Service
	handler http.Handler
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*components, error) {
	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	applied, err := migrate.Run(ctx, dbConn, logger)
	if err != nil {
		_ = db.Close(dbConn)
		return nil, err
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "versions", applied)
	}

	if err := views.LoadTemplates(); err != nil {
		_ = db.Close(dbConn)
		return nil, err
	}

	m := metrics.New()
	client := telemetry.NewClient(telemetry.Config{
		URL:         cfg.InfluxURL,
		Org:         cfg.InfluxOrg,
		Bucket:      cfg.InfluxBucket,
		Token:       cfg.InfluxToken,
		Measurement: cfg.InfluxMeasurement,
		Timeout:     cfg.InfluxTimeout,
	}, logger)

	c := cache.New(cache.Options{
		LockScope: cfg.CacheLockScope,
		Observer:  m,
		Logger:    logger,
	})
	svc := service.NewService(c, m.InstrumentQuerier(client), service.Config{
		Station:       cfg.StationID,
		MaxDataAge:    cfg.MaxDataAge,
		TrendWindow:   cfg.TrendWindow,
		HistoryPoints: cfg.HistoryPoints,
		TTLLatest:     cfg.CacheTTLLatest,
		TTLTrend:      cfg.CacheTTLTrend,
		TTLHistory:    cfg.CacheTTLHistory,
		TTLNowCast:    cfg.CacheTTLNowCast,
		Store:         snapshot.ForStation(snapshot.NewRepository(dbConn), cfg.StationID),
	}, logger)

	mux := httpapi.NewMux(dbConn, m)
	airquality.RegisterFeature(mux, svc, dashboardRefresh)

	return &components{
		db:      dbConn,
		store:   client,
		metrics: m,
		service: svc,
		handler: httpapi.Handler(mux, m, logger),
	}, nil
}

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"influxURL", cfg.InfluxURL,
		"influxBucket", cfg.InfluxBucket,
		"influxConfigured", cfg.InfluxURL != "" && cfg.InfluxOrg != "" && cfg.InfluxBucket != "" && cfg.InfluxToken != "",
		"station", cfg.StationID,
		"cacheLockScope", cfg.CacheLockScope,
		"mqttBroker", cfg.MQTTBroker,
		"mqttTopic", cfg.MQTTTopic,
	)

	comp, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comp.store.Close()
	defer func() {
		if closeErr := db.Close(comp.db); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	comp.service.Seed(ctx)
	go func() {
		if err := comp.service.Warm(ctx); err != nil {
			logger.Warn("cache warm-up interrupted", "error", err)
		}
	}()

	var publisher *mqtt.Publisher
	if cfg.MQTTEnabled() {
		publisher = mqtt.NewPublisher(cfg, logger)
		go func() {
			// The broker may be down at startup; paho keeps retrying until ctx ends.
			if err := publisher.Connect(ctx); err != nil {
				logger.Warn("mqtt connection failed (lamp feed disabled)", "error", err)
				return
			}
			comp.service.RunLampFeed(ctx, publisher, cfg.MQTTTopic, cfg.MQTTPublishInterval, comp.metrics.Published)
		}()
	} else {
		logger.Info("mqtt broker not configured, lamp feed disabled")
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, comp.handler)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if publisher != nil {
		logger.Info("mqtt disconnecting")
		publisher.Disconnect()
	}

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
