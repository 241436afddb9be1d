// Package telemetry queries the remote time-series store (InfluxDB 2.x, Flux over HTTP)
// and folds the tabular responses into pollutant readings.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultMeasurement = "environment"
)

// Config holds the store connection settings.
type Config struct {
	URL         string
	Org         string
	Bucket      string
	Token       string
	Measurement string
	Timeout     time.Duration
}

// Complete reports whether every required connection setting is present.
func (c Config) Complete() bool {
	return c.URL != "" && c.Org != "" && c.Bucket != "" && c.Token != ""
}

// Querier is the collaborator contract used by the cache and service layers.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Row, error)
}

type Client struct {
	cfg    Config
	influx influxdb2.Client
	query  api.QueryAPI
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	seconds := uint(math.Ceil(cfg.Timeout.Seconds()))
	opts := influxdb2.DefaultOptions().SetHTTPRequestTimeout(seconds)
	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	return &Client{
		cfg:    cfg,
		influx: influx,
		query:  influx.QueryAPI(cfg.Org),
		logger: logger,
	}
}

// Measurement returns the measurement name queries should target.
func (c *Client) Measurement() string { return c.cfg.Measurement }

// Close releases the idle connections held by the store client.
func (c *Client) Close() {
	c.influx.Close()
}

// Query runs q and returns the parsed rows. It fails with ErrConfigMissing
// before any network access when the connection settings are incomplete.
func (c *Client) Query(ctx context.Context, q Query) ([]Row, error) {
	if !c.cfg.Complete() {
		return nil, ErrConfigMissing
	}
	if q.Measurement == "" {
		q.Measurement = c.cfg.Measurement
	}
	flux, err := q.Flux(c.cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.query.QueryRaw(ctx, flux, api.DefaultDialect())
	if err != nil {
		return nil, classify(err)
	}

	rows, err := ParseCSV(strings.NewReader(raw))
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	if len(rows) == 0 {
		return nil, &ResponseError{Status: http.StatusOK, Message: "empty result"}
	}

	c.logger.Debug("telemetry query",
		"fields", q.Fields,
		"start", q.Start,
		"every", q.Every,
		"selector", string(q.Selector),
		"rows", len(rows),
		"elapsed", time.Since(start),
	)
	return rows, nil
}

// classify maps store client errors onto the package error types. A status
// code means the server answered; anything else never got a response.
func classify(err error) error {
	var httpErr *influxhttp.Error
	if errors.As(err, &httpErr) && httpErr.StatusCode > 0 {
		msg := httpErr.Message
		if msg == "" {
			msg = httpErr.Code
		}
		return &ResponseError{Status: httpErr.StatusCode, Message: strings.TrimSpace(msg)}
	}
	return &TransportError{Op: "query", Err: err}
}
