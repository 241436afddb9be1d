package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"sen66-server/internal/cache"
	"sen66-server/internal/iaq"
	"sen66-server/internal/modules/airquality/types"
	"sen66-server/internal/pmx"
	"sen66-server/internal/telemetry"
)

const (
	LaneLatest  = "latest"
	LaneTrend   = "trend"
	LaneHistory = "history"
	LaneNowCast = "nowcast"

	// LampRing is the number of LEDs on the lamp and widget ring.
	LampRing = 12

	nowCastSpan  = 12 * time.Hour
	nowCastEvery = time.Hour
	minEvery     = time.Minute
)

// errNoValues marks a response that parsed but carried no numeric value. The
// cache treats it like any other failure and keeps serving what it had.
var errNoValues = errors.New("telemetry response held no numeric values")

type Config struct {
	Station       string
	MaxDataAge    time.Duration
	TrendWindow   time.Duration
	HistoryPoints int
	// DefaultHistory is the range Warm refreshes.
	DefaultHistory time.Duration

	TTLLatest  time.Duration
	TTLTrend   time.Duration
	TTLHistory time.Duration
	TTLNowCast time.Duration

	// Store persists the latest reading. Optional.
	Store cache.Store[telemetry.Reading]
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service is the read side of the air-quality feature. Every method goes
// through the freshness cache, so callers may poll as often as they like.
type Service struct {
	querier telemetry.Querier
	cfg     Config
	logger  *slog.Logger

	latest  *cache.Lane[telemetry.Reading]
	trend   *cache.Lane[map[string]float64]
	history *cache.Lane[[]telemetry.Reading]
	nowcast *cache.Lane[map[string][]float64]
}

func NewService(c *cache.Cache, querier telemetry.Querier, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HistoryPoints <= 0 {
		cfg.HistoryPoints = 50
	}
	if cfg.DefaultHistory <= 0 {
		cfg.DefaultHistory = 24 * time.Hour
	}
	return &Service{
		querier: querier,
		cfg:     cfg,
		logger:  logger,
		latest:  cache.NewLane(c, cache.LaneConfig[telemetry.Reading]{Name: LaneLatest, TTL: cfg.TTLLatest, Store: cfg.Store}),
		trend:   cache.NewLane(c, cache.LaneConfig[map[string]float64]{Name: LaneTrend, TTL: cfg.TTLTrend}),
		history: cache.NewLane(c, cache.LaneConfig[[]telemetry.Reading]{Name: LaneHistory, TTL: cfg.TTLHistory}),
		nowcast: cache.NewLane(c, cache.LaneConfig[map[string][]float64]{Name: LaneNowCast, TTL: cfg.TTLNowCast}),
	}
}

func (s *Service) Station() string { return s.cfg.Station }

func (s *Service) latestKey() string { return "age=" + s.cfg.MaxDataAge.String() }

// Seed loads the persisted latest reading so the first request after a
// restart has something to show even if the store is unreachable.
func (s *Service) Seed(ctx context.Context) {
	s.latest.Seed(ctx, s.latestKey())
}

func (s *Service) Latest(ctx context.Context) types.Latest {
	res := s.latest.Get(ctx, s.latestKey(), func(ctx context.Context) (telemetry.Reading, error) {
		now := s.cfg.Now()
		rows, err := s.querier.Query(ctx, telemetry.Query{
			Fields:   telemetry.AllFields,
			Start:    now.Add(-s.cfg.MaxDataAge),
			Stop:     now,
			Selector: telemetry.SelectLast,
		})
		if err != nil {
			return telemetry.Reading{}, err
		}
		r := telemetry.Latest(rows)
		if r.IsEmpty() {
			return telemetry.Reading{}, errNoValues
		}
		return r, nil
	})

	out := types.Latest{Station: s.cfg.Station, Freshness: freshness(res)}
	if !res.OK {
		out.IAQ = iaq.Result{Label: iaq.NoData}
		out.Components = iaq.Components(telemetry.Reading{})
		return out
	}
	r := res.Payload
	out.Reading = &r
	out.Components = iaq.Components(r)
	out.IAQ = iaq.Dominant(r)
	out.Indices = iaq.ComputeIndices(r)
	out.LEDs = iaq.LEDs(out.IAQ.Score, LampRing)
	return out
}

func (s *Service) Trend(ctx context.Context) types.Trend {
	window := s.cfg.TrendWindow
	res := s.trend.Get(ctx, "window="+window.String(), func(ctx context.Context) (map[string]float64, error) {
		now := s.cfg.Now()
		rows, err := s.querier.Query(ctx, telemetry.Query{
			Fields: telemetry.IAQFields,
			Start:  now.Add(-window),
			Stop:   now,
		})
		if err != nil {
			return nil, err
		}
		d := telemetry.Deltas(rows)
		if len(d) == 0 {
			return nil, errNoValues
		}
		return d, nil
	})

	out := types.Trend{
		Station:   s.cfg.Station,
		Window:    window.String(),
		Field:     iaq.NoData,
		Freshness: freshness(res),
	}
	if !res.OK {
		return out
	}
	out.Deltas = res.Payload
	out.Field, out.Delta = rising(res.Payload)
	return out
}

// rising picks the IAQ field with the greatest delta, even when every delta is
// negative. Ties go to the earlier field in telemetry.IAQFields; other fields
// are ignored.
func rising(deltas map[string]float64) (string, *float64) {
	field := iaq.NoData
	var best *float64
	for _, f := range telemetry.IAQFields {
		d, ok := deltas[f]
		if !ok {
			continue
		}
		if best == nil || d > *best {
			v := d
			best = &v
			field = f
		}
	}
	return field, best
}

// HistoryEvery is the downsampling window for rng: rng spread over points,
// truncated to whole minutes, never below one minute.
func HistoryEvery(rng time.Duration, points int) time.Duration {
	if points <= 0 {
		points = 1
	}
	every := (rng / time.Duration(points)).Truncate(time.Minute)
	return max(every, minEvery)
}

func (s *Service) History(ctx context.Context, rng time.Duration) types.History {
	every := HistoryEvery(rng, s.cfg.HistoryPoints)
	key := fmt.Sprintf("range=%s every=%s", rng, every)
	res := s.history.Get(ctx, key, func(ctx context.Context) ([]telemetry.Reading, error) {
		now := s.cfg.Now()
		rows, err := s.querier.Query(ctx, telemetry.Query{
			Fields: telemetry.AllFields,
			Start:  now.Add(-rng),
			Stop:   now,
			Every:  every,
		})
		if err != nil {
			return nil, err
		}
		readings := telemetry.Pivot(rows)
		if len(readings) == 0 {
			return nil, errNoValues
		}
		return readings, nil
	})

	out := types.History{
		Station:   s.cfg.Station,
		Range:     rng.String(),
		Every:     every.String(),
		Points:    []types.HistoryPoint{},
		Freshness: freshness(res),
	}
	for _, r := range res.Payload {
		out.Points = append(out.Points, types.HistoryPoint{
			Reading: r,
			IAQ:     iaq.Dominant(r),
			Indices: iaq.ComputeIndices(r),
		})
	}
	return out
}

// PMX scores the last twelve hourly means of each particle fraction.
func (s *Service) PMX(ctx context.Context, explain bool) types.PMX {
	res := s.nowcast.Get(ctx, "span="+nowCastSpan.String(), func(ctx context.Context) (map[string][]float64, error) {
		now := s.cfg.Now()
		rows, err := s.querier.Query(ctx, telemetry.Query{
			Fields: telemetry.PMFields,
			Start:  now.Add(-nowCastSpan),
			Stop:   now,
			Every:  nowCastEvery,
		})
		if err != nil {
			return nil, err
		}
		series := telemetry.Series(rows, pmx.NowCastWindow)
		if len(series) == 0 {
			return nil, errNoValues
		}
		return series, nil
	})

	series := make(map[pmx.Fraction][]float64, len(res.Payload))
	for field, samples := range res.Payload {
		series[pmx.Fraction(field)] = samples
	}
	out := types.PMX{
		Station:   s.cfg.Station,
		Result:    pmx.ComputeSeries(series),
		Freshness: freshness(res),
	}
	if explain {
		e := pmx.Explain()
		out.Explain = &e
	}
	return out
}

// Warm refreshes every lane concurrently. Failures are already logged by the
// cache, so Warm only waits.
func (s *Service) Warm(ctx context.Context) error {
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { s.Latest(ctx); return nil })
	g.Go(func() error { s.Trend(ctx); return nil })
	g.Go(func() error { s.History(ctx, s.cfg.DefaultHistory); return nil })
	g.Go(func() error { s.PMX(ctx, false); return nil })
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("cache warmed", "station", s.cfg.Station, "elapsed", time.Since(start))
	return nil
}

func freshness[T any](res cache.Result[T]) types.Freshness {
	f := types.Freshness{Stale: res.Stale, NoData: !res.OK}
	if !res.FetchedAt.IsZero() {
		t := res.FetchedAt
		f.FetchedAt = &t
	}
	return f
}
