// Package pmx computes the particulate-matter severity index (0..500) from
// per-fraction concentration histories: NowCast smoothing, EPA breakpoint
// interpolation, then a blend of the dominant and the weighted-mean AQI.
package pmx

import (
	"math"

	"sen66-server/internal/curve"
)

// Fraction names a particle-size fraction. Values match the telemetry field names.
type Fraction string

const (
	PM1_0 Fraction = "pm1_0"
	PM2_5 Fraction = "pm2_5"
	PM4_0 Fraction = "pm4_0"
	PM10  Fraction = "pm10"
)

// Fractions is the evaluation order; earlier fractions win ties.
var Fractions = []Fraction{PM1_0, PM2_5, PM4_0, PM10}

const (
	dominantShare = 0.7
	meanShare     = 0.3
)

type fractionScale struct {
	table  curve.Table
	weight float64
}

// PM1.0 has no EPA table of its own and is scored on the PM2.5 one.
var scales = map[Fraction]fractionScale{
	PM1_0: {table: PM25Table, weight: 0.40},
	PM2_5: {table: PM25Table, weight: 0.35},
	PM4_0: {table: PM4Table, weight: 0.15},
	PM10:  {table: PM10Table, weight: 0.10},
}

// Result is the PMX outcome. PMX, Category and Dominant are nil when no
// fraction had data; SubIndices is then empty.
type Result struct {
	PMX            *int                 `json:"pmx"`
	Category       *Category            `json:"category"`
	Dominant       *Fraction            `json:"dominant"`
	SubIndices     map[Fraction]int     `json:"subIndices"`
	Concentrations map[Fraction]float64 `json:"concentrations"`
	WeightedMean   *float64             `json:"weightedMean,omitempty"`
}

type part struct {
	fraction Fraction
	aqi      float64
	weight   float64
}

// Compute scores already-smoothed concentrations. Missing, NaN or infinite
// entries are treated as absent.
func Compute(conc map[Fraction]float64) Result {
	res := Result{
		SubIndices:     make(map[Fraction]int),
		Concentrations: make(map[Fraction]float64),
	}
	parts := make([]part, 0, len(Fractions))
	for _, f := range Fractions {
		c, ok := conc[f]
		if !ok {
			continue
		}
		sc := scales[f]
		a, ok := AQI(c, sc.table)
		if !ok {
			continue
		}
		res.Concentrations[f] = c
		res.SubIndices[f] = int(math.Round(a))
		parts = append(parts, part{fraction: f, aqi: a, weight: sc.weight})
	}
	combine(&res, parts)
	return res
}

// ComputeSeries smooths each fraction's samples (most recent first) with
// NowCast and scores the result.
func ComputeSeries(series map[Fraction][]float64) Result {
	conc := make(map[Fraction]float64, len(series))
	for _, f := range Fractions {
		if c, ok := NowCast(series[f]); ok {
			conc[f] = c
		}
	}
	return Compute(conc)
}

func combine(res *Result, parts []part) {
	if len(parts) == 0 {
		return
	}
	dominant := parts[0]
	var sum, wsum float64
	for _, p := range parts {
		if p.aqi > dominant.aqi {
			dominant = p
		}
		sum += p.aqi * p.weight
		wsum += p.weight
	}
	mean := sum / wsum
	pmx := int(math.Round(dominantShare*dominant.aqi + meanShare*mean))
	cat := CategoryFor(float64(pmx))
	f := dominant.fraction

	res.PMX = &pmx
	res.Category = &cat
	res.Dominant = &f
	res.WeightedMean = &mean
}

// Explanation exposes the fixed weights and tables behind a Result.
type Explanation struct {
	Weights map[Fraction]float64     `json:"weights"`
	Tables  map[Fraction]curve.Table `json:"breakpoints"`
}

func Explain() Explanation {
	e := Explanation{
		Weights: make(map[Fraction]float64, len(scales)),
		Tables:  make(map[Fraction]curve.Table, len(scales)),
	}
	for f, s := range scales {
		e.Weights[f] = s.weight
		e.Tables[f] = s.table
	}
	return e
}
