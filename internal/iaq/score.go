// Package iaq maps individual pollutant readings onto 0..100 badness scores
// and combines them into a single dominant-pollutant IAQ score.
package iaq

import (
	"math"

	"sen66-server/internal/curve"
)

const (
	MinScore = 0
	MaxScore = 100
)

var (
	PM25Curve = curve.Table{
		Segments: []curve.Segment{
			{ConcLow: 0, ConcHigh: 10, IndexLow: 0, IndexHigh: 20},
			{ConcLow: 10, ConcHigh: 25, IndexLow: 20, IndexHigh: 50},
			{ConcLow: 25, ConcHigh: 50, IndexLow: 50, IndexHigh: 75},
			{ConcLow: 50, ConcHigh: 75, IndexLow: 75, IndexHigh: 90},
		},
		Ceiling: MaxScore,
	}

	PM10Curve = curve.Table{
		Segments: []curve.Segment{
			{ConcLow: 0, ConcHigh: 20, IndexLow: 0, IndexHigh: 20},
			{ConcLow: 20, ConcHigh: 45, IndexLow: 20, IndexHigh: 60},
			{ConcLow: 45, ConcHigh: 100, IndexLow: 60, IndexHigh: 90},
		},
		Ceiling: MaxScore,
	}

	CO2Curve = curve.Table{
		Segments: []curve.Segment{
			{ConcLow: 400, ConcHigh: 800, IndexLow: 0, IndexHigh: 20},
			{ConcLow: 800, ConcHigh: 1000, IndexLow: 20, IndexHigh: 40},
			{ConcLow: 1000, ConcHigh: 1400, IndexLow: 40, IndexHigh: 70},
			{ConcLow: 1400, ConcHigh: 2000, IndexLow: 70, IndexHigh: 90},
		},
		Ceiling: MaxScore,
	}

	// GasIndexCurve scores the Sensirion VOC and NOx index values. Both share one curve.
	GasIndexCurve = curve.Table{
		Segments: []curve.Segment{
			{ConcLow: 0, ConcHigh: 100, IndexLow: 10, IndexHigh: 10},
			{ConcLow: 100, ConcHigh: 200, IndexLow: 10, IndexHigh: 60},
			{ConcLow: 200, ConcHigh: 300, IndexLow: 60, IndexHigh: 85},
			{ConcLow: 300, ConcHigh: 500, IndexLow: 85, IndexHigh: 100},
		},
		Ceiling: MaxScore,
	}
)

func ScorePM25(v float64) (float64, bool) { return score(PM25Curve, v) }
func ScorePM10(v float64) (float64, bool) { return score(PM10Curve, v) }
func ScoreCO2(v float64) (float64, bool)  { return score(CO2Curve, v) }
func ScoreVOC(v float64) (float64, bool)  { return score(GasIndexCurve, v) }
func ScoreNOx(v float64) (float64, bool)  { return score(GasIndexCurve, v) }

// score treats NaN and infinities as missing data.
func score(t curve.Table, v float64) (float64, bool) {
	if math.IsInf(v, 0) {
		return 0, false
	}
	return t.Eval(v)
}

// LEDs returns how many of ring LEDs light up for score. A missing score lights none.
func LEDs(score *float64, ring int) int {
	if score == nil || ring <= 0 {
		return 0
	}
	s := curve.ClampFloat(*score, MinScore, MaxScore)
	return int(math.Round(s / MaxScore * float64(ring)))
}
