package iaq

import (
	"math"

	"sen66-server/internal/curve"
	"sen66-server/internal/telemetry"
)

// NoData labels a result where no pollutant could be scored.
const NoData = "no-data"

const (
	LabelPM25 = "PM2.5"
	LabelPM10 = "PM10"
	LabelCO2  = "CO2"
	LabelVOC  = "VOC"
	LabelNOx  = "NOx"
)

// Result is the dominant-pollutant IAQ. Score is nil when Label is NoData.
type Result struct {
	Score *float64 `json:"score"`
	Label string   `json:"label"`
}

// Component is one scored pollutant. Score is nil when the reading had no value.
type Component struct {
	Label string   `json:"label"`
	Field string   `json:"field"`
	Value *float64 `json:"value"`
	Score *float64 `json:"score"`
}

type scorer struct {
	label string
	field string
	fn    func(float64) (float64, bool)
}

// Order matters: ties go to the earlier entry.
var scorers = []scorer{
	{LabelPM25, telemetry.FieldPM2_5, ScorePM25},
	{LabelPM10, telemetry.FieldPM10, ScorePM10},
	{LabelCO2, telemetry.FieldCO2, ScoreCO2},
	{LabelVOC, telemetry.FieldVOC, ScoreVOC},
	{LabelNOx, telemetry.FieldNOx, ScoreNOx},
}

// Components scores every IAQ pollutant of r in evaluation order.
// PM1.0 and PM4.0 do not take part.
func Components(r telemetry.Reading) []Component {
	out := make([]Component, 0, len(scorers))
	for _, s := range scorers {
		c := Component{Label: s.label, Field: s.field, Value: r.Get(s.field)}
		if v, ok := s.fn(telemetry.Value(c.Value)); ok {
			c.Score = &v
		}
		out = append(out, c)
	}
	return out
}

// Dominant returns the worst pollutant score of r and its label.
func Dominant(r telemetry.Reading) Result {
	return dominantOf(Components(r))
}

func dominantOf(components []Component) Result {
	best := math.Inf(-1)
	label := ""
	for _, c := range components {
		if c.Score == nil {
			continue
		}
		if *c.Score > best {
			best = *c.Score
			label = c.Label
		}
	}
	if label == "" {
		return Result{Label: NoData}
	}
	s := curve.ClampFloat(best, MinScore, MaxScore)
	return Result{Score: &s, Label: label}
}

// Indices are the per-class 0..100 dashboard indices, rounded. PM is the worse
// of the PM2.5 and PM10 scores.
type Indices struct {
	VOC *int `json:"voc_index"`
	CO2 *int `json:"co2_index"`
	PM  *int `json:"pm_index"`
}

func ComputeIndices(r telemetry.Reading) Indices {
	var out Indices
	if v, ok := ScoreVOC(telemetry.Value(r.VOC)); ok {
		out.VOC = roundScore(v)
	}
	if v, ok := ScoreCO2(telemetry.Value(r.CO2)); ok {
		out.CO2 = roundScore(v)
	}
	pm, okPM := math.Inf(-1), false
	if v, ok := ScorePM25(telemetry.Value(r.PM2_5)); ok {
		pm, okPM = math.Max(pm, v), true
	}
	if v, ok := ScorePM10(telemetry.Value(r.PM10)); ok {
		pm, okPM = math.Max(pm, v), true
	}
	if okPM {
		out.PM = roundScore(pm)
	}
	return out
}

func roundScore(v float64) *int {
	n := int(math.Round(curve.ClampFloat(v, MinScore, MaxScore)))
	return &n
}
