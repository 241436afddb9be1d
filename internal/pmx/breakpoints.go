package pmx

import (
	"math"

	"sen66-server/internal/curve"
)

// MaxAQI is returned for concentrations above every segment.
const MaxAQI = 500

// PM25Table and PM10Table follow the EPA AQI breakpoints. Adjacent segments
// leave the usual 0.1 (or 1) concentration gap between them.
var (
	PM25Table = curve.Table{
		Segments: []curve.Segment{
			{ConcLow: 0.0, ConcHigh: 9.0, IndexLow: 0, IndexHigh: 50},
			{ConcLow: 9.1, ConcHigh: 35.0, IndexLow: 51, IndexHigh: 100},
			{ConcLow: 35.1, ConcHigh: 55.0, IndexLow: 101, IndexHigh: 150},
			{ConcLow: 55.1, ConcHigh: 125.0, IndexLow: 151, IndexHigh: 200},
			{ConcLow: 125.1, ConcHigh: 225.0, IndexLow: 201, IndexHigh: 300},
			{ConcLow: 225.1, ConcHigh: 325.0, IndexLow: 301, IndexHigh: 400},
			{ConcLow: 325.1, ConcHigh: 500.0, IndexLow: 401, IndexHigh: 500},
		},
		Ceiling: MaxAQI,
		Mode:    curve.Extrapolate,
	}

	PM10Table = curve.Table{
		Segments: []curve.Segment{
			{ConcLow: 0, ConcHigh: 54, IndexLow: 0, IndexHigh: 50},
			{ConcLow: 55, ConcHigh: 154, IndexLow: 51, IndexHigh: 100},
			{ConcLow: 155, ConcHigh: 254, IndexLow: 101, IndexHigh: 150},
			{ConcLow: 255, ConcHigh: 354, IndexLow: 151, IndexHigh: 200},
			{ConcLow: 355, ConcHigh: 424, IndexLow: 201, IndexHigh: 300},
			{ConcLow: 425, ConcHigh: 504, IndexLow: 301, IndexHigh: 400},
			{ConcLow: 505, ConcHigh: 604, IndexLow: 401, IndexHigh: 500},
		},
		Ceiling: MaxAQI,
		Mode:    curve.Extrapolate,
	}

	// PM4Table has no EPA definition; it is interpolated between the PM2.5 and
	// PM10 tables by particle diameter.
	PM4Table = DeriveTable(PM25Table, PM10Table, 4.0)
)

// DiameterRatio places diameter (µm) between the PM2.5 and PM10 cut points.
func DiameterRatio(diameter float64) float64 {
	return (diameter - 2.5) / (10 - 2.5)
}

// DeriveTable interpolates the concentration bounds of each lo segment towards
// the matching hi segment. Index bounds are copied from lo. When hi is shorter
// its last segment is reused.
func DeriveTable(lo, hi curve.Table, diameter float64) curve.Table {
	ratio := DiameterRatio(diameter)
	out := curve.Table{
		Segments: make([]curve.Segment, len(lo.Segments)),
		Ceiling:  lo.Ceiling,
		Mode:     lo.Mode,
	}
	for i, a := range lo.Segments {
		b := hi.Segments[min(i, len(hi.Segments)-1)]
		out.Segments[i] = curve.Segment{
			ConcLow:   a.ConcLow + ratio*(b.ConcLow-a.ConcLow),
			ConcHigh:  a.ConcHigh + ratio*(b.ConcHigh-a.ConcHigh),
			IndexLow:  a.IndexLow,
			IndexHigh: a.IndexHigh,
		}
	}
	return out
}

// AQI converts a concentration (µg/m³) to a 0..500 index using table.
// Negative concentrations count as zero. It reports false for NaN or infinite input.
func AQI(conc float64, table curve.Table) (float64, bool) {
	if math.IsNaN(conc) || math.IsInf(conc, 0) {
		return 0, false
	}
	return table.Eval(math.Max(0, conc))
}

// Category is the EPA AQI band name.
type Category string

const (
	CategoryGood               Category = "good"
	CategoryModerate           Category = "moderate"
	CategoryUnhealthySensitive Category = "unhealthy for sensitive groups"
	CategoryUnhealthy          Category = "unhealthy"
	CategoryVeryUnhealthy      Category = "very unhealthy"
	CategoryHazardous          Category = "hazardous"
)

func CategoryFor(index float64) Category {
	switch {
	case index <= 50:
		return CategoryGood
	case index <= 100:
		return CategoryModerate
	case index <= 150:
		return CategoryUnhealthySensitive
	case index <= 200:
		return CategoryUnhealthy
	case index <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}
