// Package curve evaluates ordered piecewise-linear tables. Both the 0..100 IAQ
// score curves and the EPA 0..500 breakpoint tables are expressed as Tables.
package curve

import "math"

// Segment maps the concentration range [ConcLow, ConcHigh] onto [IndexLow, IndexHigh].
type Segment struct {
	ConcLow   float64 `json:"concLow"`
	ConcHigh  float64 `json:"concHigh"`
	IndexLow  float64 `json:"indexLow"`
	IndexHigh float64 `json:"indexHigh"`
}

// Mode selects how a value is placed inside its segment.
type Mode int

const (
	// Clamp holds values outside a segment at its end points, so a value below
	// the first segment scores IndexLow of that segment.
	Clamp Mode = iota
	// Extrapolate interpolates linearly even when the value falls into the gap
	// between two non-contiguous segments (EPA tables have 0.1 gaps).
	Extrapolate
)

// Table is an ordered list of segments plus the index returned when a value
// exceeds every segment.
type Table struct {
	Segments []Segment `json:"segments"`
	Ceiling  float64   `json:"ceiling"`
	Mode     Mode      `json:"-"`
}

// Lerp maps x from [x0, x1] onto [y0, y1], clamping outside the range.
func Lerp(x, x0, x1, y0, y1 float64) float64 {
	if x <= x0 {
		return y0
	}
	if x >= x1 {
		return y1
	}
	return y0 + (y1-y0)*((x-x0)/(x1-x0))
}

// Interpolate maps x from [x0, x1] onto [y0, y1] without clamping.
func Interpolate(x, x0, x1, y0, y1 float64) float64 {
	if x1 == x0 {
		return y1
	}
	return y0 + (y1-y0)*((x-x0)/(x1-x0))
}

// Eval returns the index for x and false when x is NaN. The first segment whose
// upper bound is >= x wins, so a boundary value belongs to the lower segment.
func (t Table) Eval(x float64) (float64, bool) {
	if math.IsNaN(x) {
		return 0, false
	}
	for _, s := range t.Segments {
		if x <= s.ConcHigh {
			if t.Mode == Extrapolate {
				return Interpolate(x, s.ConcLow, s.ConcHigh, s.IndexLow, s.IndexHigh), true
			}
			return Lerp(x, s.ConcLow, s.ConcHigh, s.IndexLow, s.IndexHigh), true
		}
	}
	return t.Ceiling, true
}

// ClampFloat limits v to [lo, hi].
func ClampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
