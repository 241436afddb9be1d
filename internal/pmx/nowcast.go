package pmx

import "math"

// NowCastWindow caps the number of samples considered.
const NowCastWindow = 12

// NowCast smooths samples ordered most recent first. Only the first
// NowCastWindow samples are looked at, and of those only finite, non-negative
// ones count. The weight base is min/max clamped to [0.5, 1] and decays with
// rank, so a single spike moves the result less than a sustained change.
func NowCast(samples []float64) (float64, bool) {
	if len(samples) > NowCastWindow {
		samples = samples[:NowCastWindow]
	}
	clean := make([]float64, 0, len(samples))
	for _, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		clean = append(clean, v)
	}
	if len(clean) == 0 {
		return 0, false
	}

	lo, hi := clean[0], clean[0]
	for _, v := range clean[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	w := 1.0
	if hi > 0 {
		w = math.Min(1, math.Max(0.5, lo/hi))
	}

	var sum, wsum float64
	for i, v := range clean {
		weight := math.Pow(w, float64(i))
		sum += v * weight
		wsum += weight
	}
	return sum / wsum, true
}
