package telemetry

import (
	"math"
	"sort"
	"time"
)

// Latest folds rows into a single reading keeping the newest value per field.
// Rows with a nil value never overwrite a present one. Time is the newest row time.
func Latest(rows []Row) Reading {
	var out Reading
	seen := make(map[string]time.Time, len(AllFields))
	for _, r := range rows {
		if r.Value == nil {
			continue
		}
		if t, ok := seen[r.Field]; ok && r.Time.Before(t) {
			continue
		}
		if !out.Set(r.Field, r.Value) {
			continue
		}
		seen[r.Field] = r.Time
		if r.Time.After(out.Time) {
			out.Time = r.Time
		}
	}
	return out
}

// Deltas returns last-minus-first per field over time-ordered rows.
// Fields with fewer than one numeric value are omitted.
func Deltas(rows []Row) map[string]float64 {
	type span struct {
		first, last         float64
		firstTime, lastTime time.Time
	}
	spans := make(map[string]*span)
	for _, r := range rows {
		if r.Value == nil || math.IsNaN(*r.Value) {
			continue
		}
		s, ok := spans[r.Field]
		if !ok {
			spans[r.Field] = &span{first: *r.Value, last: *r.Value, firstTime: r.Time, lastTime: r.Time}
			continue
		}
		if r.Time.Before(s.firstTime) {
			s.first, s.firstTime = *r.Value, r.Time
		}
		if !r.Time.Before(s.lastTime) {
			s.last, s.lastTime = *r.Value, r.Time
		}
	}
	out := make(map[string]float64, len(spans))
	for f, s := range spans {
		out[f] = s.last - s.first
	}
	return out
}

// Pivot groups rows by timestamp into readings ordered oldest first.
func Pivot(rows []Row) []Reading {
	byTime := make(map[time.Time]*Reading)
	for _, r := range rows {
		rec, ok := byTime[r.Time]
		if !ok {
			rec = &Reading{Time: r.Time}
			byTime[r.Time] = rec
		}
		if r.Value != nil {
			rec.Set(r.Field, r.Value)
		}
	}
	out := make([]Reading, 0, len(byTime))
	for _, rec := range byTime {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Series returns per-field numeric values ordered most recent first, at most limit each.
func Series(rows []Row, limit int) map[string][]float64 {
	sorted := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Value != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.After(sorted[j].Time) })
	out := make(map[string][]float64)
	for _, r := range sorted {
		if limit > 0 && len(out[r.Field]) >= limit {
			continue
		}
		out[r.Field] = append(out[r.Field], *r.Value)
	}
	return out
}
