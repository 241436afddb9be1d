package pmx

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAQI_knownPoints(t *testing.T) {
	tests := []struct {
		name  string
		conc  float64
		table string
		want  float64
	}{
		{"zero", 0, "pm25", 0},
		{"negative clamps to zero", -4, "pm25", 0},
		{"first upper boundary", 9.0, "pm25", 50},
		{"second upper boundary", 35.0, "pm25", 100},
		{"saturates", 1000, "pm25", MaxAQI},
		{"pm10 first upper", 54, "pm10", 50},
		{"pm10 mid second", 104.5, "pm10", 75.5},
		{"pm10 saturates", 605, "pm10", MaxAQI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := PM25Table
			if tt.table == "pm10" {
				table = PM10Table
			}
			got, ok := AQI(tt.conc, table)
			if !ok || !approx(got, tt.want) {
				t.Errorf("AQI(%v) = (%v, %v); want %v", tt.conc, got, ok, tt.want)
			}
		})
	}
}

func TestAQI_gapBetweenSegmentsExtrapolates(t *testing.T) {
	got, ok := AQI(9.05, PM25Table)
	if !ok {
		t.Fatal("ok = false")
	}
	if got <= 50 || got >= 51 {
		t.Errorf("AQI(9.05) = %v; want between 50 and 51", got)
	}
}

func TestAQI_nonFinite(t *testing.T) {
	if _, ok := AQI(math.NaN(), PM25Table); ok {
		t.Error("AQI(NaN) ok = true")
	}
	if _, ok := AQI(math.Inf(1), PM25Table); ok {
		t.Error("AQI(+Inf) ok = true")
	}
}

func TestPM4Table_liesBetween(t *testing.T) {
	if len(PM4Table.Segments) != len(PM25Table.Segments) {
		t.Fatalf("segments = %d; want %d", len(PM4Table.Segments), len(PM25Table.Segments))
	}
	want := DiameterRatio(4)
	if !approx(want, 0.2) {
		t.Fatalf("DiameterRatio(4) = %v; want 0.2", want)
	}
	for i, s := range PM4Table.Segments {
		lo, hi := PM25Table.Segments[i], PM10Table.Segments[i]
		if !(s.ConcHigh > lo.ConcHigh && s.ConcHigh < hi.ConcHigh) {
			t.Errorf("segment %d ConcHigh %v not strictly inside (%v, %v)", i, s.ConcHigh, lo.ConcHigh, hi.ConcHigh)
		}
		if i > 0 && !(s.ConcLow > lo.ConcLow && s.ConcLow < hi.ConcLow) {
			t.Errorf("segment %d ConcLow %v not strictly inside (%v, %v)", i, s.ConcLow, lo.ConcLow, hi.ConcLow)
		}
		if r := (s.ConcHigh - lo.ConcHigh) / (hi.ConcHigh - lo.ConcHigh); !approx(r, want) {
			t.Errorf("segment %d ratio = %v; want %v", i, r, want)
		}
		if s.IndexLow != lo.IndexLow || s.IndexHigh != lo.IndexHigh {
			t.Errorf("segment %d index bounds changed: %+v", i, s)
		}
	}
}

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		in   float64
		want Category
	}{
		{0, CategoryGood},
		{50, CategoryGood},
		{51, CategoryModerate},
		{100, CategoryModerate},
		{150, CategoryUnhealthySensitive},
		{200, CategoryUnhealthy},
		{300, CategoryVeryUnhealthy},
		{301, CategoryHazardous},
		{500, CategoryHazardous},
	}
	for _, tt := range tests {
		if got := CategoryFor(tt.in); got != tt.want {
			t.Errorf("CategoryFor(%v) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestNowCast(t *testing.T) {
	tests := []struct {
		name   string
		in     []float64
		want   float64
		wantOK bool
	}{
		{name: "constant", in: []float64{10, 10, 10}, want: 10, wantOK: true},
		{name: "empty", in: nil},
		{name: "only invalid", in: []float64{math.NaN(), -1, math.Inf(1)}},
		{name: "all zero", in: []float64{0, 0}, want: 0, wantOK: true},
		// w = clamp(10/20) = 0.5: (20 + 10*0.5) / 1.5
		{name: "spike damped", in: []float64{20, 10}, want: 25.0 / 1.5, wantOK: true},
		// w = 0.5 floor: (40 + 10*0.5) / 1.5
		{name: "weight floor", in: []float64{40, 10}, want: 45.0 / 1.5, wantOK: true},
		{name: "invalid dropped", in: []float64{10, math.NaN(), -5, 10}, want: 10, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NowCast(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v; want %v", ok, tt.wantOK)
			}
			if ok && !approx(got, tt.want) {
				t.Errorf("NowCast = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestNowCast_onlyFirstTwelveCount(t *testing.T) {
	in := make([]float64, 20)
	for i := range in {
		in[i] = 5
	}
	in[15] = 1000
	got, ok := NowCast(in)
	if !ok || !approx(got, 5) {
		t.Errorf("NowCast = (%v, %v); want 5", got, ok)
	}
}

func TestCombine_dominantAndWeightedMean(t *testing.T) {
	var res Result
	combine(&res, []part{
		{fraction: PM1_0, aqi: 120, weight: 0.40},
		{fraction: PM2_5, aqi: 80, weight: 0.35},
		{fraction: PM10, aqi: 40, weight: 0.10},
	})
	if res.Dominant == nil || *res.Dominant != PM1_0 {
		t.Fatalf("Dominant = %v; want pm1_0", res.Dominant)
	}
	wantMean := (120*0.4 + 80*0.35 + 40*0.1) / 0.85
	if res.WeightedMean == nil || math.Abs(*res.WeightedMean-wantMean) > 1e-9 {
		t.Errorf("WeightedMean = %v; want %v", res.WeightedMean, wantMean)
	}
	if res.PMX == nil || *res.PMX != 112 {
		t.Errorf("PMX = %v; want 112", res.PMX)
	}
	if res.Category == nil || *res.Category != CategoryUnhealthySensitive {
		t.Errorf("Category = %v", res.Category)
	}
}

func TestCombine_tieKeepsEarlierFraction(t *testing.T) {
	var res Result
	combine(&res, []part{
		{fraction: PM2_5, aqi: 60, weight: 0.35},
		{fraction: PM4_0, aqi: 60, weight: 0.15},
	})
	if *res.Dominant != PM2_5 {
		t.Errorf("Dominant = %v; want pm2_5", *res.Dominant)
	}
}

func TestCompute(t *testing.T) {
	res := Compute(map[Fraction]float64{PM2_5: 9, PM10: 54, PM4_0: math.NaN()})
	if res.SubIndices[PM2_5] != 50 || res.SubIndices[PM10] != 50 {
		t.Errorf("SubIndices = %v", res.SubIndices)
	}
	if _, ok := res.SubIndices[PM4_0]; ok {
		t.Error("NaN fraction should be absent")
	}
	if res.PMX == nil || *res.PMX != 50 || *res.Category != CategoryGood {
		t.Errorf("PMX = %v category = %v; want 50 good", res.PMX, res.Category)
	}
	if *res.Dominant != PM2_5 {
		t.Errorf("Dominant = %v; want pm2_5 (first of tie)", *res.Dominant)
	}
}

func TestCompute_nothingPresent(t *testing.T) {
	res := Compute(nil)
	if res.PMX != nil || res.Category != nil || res.Dominant != nil {
		t.Fatalf("res = %+v; want nil fields", res)
	}
	if res.SubIndices == nil || len(res.SubIndices) != 0 {
		t.Errorf("SubIndices = %v; want empty map", res.SubIndices)
	}
}

func TestComputeSeries(t *testing.T) {
	res := ComputeSeries(map[Fraction][]float64{
		PM1_0: {9, 9, 9},
		PM10:  {},
	})
	if res.PMX == nil || *res.PMX != 50 {
		t.Fatalf("PMX = %v; want 50", res.PMX)
	}
	if c := res.Concentrations[PM1_0]; !approx(c, 9) {
		t.Errorf("pm1_0 concentration = %v; want 9", c)
	}
	if _, ok := res.Concentrations[PM10]; ok {
		t.Error("empty pm10 series should be absent")
	}
}

func TestExplain(t *testing.T) {
	e := Explain()
	var total float64
	for _, w := range e.Weights {
		total += w
	}
	if !approx(total, 1) {
		t.Errorf("weights sum = %v; want 1", total)
	}
	if len(e.Tables[PM4_0].Segments) != 7 {
		t.Errorf("pm4_0 table has %d segments", len(e.Tables[PM4_0].Segments))
	}
}
