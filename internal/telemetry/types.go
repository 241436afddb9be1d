package telemetry

import (
	"math"
	"time"
)

// Field names as written by the SEN66 firmware into the "environment" measurement.
const (
	FieldPM1_0 = "pm1_0"
	FieldPM2_5 = "pm2_5"
	FieldPM4_0 = "pm4_0"
	FieldPM10  = "pm10"
	FieldCO2   = "co2"
	FieldVOC   = "voc"
	FieldNOx   = "nox"
)

// AllFields lists every pollutant field in a stable order.
var AllFields = []string{FieldPM1_0, FieldPM2_5, FieldPM4_0, FieldPM10, FieldCO2, FieldVOC, FieldNOx}

// IAQFields lists the pollutants that feed the dominant IAQ score, in
// scoring order.
var IAQFields = []string{FieldPM2_5, FieldPM10, FieldCO2, FieldVOC, FieldNOx}

// PMFields lists the particle-size fractions used for PMX.
var PMFields = []string{FieldPM1_0, FieldPM2_5, FieldPM4_0, FieldPM10}

// Reading is one set of pollutant values. A nil field means no data.
type Reading struct {
	Time  time.Time `json:"time"`
	PM1_0 *float64  `json:"pm1_0,omitempty"`
	PM2_5 *float64  `json:"pm2_5,omitempty"`
	PM4_0 *float64  `json:"pm4_0,omitempty"`
	PM10  *float64  `json:"pm10,omitempty"`
	CO2   *float64  `json:"co2,omitempty"`
	VOC   *float64  `json:"voc,omitempty"`
	NOx   *float64  `json:"nox,omitempty"`
}

// Row is a single (timestamp, field, value) triple returned by the store.
// Value is nil when the cell was not numeric.
type Row struct {
	Time  time.Time
	Field string
	Value *float64
}

// Value returns v or NaN when v is nil.
func Value(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// Float returns a pointer to v, or nil when v is not finite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Set stores v under the named field. Unknown fields are ignored and reported as false.
func (r *Reading) Set(field string, v *float64) bool {
	switch field {
	case FieldPM1_0:
		r.PM1_0 = v
	case FieldPM2_5:
		r.PM2_5 = v
	case FieldPM4_0:
		r.PM4_0 = v
	case FieldPM10:
		r.PM10 = v
	case FieldCO2:
		r.CO2 = v
	case FieldVOC:
		r.VOC = v
	case FieldNOx:
		r.NOx = v
	default:
		return false
	}
	return true
}

// Get returns the named field, nil when absent or unknown.
func (r Reading) Get(field string) *float64 {
	switch field {
	case FieldPM1_0:
		return r.PM1_0
	case FieldPM2_5:
		return r.PM2_5
	case FieldPM4_0:
		return r.PM4_0
	case FieldPM10:
		return r.PM10
	case FieldCO2:
		return r.CO2
	case FieldVOC:
		return r.VOC
	case FieldNOx:
		return r.NOx
	}
	return nil
}

// IsEmpty reports whether no field carries a finite value.
func (r Reading) IsEmpty() bool {
	for _, f := range AllFields {
		v := Value(r.Get(f))
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
