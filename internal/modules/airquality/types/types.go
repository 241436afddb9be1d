package types

import (
	"time"

	"sen66-server/internal/iaq"
	"sen66-server/internal/pmx"
	"sen66-server/internal/telemetry"
)

// Freshness tells consumers how old a view is. NoData is set when nothing
// could be shown at all; Stale when the payload outlived its TTL or the last
// refresh failed.
type Freshness struct {
	FetchedAt *time.Time `json:"fetchedAt"`
	Stale     bool       `json:"stale"`
	NoData    bool       `json:"noData"`
}

type Latest struct {
	Station    string             `json:"station"`
	Reading    *telemetry.Reading `json:"reading"`
	IAQ        iaq.Result         `json:"iaq"`
	Components []iaq.Component    `json:"components"`
	Indices    iaq.Indices        `json:"indices"`
	LEDs       int                `json:"leds"`
	Freshness
}

// Trend reports the pollutant that rose the most inside the window. Field is
// iaq.NoData when the window held no numeric values.
type Trend struct {
	Station string             `json:"station"`
	Window  string             `json:"window"`
	Field   string             `json:"field"`
	Delta   *float64           `json:"delta"`
	Deltas  map[string]float64 `json:"deltas"`
	Freshness
}

type HistoryPoint struct {
	telemetry.Reading
	IAQ     iaq.Result  `json:"iaq"`
	Indices iaq.Indices `json:"indices"`
}

type History struct {
	Station string         `json:"station"`
	Range   string         `json:"range"`
	Every   string         `json:"every"`
	Points  []HistoryPoint `json:"points"`
	Freshness
}

type PMX struct {
	Station string `json:"station"`
	pmx.Result
	Explain *pmx.Explanation `json:"explain,omitempty"`
	Freshness
}
