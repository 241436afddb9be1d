package controller

import (
	"net/http"
	"strconv"
	"time"

	"sen66-server/internal/modules/airquality/views"
)

const defaultHistoryRangeKey = "24h"

type historyRange struct {
	Duration time.Duration
	Label    string
}

var historyRanges = map[string]historyRange{
	"1h":  {Duration: time.Hour, Label: "Last 1 hour"},
	"6h":  {Duration: 6 * time.Hour, Label: "Last 6 hours"},
	"24h": {Duration: 24 * time.Hour, Label: "Last 24 hours"},
	"7d":  {Duration: 7 * 24 * time.Hour, Label: "Last 7 days"},
}

var historyRangeOrder = []string{"1h", "6h", "24h", "7d"}

func resolveHistoryRange(key string) (historyRange, bool) {
	if key == "" {
		return historyRanges[defaultHistoryRangeKey], true
	}
	info, ok := historyRanges[key]
	if ok {
		return info, true
	}
	return historyRanges[defaultHistoryRangeKey], false
}

func rangeOptions(selected string) []views.RangeOption {
	opts := make([]views.RangeOption, 0, len(historyRangeOrder))
	for _, key := range historyRangeOrder {
		opts = append(opts, views.RangeOption{
			Key:      key,
			Label:    historyRanges[key].Label,
			Selected: key == selected,
		})
	}
	return opts
}

// parseBool accepts the usual strconv forms; anything else is false.
func parseBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
