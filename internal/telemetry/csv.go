package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	columnTime  = "_time"
	columnField = "_field"
	columnValue = "_value"

	timestampLayout = "2006-01-02T15:04:05"
)

// ParseCSV reads the tabular query response. Blank and "#" lines are skipped.
// Any line that names both _field and _value is a header; column positions are
// re-resolved every time one appears. Rows before the first header are ignored.
// A row with an unparsable _time is dropped; a non-numeric _value keeps the row
// with a nil Value.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	timeIdx, fieldIdx, valueIdx := -1, -1, -1
	var out []Row
	for {
		cols, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if isHeader(cols) {
			timeIdx = indexOf(cols, columnTime)
			fieldIdx = indexOf(cols, columnField)
			valueIdx = indexOf(cols, columnValue)
			continue
		}
		if fieldIdx < 0 || valueIdx < 0 || len(cols) <= max(fieldIdx, valueIdx) {
			continue
		}

		row := Row{Field: cols[fieldIdx]}
		if timeIdx >= 0 {
			if len(cols) <= timeIdx {
				continue
			}
			t, err := ParseTimestamp(cols[timeIdx])
			if err != nil {
				continue
			}
			row.Time = t
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(cols[valueIdx]), 64); err == nil {
			row.Value = Float(v)
		}
		out = append(out, row)
	}
	return out, nil
}

// ParseTimestamp parses an ISO-8601 UTC cell after stripping any fractional
// seconds and the trailing Z.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "Z")
	return time.ParseInLocation(timestampLayout, s, time.UTC)
}

func isHeader(cols []string) bool {
	return indexOf(cols, columnField) >= 0 && indexOf(cols, columnValue) >= 0
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if strings.TrimSpace(c) == name {
			return i
		}
	}
	return -1
}
