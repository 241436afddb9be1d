package telemetry

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Selector reduces each field to a single row.
type Selector string

const (
	SelectNone  Selector = ""
	SelectLast  Selector = "last"
	SelectFirst Selector = "first"
)

// Query describes one read against the store: a field set over a time range,
// optionally downsampled with a mean over Every-sized windows.
type Query struct {
	Measurement string
	Fields      []string
	Start       time.Time
	Stop        time.Time
	Every       time.Duration
	Selector    Selector
}

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// ValidateIdentifier rejects bucket, measurement and field names that could
// escape a Flux string literal.
func ValidateIdentifier(kind, s string) error {
	if !identifierRe.MatchString(s) {
		return fmt.Errorf("invalid %s %q (allowed: letters, digits, _ . -)", kind, s)
	}
	return nil
}

// Flux renders the query for bucket. Identifiers are validated and quoted;
// nothing user-supplied reaches the query body unescaped.
func (q Query) Flux(bucket string) (string, error) {
	if err := ValidateIdentifier("bucket", bucket); err != nil {
		return "", err
	}
	if err := ValidateIdentifier("measurement", q.Measurement); err != nil {
		return "", err
	}
	if len(q.Fields) == 0 {
		return "", fmt.Errorf("query needs at least one field")
	}
	fields := make([]string, 0, len(q.Fields))
	for _, f := range q.Fields {
		if err := ValidateIdentifier("field", f); err != nil {
			return "", err
		}
		fields = append(fields, fluxString(f))
	}
	if q.Start.IsZero() {
		return "", fmt.Errorf("query needs a start time")
	}
	stop := q.Stop
	if stop.IsZero() {
		stop = time.Now()
	}
	if !q.Start.Before(stop) {
		return "", fmt.Errorf("query start %s must be before stop %s", q.Start, stop)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", fluxString(bucket))
	fmt.Fprintf(&b, "  |> range(start: %s, stop: %s)\n", fluxTime(q.Start), fluxTime(stop))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %s)\n", fluxString(q.Measurement))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => contains(value: r._field, set: [%s]))\n", strings.Join(fields, ", "))
	if q.Every > 0 {
		fmt.Fprintf(&b, "  |> aggregateWindow(every: %s, fn: mean, createEmpty: false)\n", fluxDuration(q.Every))
	}
	switch q.Selector {
	case SelectNone:
	case SelectLast:
		b.WriteString("  |> last()\n")
	case SelectFirst:
		b.WriteString("  |> first()\n")
	default:
		return "", fmt.Errorf("unknown selector %q", q.Selector)
	}
	b.WriteString(`  |> keep(columns: ["_time", "_field", "_value"])`)
	return b.String(), nil
}

func fluxString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`)
	return `"` + r.Replace(s) + `"`
}

func fluxTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func fluxDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int64(d/time.Minute))
	}
	secs := int64(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("%ds", secs)
}
