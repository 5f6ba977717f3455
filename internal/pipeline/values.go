package pipeline

import (
	"math"
	"regexp"
	"strings"
	"time"

	"fleetreport/internal"
	"fleetreport/internal/util"
)

const (
	// DateLayout renders dates as day/month/year with two-digit day and month.
	DateLayout = "02/01/2006"

	notAvailable = "N/A"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses ISO-8601 style values. Values without an offset are
// read in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	v := strings.TrimSpace(value)
	if v == "" || v == notAvailable {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeTimestamp renders a timestamp as DD/MM/YYYY in loc. Anything that
// does not parse, including "" and "N/A", is returned unchanged.
func NormalizeTimestamp(value string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t, ok := ParseTimestamp(value, loc)
	if !ok {
		return value
	}
	return t.In(loc).Format(DateLayout)
}

type durationUnit struct {
	re      *regexp.Regexp
	divisor float64
}

// Days, then hours, then minutes. The first unit found wins.
var durationUnits = []durationUnit{
	{re: regexp.MustCompile(`(?i)(\d+[.,]?\d*)\s*(?:days|day|días|día|dias|dia)`), divisor: 1},
	{re: regexp.MustCompile(`(?i)(\d+[.,]?\d*)\s*(?:hours|hour|horas|hora)`), divisor: 24},
	{re: regexp.MustCompile(`(?i)(\d+[.,]?\d*)\s*(?:minutes|minute|minutos|minuto)`), divisor: 24 * 60},
}

// DurationToDays converts "78 Days", "2 Horas", "11 Minutes" or a bare
// number into fractional days. Unparseable input yields 0.
func DurationToDays(value any) float64 {
	switch t := value.(type) {
	case nil:
		return 0
	case float64:
		return finiteOrZero(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case bool:
		return 0
	}

	v := strings.TrimSpace(internal.CellText(value))
	if v == "" {
		return 0
	}
	for _, unit := range durationUnits {
		m := unit.re.FindStringSubmatch(v)
		if m == nil {
			continue
		}
		n, ok := util.ParseDecimal(m[1])
		if !ok {
			return 0
		}
		return n / unit.divisor
	}
	if n, ok := util.ParseDecimal(v); ok {
		return n
	}
	return 0
}

// DaysSince returns the fractional days between a last-contact timestamp
// and now, or 0 when the value is not a timestamp.
func DaysSince(value any, now time.Time) float64 {
	if value == nil {
		return 0
	}
	t, ok := ParseTimestamp(internal.CellText(value), now.Location())
	if !ok {
		return 0
	}
	return now.Sub(t).Hours() / 24
}

// IsTruthy reports whether a cell holds a boolean-like true: true, "true"
// in any case, 1 or "1".
func IsTruthy(value any) bool {
	switch t := value.(type) {
	case bool:
		return t
	case float64:
		return t == 1
	case int:
		return t == 1
	case int64:
		return t == 1
	case string:
		s := strings.TrimSpace(t)
		return strings.EqualFold(s, "true") || s == "1"
	default:
		return false
	}
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
