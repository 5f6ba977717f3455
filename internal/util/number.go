package util

import (
	"math"
	"strconv"
	"strings"
)

// ParseDecimal parses a number written with either '.' or ',' as the
// decimal separator. Only the first comma is treated as a separator.
func ParseDecimal(token string) (float64, bool) {
	compact := strings.TrimSpace(strings.ReplaceAll(token, "\u00A0", " "))
	if compact == "" {
		return 0, false
	}
	compact = strings.Replace(compact, ",", ".", 1)
	parsed, err := strconv.ParseFloat(compact, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}
