package pipeline

import (
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"fleetreport/internal"
)

// DisconnectionKeywords mark a status text as not communicating.
var DisconnectionKeywords = []string{"sin conexión", "desconect", "offline"}

const disconnectedMinDays = 1.0

// IsDisconnected reports whether a canonical GPS row belongs to the
// disconnected-units subset.
func IsDisconnected(row internal.CanonicalRow) bool {
	return row.Float(ColDays) >= disconnectedMinDays || statusDisconnected(row.String(ColStatus))
}

func statusDisconnected(status string) bool {
	if status == "" {
		return false
	}
	s := strings.ToLower(status)
	for _, kw := range DisconnectionKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Summarize folds canonical GPS rows into counts by status, the row with the
// largest communication gap and the disconnected subset. It is recomputed
// from scratch for every load.
func Summarize(rows []internal.CanonicalRow, res internal.FieldResolution) internal.Summary {
	summary := internal.Summary{StatusCounts: []internal.StatusCount{}, Disconnected: []internal.CanonicalRow{}}
	_, hasStatus := res.Key(internal.FieldStatus)

	countIdx := map[string]int{}
	maxDays := -1.0
	days := make([]float64, 0, len(rows))

	for i := range rows {
		row := rows[i]

		status := ""
		if hasStatus {
			status = row.String(ColStatus)
		}
		if status == "" || !hasStatus {
			status = notAvailable
		}
		if idx, ok := countIdx[status]; ok {
			summary.StatusCounts[idx].Count++
		} else {
			countIdx[status] = len(summary.StatusCounts)
			summary.StatusCounts = append(summary.StatusCounts, internal.StatusCount{Status: status, Count: 1})
		}

		d := row.Float(ColDays)
		days = append(days, d)
		if d > maxDays {
			maxDays = d
			summary.MaxRow = &rows[i]
		}

		if IsDisconnected(row) {
			summary.Disconnected = append(summary.Disconnected, row)
		}
	}

	sort.SliceStable(summary.Disconnected, func(i, j int) bool {
		return summary.Disconnected[i].Float(ColDays) > summary.Disconnected[j].Float(ColDays)
	})
	summary.DisconnectedCount = len(summary.Disconnected)

	if summary.MaxRow != nil {
		summary.MaxDays = maxDays
		summary.MaxVehicle = summary.MaxRow.String(ColVehicle)
	}
	if len(days) > 0 {
		summary.MeanDays, _ = stats.Mean(days)
		summary.MedianDays, _ = stats.Median(days)
	}
	return summary
}
