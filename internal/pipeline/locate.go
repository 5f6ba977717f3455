package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"fleetreport/internal"
	"fleetreport/internal/util"
)

// headerPatterns are matched against the normalized, space-joined cells of
// a candidate row. Each pattern that matches adds one point.
var headerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`vehiculo|vehicle`),
	regexp.MustCompile(`estado( del dispositivo)?|status`),
	regexp.MustCompile(`dias .*comunic|days .*communic`),
	regexp.MustCompile(`numero de serie|serial number`),
}

const headerMinScore = 2

var locatorExpected = []string{"Vehículo", "Estado del dispositivo", "Días desde que se recibió la comunicación", "Número de serie"}

// LocateHeaderRow returns the index of the first row scoring at least two
// expected-header patterns. Exports often carry title and branding rows
// above the real header.
func LocateHeaderRow(grid internal.RawGrid) (int, error) {
	for i, row := range grid {
		if scoreHeaderRow(row) >= headerMinScore {
			return i, nil
		}
	}
	return -1, &HeaderNotFoundError{Expected: locatorExpected}
}

func scoreHeaderRow(row []any) int {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		cells = append(cells, util.NormalizeHeader(internal.CellText(c)))
	}
	joined := strings.TrimSpace(strings.Join(cells, " "))
	if joined == "" {
		return 0
	}

	score := 0
	for _, re := range headerPatterns {
		if re.MatchString(joined) {
			score++
		}
	}
	return score
}

// TableFromGrid turns the rows under headerIdx into RawRows keyed by the
// trimmed header text, repeated headers suffixed "_1", "_2". Entirely empty
// rows are skipped. Non-empty cells past the last header are reported in
// RowErrors with their 1-based grid row.
func TableFromGrid(grid internal.RawGrid, headerIdx int) internal.RawTable {
	if headerIdx < 0 || headerIdx >= len(grid) {
		return internal.RawTable{}
	}

	headers := make([]string, 0, len(grid[headerIdx]))
	for _, h := range grid[headerIdx] {
		headers = append(headers, strings.TrimSpace(internal.CellText(h)))
	}
	headers = internal.UniqueHeaders(headers)

	table := internal.RawTable{Headers: headers}
	for r := headerIdx + 1; r < len(grid); r++ {
		row := grid[r]
		if isEmptyRow(row) {
			continue
		}
		if len(row) > len(headers) && !isEmptyRow(row[len(headers):]) {
			table.RowErrors = append(table.RowErrors, internal.RowError{
				Line:    r + 1,
				Message: fmt.Sprintf("too many fields: expected %d, found %d", len(headers), len(row)),
			})
		}
		table.Rows = append(table.Rows, internal.NewRawRow(headers, row))
	}
	return table
}

// LocateTable is LocateHeaderRow followed by TableFromGrid.
func LocateTable(grid internal.RawGrid) (internal.RawTable, int, error) {
	idx, err := LocateHeaderRow(grid)
	if err != nil {
		return internal.RawTable{}, -1, err
	}
	return TableFromGrid(grid, idx), idx, nil
}

func isEmptyRow(row []any) bool {
	for _, c := range row {
		if strings.TrimSpace(internal.CellText(c)) != "" {
			return false
		}
	}
	return true
}
