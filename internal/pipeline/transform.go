package pipeline

import (
	"context"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fleetreport/internal"
	"fleetreport/internal/util"
)

// Output columns of the communication (GPS) report.
const (
	ColVehicle = "Vehículo"
	ColStatus  = "Estado"
	ColDays    = "Días"
	ColGroup   = "Grupo"
	ColSerial  = "Número de serie"
)

// Positional rules of the device (WIFI) report. The source exports keep
// these positions stable even when the header text changes.
const (
	DeviceColumnIndex     = 1
	ConnectionColumnIndex = 6
	ExceptionColumnIndex  = 8

	DeviceColumnLabel    = "Dispositivo"
	OperationalColumn    = "Estado operativo"
	StatusFunctioning    = "Functioning"
	StatusNotFunctioning = "Not functioning"
)

type dateColumn struct {
	Source string
	Target string
}

// DateColumns are timestamp-normalized and renamed to the unqualified label.
var DateColumns = []dateColumn{
	{Source: "Última hora registrada (formato ISO 8601)", Target: "Última hora registrada"},
	{Source: "Hora de la última vista (formato ISO 8601)", Target: "Hora de la última vista"},
}

// RowNormalizer turns raw rows of a communication report into canonical rows.
type RowNormalizer struct {
	Now func() time.Time
}

// NormalizeRow builds the canonical GPS row. Days come from the
// days-since-contact column or, when that is absent, from the last contact date.
func (n RowNormalizer) NormalizeRow(row internal.RawRow, res internal.FieldResolution) internal.CanonicalRow {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	out := internal.NewCanonicalRow()
	out.Set(ColVehicle, resolvedOr(row, res, internal.FieldVehicle, notAvailable))
	out.Set(ColStatus, resolvedOr(row, res, internal.FieldStatus, notAvailable))
	out.Set(ColDays, rowDays(row, res, now))
	out.Set(ColGroup, resolvedOr(row, res, internal.FieldGroup, ""))
	out.Set(ColSerial, resolvedOr(row, res, internal.FieldSerialNumber, ""))
	return out
}

// NormalizeRow uses the wall clock for last-contact dates.
func NormalizeRow(row internal.RawRow, res internal.FieldResolution) internal.CanonicalRow {
	return RowNormalizer{}.NormalizeRow(row, res)
}

func rowDays(row internal.RawRow, res internal.FieldResolution, now func() time.Time) float64 {
	if key, ok := res.Key(internal.FieldDaysSinceContact); ok {
		v, _ := row.Get(key)
		return DurationToDays(v)
	}
	if key, ok := res.Key(internal.FieldLastContactDate); ok {
		v, _ := row.Get(key)
		return DaysSince(v, now())
	}
	return 0
}

// resolvedOr returns the cell text of a resolved field. A missing column or
// a nil cell yields fallback; an empty string is kept as is.
func resolvedOr(row internal.RawRow, res internal.FieldResolution, f internal.Field, fallback string) string {
	key, ok := res.Key(f)
	if !ok {
		return fallback
	}
	v, ok := row.Get(key)
	if !ok || v == nil {
		return fallback
	}
	return internal.CellText(v)
}

// OperationalStatus is Functioning only when the connection column reads
// "online" and the exception flag column is not set.
func OperationalStatus(row internal.RawRow) string {
	_, conn, _ := row.At(ConnectionColumnIndex)
	_, exception, _ := row.At(ExceptionColumnIndex)
	if util.NormalizeHeader(internal.CellText(conn)) == "online" && !IsTruthy(exception) {
		return StatusFunctioning
	}
	return StatusNotFunctioning
}

// TransformDeviceRow applies the device report rules: the second column is
// renamed, date columns are normalized and the operational status is
// appended after every passthrough column.
func TransformDeviceRow(row internal.RawRow, loc *time.Location) internal.CanonicalRow {
	out := internal.NewCanonicalRow()
	dates := make([]dateColumn, 0, len(DateColumns))
	for i, key := range row.Keys {
		if dc, ok := dateColumnFor(key); ok {
			dates = append(dates, dc)
			continue
		}
		label := key
		if i == DeviceColumnIndex {
			label = DeviceColumnLabel
		}
		out.Set(label, row.Values[key])
	}
	setDateColumns(&out, row, dates, loc)
	out.Set(OperationalColumn, OperationalStatus(row))
	return out
}

// TransformDateColumns applies only the date-column rule; every other column
// passes through untouched.
func TransformDateColumns(row internal.RawRow, loc *time.Location) internal.CanonicalRow {
	out := internal.NewCanonicalRow()
	dates := make([]dateColumn, 0, len(DateColumns))
	for _, key := range row.Keys {
		if dc, ok := dateColumnFor(key); ok {
			dates = append(dates, dc)
			continue
		}
		out.Set(key, row.Values[key])
	}
	setDateColumns(&out, row, dates, loc)
	return out
}

func dateColumnFor(key string) (dateColumn, bool) {
	trimmed := strings.TrimSpace(key)
	for _, dc := range DateColumns {
		if trimmed == dc.Source {
			return dc, true
		}
	}
	return dateColumn{}, false
}

func setDateColumns(out *internal.CanonicalRow, row internal.RawRow, dates []dateColumn, loc *time.Location) {
	for _, dc := range dates {
		raw := row.Text(findKey(row, dc.Source))
		out.Set(dc.Target, NormalizeTimestamp(raw, loc))
	}
}

func findKey(row internal.RawRow, label string) string {
	for _, k := range row.Keys {
		if strings.TrimSpace(k) == label {
			return k
		}
	}
	return label
}

// TransformRows maps fn over every row, keeping input order. Tables with at
// least parallelThreshold rows are split across goroutines; a threshold of
// zero or less keeps the pass sequential.
func TransformRows(ctx context.Context, rows []internal.RawRow, parallelThreshold int, fn func(internal.RawRow) internal.CanonicalRow) ([]internal.CanonicalRow, error) {
	out := make([]internal.CanonicalRow, len(rows))
	if parallelThreshold <= 0 || len(rows) < parallelThreshold {
		for i, r := range rows {
			out[i] = fn(r)
		}
		return out, nil
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(rows) + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(rows); start += chunk {
		start := start
		end := min(start+chunk, len(rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i] = fn(rows[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
