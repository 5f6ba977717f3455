package server

import (
	"time"

	"fleetreport/internal"
	"fleetreport/internal/pipeline"
)

type reportView struct {
	ID           string                    `json:"id"`
	Report       internal.ReportKind       `json:"report"`
	Source       string                    `json:"source"`
	LoadedAt     time.Time                 `json:"loadedAt"`
	HeaderRow    int                       `json:"headerRow"`
	RowCount     int                       `json:"rowCount"`
	RowErrors    []string                  `json:"rowErrors,omitempty"`
	Columns      map[internal.Field]string `json:"columns,omitempty"`
	Summary      *internal.Summary         `json:"summary,omitempty"`
	Disconnected []unitView                `json:"disconnected,omitempty"`
	Rows         []map[string]any          `json:"rows,omitempty"`
}

type unitView struct {
	Vehicle string  `json:"vehiculo"`
	Status  string  `json:"estado"`
	Days    float64 `json:"dias"`
	Group   string  `json:"grupo,omitempty"`
	Serial  string  `json:"numeroSerie,omitempty"`
}

func newReportView(r *pipeline.LoadedReport, withRows bool) reportView {
	v := reportView{
		ID:        r.ID,
		Report:    r.Report,
		Source:    r.Source,
		LoadedAt:  r.LoadedAt,
		HeaderRow: r.HeaderRow,
		RowCount:  len(r.Rows),
		Columns:   r.Resolution,
		Summary:   r.Summary,
	}
	for _, e := range r.Table.RowErrors {
		v.RowErrors = append(v.RowErrors, e.String())
	}
	if r.Summary != nil {
		v.Disconnected = make([]unitView, 0, len(r.Summary.Disconnected))
		for _, row := range r.Summary.Disconnected {
			v.Disconnected = append(v.Disconnected, unitView{
				Vehicle: row.String(pipeline.ColVehicle),
				Status:  row.String(pipeline.ColStatus),
				Days:    row.Float(pipeline.ColDays),
				Group:   row.String(pipeline.ColGroup),
				Serial:  row.String(pipeline.ColSerial),
			})
		}
	}
	if withRows && r.Summary == nil {
		v.Rows = make([]map[string]any, 0, len(r.Rows))
		for _, row := range r.Rows {
			v.Rows = append(v.Rows, row.Values)
		}
	}
	return v
}
