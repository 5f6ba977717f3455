package pipeline

import (
	"testing"

	"fleetreport/internal"
)

func gpsRow(vehicle, status string, days float64) internal.CanonicalRow {
	r := internal.NewCanonicalRow()
	r.Set(ColVehicle, vehicle)
	r.Set(ColStatus, status)
	r.Set(ColDays, days)
	r.Set(ColGroup, "")
	r.Set(ColSerial, "")
	return r
}

var statusRes = internal.FieldResolution{internal.FieldVehicle: "Vehículo", internal.FieldStatus: "Estado"}

func TestIsDisconnected(t *testing.T) {
	cases := []struct {
		row  internal.CanonicalRow
		want bool
	}{
		{gpsRow("A", "Conectado", 0.5), false},
		{gpsRow("B", "Sin conexión", 0), true},
		{gpsRow("C", "Conectado", 1.0), true},
		{gpsRow("D", "OFFLINE", 0), true},
		{gpsRow("E", "Desconectado", 0.1), true},
		{gpsRow("F", "", 0.99), false},
	}
	for _, tc := range cases {
		if got := IsDisconnected(tc.row); got != tc.want {
			t.Fatalf("%s: got %v", tc.row.String(ColVehicle), got)
		}
	}
}

func TestSummarize(t *testing.T) {
	rows := []internal.CanonicalRow{
		gpsRow("V1", "Conectado", 0.5),
		gpsRow("V2", "Sin conexión", 5),
		gpsRow("V3", "Conectado", 5),
		gpsRow("V4", "", 2),
	}
	s := Summarize(rows, statusRes)

	want := []internal.StatusCount{{Status: "Conectado", Count: 2}, {Status: "Sin conexión", Count: 1}, {Status: "N/A", Count: 1}}
	if len(s.StatusCounts) != len(want) {
		t.Fatalf("counts=%v", s.StatusCounts)
	}
	for i := range want {
		if s.StatusCounts[i] != want[i] {
			t.Fatalf("counts[%d]=%v", i, s.StatusCounts[i])
		}
	}

	// ties keep the first row seen
	if s.MaxVehicle != "V2" || s.MaxDays != 5 {
		t.Fatalf("max=%s %v", s.MaxVehicle, s.MaxDays)
	}

	order := []string{}
	for _, r := range s.Disconnected {
		order = append(order, r.String(ColVehicle))
	}
	if len(order) != 3 || order[0] != "V2" || order[1] != "V3" || order[2] != "V4" {
		t.Fatalf("disconnected=%v", order)
	}
	if s.DisconnectedCount != 3 {
		t.Fatalf("count=%d", s.DisconnectedCount)
	}
	if !near(s.MeanDays, 3.125) || !near(s.MedianDays, 3.5) {
		t.Fatalf("mean=%v median=%v", s.MeanDays, s.MedianDays)
	}
}

func TestSummarizeWithoutStatusColumn(t *testing.T) {
	rows := []internal.CanonicalRow{gpsRow("V1", "N/A", 0), gpsRow("V2", "N/A", 0)}
	s := Summarize(rows, internal.FieldResolution{internal.FieldVehicle: "Vehículo"})
	if len(s.StatusCounts) != 1 || s.StatusCounts[0].Status != "N/A" || s.StatusCounts[0].Count != 2 {
		t.Fatalf("counts=%v", s.StatusCounts)
	}
	if s.MaxVehicle != "V1" || s.MaxDays != 0 {
		t.Fatalf("max=%s %v", s.MaxVehicle, s.MaxDays)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, statusRes)
	if s.MaxRow != nil || len(s.StatusCounts) != 0 || len(s.Disconnected) != 0 {
		t.Fatalf("summary=%+v", s)
	}
}
