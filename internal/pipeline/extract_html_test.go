package pipeline

import (
	"testing"

	"fleetreport/internal"
)

func TestParseHTMLGrid(t *testing.T) {
	html := `<html><body>
<table><tr><td>Flota Norte</td></tr></table>
<table>
<tr><th>Vehículo</th><th>Estado</th><th>Días desde que se recibió la comunicación</th></tr>
<tr><td>V1</td><td>Conectado</td><td>0</td></tr>
<tr><td>V2</td><td>Sin&nbsp;conexión</td><td>2 Days</td></tr>
</table></body></html>`
	grid, err := ParseHTMLGrid([]byte(html))
	if err != nil {
		t.Fatal(err)
	}
	if len(grid) != 3 {
		t.Fatalf("len=%d", len(grid))
	}
	if grid[2][1] != "Sin conexión" {
		t.Fatalf("cell=%q", grid[2][1])
	}
}

func TestParseHTMLGridNoTable(t *testing.T) {
	if _, err := ParseHTMLGrid([]byte("<p>nada</p>")); err == nil {
		t.Fatal("expected error")
	}
}

func TestDetectKind(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    internal.InputKind
		ok      bool
	}{
		{"reporte.csv", "", internal.InputCSV, true},
		{"REPORTE.XLSX", "", internal.InputXLSX, true},
		{"export.xls", "<table><tr><td>x</td></tr></table>", internal.InputHTML, true},
		{"export.xls", "\xd0\xcf\x11\xe0", internal.InputXLSX, true},
		{"report.pdf", "", internal.InputPDF, true},
		{"logo.png", "", "", false},
	}
	for _, tc := range cases {
		got, ok := DetectKind(tc.name, []byte(tc.content))
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s: got %q %v", tc.name, got, ok)
		}
	}
}
