package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"fleetreport/internal"
)

func TestLocateHeaderRowSkipsBanner(t *testing.T) {
	grid := internal.RawGrid{
		{"Informe de comunicaciones", ""},
		{"Vehículos activos: 2", ""},
		{"VEHÍCULO", "Estado del dispositivo", "Días desde que se recibió la comunicación"},
		{"V1", "Conectado", "0"},
	}
	idx, err := LocateHeaderRow(grid)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 2 {
		t.Fatalf("idx=%d", idx)
	}
}

func TestLocateHeaderRowEnglish(t *testing.T) {
	grid := internal.RawGrid{
		{"Vehicle", "Status", "Serial Number"},
	}
	if idx, err := LocateHeaderRow(grid); err != nil || idx != 0 {
		t.Fatalf("idx=%d err=%v", idx, err)
	}
}

func TestLocateHeaderRowNotFound(t *testing.T) {
	grid := internal.RawGrid{
		{"Vehículo", "Modelo"},
		{"V1", "X"},
	}
	_, err := LocateHeaderRow(grid)
	if !errors.Is(err, ErrHeaderNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestTableFromGridKeepsHeaderOrder(t *testing.T) {
	grid := internal.RawGrid{
		{" Vehículo ", "Estado"},
		{"", ""},
		{"V1", "Conectado"},
	}
	table := TableFromGrid(grid, 0)
	if table.Headers[0] != "Vehículo" {
		t.Fatalf("header=%q", table.Headers[0])
	}
	if len(table.Rows) != 1 {
		t.Fatalf("len=%d", len(table.Rows))
	}
	key, val, ok := table.Rows[0].At(1)
	if !ok || key != "Estado" || val != "Conectado" {
		t.Fatalf("at(1)=%q %v %v", key, val, ok)
	}
}

func TestTableFromGridRepeatedHeaders(t *testing.T) {
	grid := internal.RawGrid{
		{"ID", "Nombre", "", "", "Firmware", "IP", "Conexión", "Visto", "Excepción"},
		{"1", "AP-1", "a", "x", "28", "10.0.0.2", "online", "z", "false"},
	}
	table := TableFromGrid(grid, 0)

	want := []string{"ID", "Nombre", "", "_1", "Firmware", "IP", "Conexión", "Visto", "Excepción"}
	if fmt.Sprint(table.Headers) != fmt.Sprint(want) {
		t.Fatalf("headers=%q", table.Headers)
	}
	row := table.Rows[0]
	if len(row.Keys) != 9 {
		t.Fatalf("keys=%q", row.Keys)
	}
	if key, val, _ := row.At(3); key != "_1" || val != "x" {
		t.Fatalf("at(3)=%q %v", key, val)
	}
	if key, val, _ := row.At(6); key != "Conexión" || val != "online" {
		t.Fatalf("at(6)=%q %v", key, val)
	}
	if key, val, _ := row.At(8); key != "Excepción" || val != "false" {
		t.Fatalf("at(8)=%q %v", key, val)
	}
	if got := OperationalStatus(row); got != StatusFunctioning {
		t.Fatalf("status=%q", got)
	}
	if len(table.RowErrors) != 0 {
		t.Fatalf("rowErrors=%v", table.RowErrors)
	}
}

func TestTableFromGridSuffixSkipsExistingHeader(t *testing.T) {
	grid := internal.RawGrid{
		{"Estado", "Estado_1", "Estado"},
		{"a", "b", "c"},
	}
	table := TableFromGrid(grid, 0)
	want := []string{"Estado", "Estado_1", "Estado_2"}
	if fmt.Sprint(table.Headers) != fmt.Sprint(want) {
		t.Fatalf("headers=%q", table.Headers)
	}
	if got := table.Rows[0].Text("Estado_2"); got != "c" {
		t.Fatalf("Estado_2=%q", got)
	}
}

func TestTableFromGridExtraCells(t *testing.T) {
	grid := internal.RawGrid{
		{"Vehículo", "Estado"},
		{"V1", "Conectado", ""},
		{"V2", "Sin conexión", "sobra"},
	}
	table := TableFromGrid(grid, 0)
	if len(table.Rows) != 2 {
		t.Fatalf("rows=%d", len(table.Rows))
	}
	if len(table.RowErrors) != 1 || table.RowErrors[0].Line != 3 {
		t.Fatalf("rowErrors=%v", table.RowErrors)
	}
}
