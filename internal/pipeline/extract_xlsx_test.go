package pipeline

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"fleetreport/internal"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestParseSpreadsheetGrid(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Reporte de comunicación"},
		{"Generado 01/02/2025"},
		{"Vehículo", "Estado del dispositivo", "Días desde que se recibió la comunicación"},
		{"V1", "Conectado", "0"},
		{"V2", "Sin conexión", "3 Days"},
	})
	grid, err := ParseSpreadsheetGrid(blob)
	if err != nil {
		t.Fatal(err)
	}
	table, idx, err := LocateTable(grid)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 2 {
		t.Fatalf("header row=%d", idx)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("len=%d", len(table.Rows))
	}
	if got := table.Rows[1].Text("Días desde que se recibió la comunicación"); got != "3 Days" {
		t.Fatalf("days=%q", got)
	}
}

func TestParseSpreadsheetGridEmptyWorkbook(t *testing.T) {
	_, err := ParseSpreadsheetGrid(mkXLSX(nil))
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != internal.InputXLSX {
		t.Fatalf("err=%v", err)
	}
}

func TestParseSpreadsheetGridGarbage(t *testing.T) {
	if _, err := ParseSpreadsheetGrid([]byte("not a workbook")); err == nil {
		t.Fatal("expected error")
	}
}
