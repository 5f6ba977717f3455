package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"fleetreport/internal"
)

const (
	maxColumnWidth = 50
	columnPadding  = 2

	SheetConverted    = "Datos"
	SheetDevices      = "WIFI"
	SheetDisconnected = "Desconectadas"
	SheetSummary      = "Resumen"
	SheetInstructions = "Instrucciones"

	// FormulaInstructionCell is where the lookup hand-off text is written on
	// the instructions sheet of the device report.
	FormulaInstructionCell = "A1"

	colUnits = "Unidades"
)

// ColumnWidth is the display width of a column in character units:
// min(max(header length, longest cell) + 2, 50).
func ColumnWidth(header string, cells []string) float64 {
	longest := utf8.RuneCountInString(header)
	for _, c := range cells {
		if n := utf8.RuneCountInString(c); n > longest {
			longest = n
		}
	}
	return float64(min(longest+columnPadding, maxColumnWidth))
}

// FormulaInstruction is the literal text handed to the spreadsheet user. The
// lookup runs in the spreadsheet application against an external workbook;
// it is never evaluated here.
func FormulaInstruction(referencePath string) string {
	return fmt.Sprintf("Para completar el inventario copie en la primera celda libre de cada fila: =BUSCARV(B2;'%s'!$A:$C;3;FALSO) y arrástrela hasta la última fila.", referencePath)
}

// OutputColumns lists the columns of rows in first-seen order, with every
// derived column moved after all passthrough columns.
func OutputColumns(rows []internal.CanonicalRow, derived []string) []string {
	isDerived := map[string]bool{}
	for _, d := range derived {
		isDerived[d] = true
	}

	seen := map[string]bool{}
	passthrough := []string{}
	present := map[string]bool{}
	for _, row := range rows {
		for _, c := range row.Columns {
			if seen[c] {
				continue
			}
			seen[c] = true
			if isDerived[c] {
				present[c] = true
				continue
			}
			passthrough = append(passthrough, c)
		}
	}
	for _, d := range derived {
		if present[d] {
			passthrough = append(passthrough, d)
		}
	}
	return passthrough
}

// BuildConvertedWorkbook lays the date-converted table out on one sheet.
func BuildConvertedWorkbook(rows []internal.CanonicalRow) (*excelize.File, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetConverted); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRows(f, SheetConverted, OutputColumns(rows, dateTargets()), rows); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// BuildDeviceWorkbook lays out the device report plus the lookup instructions.
func BuildDeviceWorkbook(rows []internal.CanonicalRow, referencePath string) (*excelize.File, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}
	f := excelize.NewFile()
	if err := buildDeviceSheets(f, rows, referencePath); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func buildDeviceSheets(f *excelize.File, rows []internal.CanonicalRow, referencePath string) error {
	if err := f.SetSheetName(f.GetSheetName(0), SheetDevices); err != nil {
		return err
	}
	derived := append(dateTargets(), OperationalColumn)
	if err := writeRows(f, SheetDevices, OutputColumns(rows, derived), rows); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetInstructions); err != nil {
		return err
	}
	return f.SetCellStr(SheetInstructions, FormulaInstructionCell, FormulaInstruction(referencePath))
}

// BuildGPSWorkbook lays out the disconnected units and the per-status counts.
func BuildGPSWorkbook(summary internal.Summary) (*excelize.File, error) {
	if len(summary.StatusCounts) == 0 {
		return nil, ErrNothingToExport
	}
	f := excelize.NewFile()
	if err := buildGPSSheets(f, summary); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func buildGPSSheets(f *excelize.File, summary internal.Summary) error {
	if err := f.SetSheetName(f.GetSheetName(0), SheetDisconnected); err != nil {
		return err
	}
	columns := []string{ColVehicle, ColStatus, ColDays, ColGroup, ColSerial}
	if err := writeRows(f, SheetDisconnected, columns, summary.Disconnected); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	counts := make([]internal.CanonicalRow, 0, len(summary.StatusCounts))
	for _, sc := range summary.StatusCounts {
		row := internal.NewCanonicalRow()
		row.Set(ColStatus, sc.Status)
		row.Set(colUnits, sc.Count)
		counts = append(counts, row)
	}
	if err := writeRows(f, SheetSummary, []string{ColStatus, colUnits}, counts); err != nil {
		return err
	}
	if summary.MaxRow == nil {
		return nil
	}

	base := len(counts) + 3
	facts := [][2]any{
		{"Vehículo con más días sin comunicación", summary.MaxVehicle},
		{"Días sin comunicación", summary.MaxDays},
		{"Unidades desconectadas", summary.DisconnectedCount},
	}
	for i, fact := range facts {
		cell, err := excelize.CoordinatesToCellName(1, base+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetSummary, cell, &[]any{fact[0], fact[1]}); err != nil {
			return err
		}
	}
	return nil
}

func ExportConvertedTable(rows []internal.CanonicalRow, outputPath string) error {
	f, err := BuildConvertedWorkbook(rows)
	if err != nil {
		return &ExportError{Path: outputPath, Err: err}
	}
	defer f.Close()
	return save(f, outputPath)
}

func ExportDeviceReport(rows []internal.CanonicalRow, outputPath, referencePath string) error {
	f, err := BuildDeviceWorkbook(rows, referencePath)
	if err != nil {
		return &ExportError{Path: outputPath, Err: err}
	}
	defer f.Close()
	return save(f, outputPath)
}

func ExportGPSReport(summary internal.Summary, outputPath string) error {
	f, err := BuildGPSWorkbook(summary)
	if err != nil {
		return &ExportError{Path: outputPath, Err: err}
	}
	defer f.Close()
	return save(f, outputPath)
}

func writeRows(f *excelize.File, sheet string, columns []string, rows []internal.CanonicalRow) error {
	for i, h := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	texts := make([][]string, len(columns))
	for r, row := range rows {
		for c, col := range columns {
			v := row.Get(col)
			texts[c] = append(texts[c], internal.CellText(v))
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	for c, col := range columns {
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, ColumnWidth(col, texts[c])); err != nil {
			return err
		}
	}
	return nil
}

func save(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return &ExportError{Path: outputPath, Err: err}
	}
	if err := f.SaveAs(outputPath); err != nil {
		return &ExportError{Path: outputPath, Err: err}
	}
	return nil
}

func dateTargets() []string {
	out := make([]string, 0, len(DateColumns))
	for _, dc := range DateColumns {
		out = append(out, dc.Target)
	}
	return out
}
