package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fleetreport/internal"
)

// ReadInput loads a file for a one-shot run. inputType is "auto" (or empty)
// to pick the provider from the extension, or one of csv, xlsx, html, pdf.
func ReadInput(inputType string, path string) (Input, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Input{}, err
	}

	switch kind := internal.InputKind(strings.ToLower(strings.TrimSpace(inputType))); kind {
	case "", "auto":
		detected, ok := DetectKind(path, blob)
		if !ok {
			return Input{}, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
		}
		return Input{Name: filepath.Base(path), Kind: detected, Data: blob}, nil
	case internal.InputCSV, internal.InputXLSX, internal.InputHTML, internal.InputPDF:
		return Input{Name: filepath.Base(path), Kind: kind, Data: blob}, nil
	default:
		return Input{}, fmt.Errorf("unsupported input type: %s", inputType)
	}
}

// ParseReportKind accepts gps, wifi or convert.
func ParseReportKind(s string) (internal.ReportKind, error) {
	switch kind := internal.ReportKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case internal.ReportGPS, internal.ReportWifi, internal.ReportConvert:
		return kind, nil
	default:
		return "", fmt.Errorf("unsupported report: %s", s)
	}
}
