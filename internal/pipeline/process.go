package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"fleetreport/internal"
	"fleetreport/internal/config"
	"fleetreport/internal/logging"
)

// Input is one uploaded or fetched export.
type Input struct {
	Name string
	Kind internal.InputKind
	Data []byte
}

// LoadedReport is the full result of one load. It is never modified after
// it has been published.
type LoadedReport struct {
	ID         string
	Report     internal.ReportKind
	Source     string
	LoadedAt   time.Time
	HeaderRow  int
	Table      internal.RawTable
	Resolution internal.FieldResolution
	Rows       []internal.CanonicalRow
	Summary    *internal.Summary
}

// Workspace holds the latest loaded report. A load swaps the whole report in
// one step, so readers see either the previous report or the new one.
type Workspace struct {
	latest atomic.Pointer[LoadedReport]
}

func NewWorkspace() *Workspace {
	return &Workspace{}
}

func (w *Workspace) Latest() *LoadedReport {
	return w.latest.Load()
}

func (w *Workspace) publish(r *LoadedReport) {
	w.latest.Store(r)
}

type Options struct {
	Location             *time.Location
	Delimited            DelimitedOptions
	ParallelRowThreshold int
	FormulaReferencePath string
	Now                  func() time.Time
}

func OptionsFromConfig(cfg config.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Location:             loc,
		Delimited:            DelimitedOptions{Delimiter: cfg.Delimiter(), Encoding: cfg.CSVEncoding},
		ParallelRowThreshold: cfg.ParallelRowThreshold,
		FormulaReferencePath: cfg.FormulaReferencePath,
	}, nil
}

type Service struct {
	ws     *Workspace
	opts   Options
	logger *slog.Logger
}

func NewService(ws *Workspace, opts Options, logger *slog.Logger) *Service {
	if ws == nil {
		ws = NewWorkspace()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{ws: ws, opts: opts, logger: logger}
}

func (s *Service) Workspace() *Workspace {
	return s.ws
}

// Load runs the whole pipeline over one export and publishes the result.
// Parse and header failures abort the load and leave the previous report
// in place.
func (s *Service) Load(ctx context.Context, report internal.ReportKind, in Input) (*LoadedReport, error) {
	start := time.Now()
	id := uuid.NewString()
	logger := s.logger.With("load", id, "report", report, "source", in.Name, "kind", in.Kind)

	table, headerRow, err := s.readTable(report, in)
	if err != nil {
		logger.Warn("load failed", "error", err)
		return nil, err
	}
	if len(table.RowErrors) > 0 {
		logger.Warn("malformed rows skipped", "count", len(table.RowErrors), "first", table.RowErrors[0].String())
	}

	loaded := &LoadedReport{
		ID:        id,
		Report:    report,
		Source:    in.Name,
		LoadedAt:  s.opts.Now(),
		HeaderRow: headerRow,
		Table:     table,
	}

	switch report {
	case internal.ReportGPS:
		res, err := ResolveColumns(table)
		if err != nil {
			logger.Warn("load failed", "error", err)
			return nil, err
		}
		normalizer := RowNormalizer{Now: s.opts.Now}
		rows, err := TransformRows(ctx, table.Rows, s.opts.ParallelRowThreshold, func(r internal.RawRow) internal.CanonicalRow {
			return normalizer.NormalizeRow(r, res)
		})
		if err != nil {
			return nil, err
		}
		summary := Summarize(rows, res)
		loaded.Resolution = res
		loaded.Rows = rows
		loaded.Summary = &summary
	case internal.ReportWifi:
		rows, err := TransformRows(ctx, table.Rows, s.opts.ParallelRowThreshold, func(r internal.RawRow) internal.CanonicalRow {
			return TransformDeviceRow(r, s.opts.Location)
		})
		if err != nil {
			return nil, err
		}
		loaded.Rows = rows
	case internal.ReportConvert:
		rows, err := TransformRows(ctx, table.Rows, s.opts.ParallelRowThreshold, func(r internal.RawRow) internal.CanonicalRow {
			return TransformDateColumns(r, s.opts.Location)
		})
		if err != nil {
			return nil, err
		}
		loaded.Rows = rows
	default:
		return nil, fmt.Errorf("unsupported report: %s", report)
	}

	s.ws.publish(loaded)
	logger.Info("load done", "rows", len(loaded.Rows), "headerRow", headerRow, "ms", time.Since(start).Milliseconds())
	return loaded, nil
}

// readTable tokenizes the input. Communication reports may carry banner rows
// and go through the header locator; the other reports have their header in
// the first row.
func (s *Service) readTable(report internal.ReportKind, in Input) (internal.RawTable, int, error) {
	opts := s.opts.Delimited
	if report != internal.ReportGPS {
		if in.Kind == internal.InputCSV {
			opts.HasHeader = true
			table, err := ParseDelimitedText(in.Data, opts)
			return table, 0, err
		}
		grid, rowErrs, err := ReadGrid(in.Kind, in.Data, opts)
		if err != nil {
			return internal.RawTable{}, -1, err
		}
		table := TableFromGrid(grid, 0)
		table.RowErrors = append(rowErrs, table.RowErrors...)
		return table, 0, nil
	}

	grid, rowErrs, err := ReadGrid(in.Kind, in.Data, opts)
	if err != nil {
		return internal.RawTable{}, -1, err
	}
	table, idx, err := LocateTable(grid)
	if err != nil {
		return internal.RawTable{}, -1, err
	}
	table.RowErrors = append(rowErrs, table.RowErrors...)
	return table, idx, nil
}

// Workbook lays a loaded report out as a spreadsheet.
func (s *Service) Workbook(r *LoadedReport) (*excelize.File, error) {
	switch r.Report {
	case internal.ReportGPS:
		if r.Summary == nil {
			return nil, ErrNothingToExport
		}
		return BuildGPSWorkbook(*r.Summary)
	case internal.ReportWifi:
		return BuildDeviceWorkbook(r.Rows, s.opts.FormulaReferencePath)
	case internal.ReportConvert:
		return BuildConvertedWorkbook(r.Rows)
	default:
		return nil, fmt.Errorf("unsupported report: %s", r.Report)
	}
}

// Export writes a loaded report to outputPath.
func (s *Service) Export(r *LoadedReport, outputPath string) error {
	f, err := s.Workbook(r)
	if err != nil {
		return &ExportError{Path: outputPath, Err: err}
	}
	defer f.Close()
	if err := save(f, outputPath); err != nil {
		return err
	}
	s.logger.Info("export done", "load", r.ID, "path", outputPath)
	return nil
}

// WriteWorkbook streams a loaded report as XLSX.
func (s *Service) WriteWorkbook(r *LoadedReport, w io.Writer) error {
	f, err := s.Workbook(r)
	if err != nil {
		return &ExportError{Err: err}
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return &ExportError{Err: err}
	}
	return nil
}

// OutputName derives the exported file name from the source name.
func OutputName(report internal.ReportKind, source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." {
		base = "reporte"
	}
	switch report {
	case internal.ReportGPS:
		return base + "_gps.xlsx"
	case internal.ReportWifi:
		return base + "_wifi.xlsx"
	default:
		return base + ".xlsx"
	}
}
