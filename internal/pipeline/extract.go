package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"fleetreport/internal"
	"fleetreport/internal/util"
)

// DelimitedOptions control how CSV-like exports are tokenized.
type DelimitedOptions struct {
	// HasHeader treats the first record as the header row. When false the
	// header row is located with LocateHeaderRow.
	HasHeader bool
	// Delimiter is the field separator; 0 detects ',', ';' or tab from the
	// first line.
	Delimiter rune
	// Encoding is "utf-8" (default), "windows-1252" or "iso-8859-1".
	Encoding string
}

const maxConsecutiveRowErrors = 1000

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseDelimitedText tokenizes a delimited export into a RawTable.
// Malformed records are reported in RowErrors and skipped.
func ParseDelimitedText(data []byte, opts DelimitedOptions) (internal.RawTable, error) {
	grid, rowErrs, err := ParseDelimitedGrid(data, opts)
	if err != nil {
		return internal.RawTable{}, err
	}
	if len(grid) == 0 {
		return internal.RawTable{}, &ParseError{Kind: internal.InputCSV, Err: errors.New("empty file")}
	}

	var table internal.RawTable
	if opts.HasHeader {
		table = TableFromGrid(grid, 0)
	} else {
		table, _, err = LocateTable(grid)
		if err != nil {
			return internal.RawTable{}, err
		}
	}
	table.RowErrors = append(rowErrs, table.RowErrors...)
	return table, nil
}

// ParseDelimitedGrid tokenizes a delimited export without interpreting any
// row as a header.
func ParseDelimitedGrid(data []byte, opts DelimitedOptions) (internal.RawGrid, []internal.RowError, error) {
	text, err := decodeText(data, opts.Encoding)
	if err != nil {
		return nil, nil, &ParseError{Kind: internal.InputCSV, Err: err}
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = detectDelimiter(text)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	grid := internal.RawGrid{}
	var rowErrs []internal.RowError
	consecutive := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, rowErrs, &ParseError{Kind: internal.InputCSV, Err: err}
			}
			rowErrs = append(rowErrs, internal.RowError{Line: pe.Line, Message: pe.Err.Error()})
			consecutive++
			if consecutive > maxConsecutiveRowErrors {
				return nil, rowErrs, &ParseError{Kind: internal.InputCSV, Err: fmt.Errorf("too many malformed rows, last at line %d", pe.Line)}
			}
			continue
		}
		consecutive = 0
		grid = append(grid, toCells(record))
	}
	return grid, rowErrs, nil
}

func decodeText(data []byte, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	case "windows-1252", "cp1252":
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		return string(out), err
	case "iso-8859-1", "latin1", "latin-1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		return string(out), err
	default:
		return "", fmt.Errorf("unsupported text encoding: %s", encoding)
	}
}

func detectDelimiter(text string) rune {
	first := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		first = text[:idx]
	}
	best, bestCount := ',', strings.Count(first, ",")
	for _, d := range []rune{';', '\t'} {
		if c := strings.Count(first, string(d)); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

// ParseSpreadsheetGrid returns the cells of the first non-empty sheet.
func ParseSpreadsheetGrid(data []byte) (internal.RawGrid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Kind: internal.InputXLSX, Err: err}
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, &ParseError{Kind: internal.InputXLSX, Err: fmt.Errorf("sheet %q: %w", sheet, err)}
		}
		if len(rows) == 0 {
			continue
		}
		grid := make(internal.RawGrid, 0, len(rows))
		for _, row := range rows {
			grid = append(grid, toCells(row))
		}
		return grid, nil
	}
	return nil, &ParseError{Kind: internal.InputXLSX, Err: errors.New("workbook has no rows")}
}

// ParseHTMLGrid reads the first table with at least two rows. Several fleet
// platforms export ".xls" files that are really HTML tables.
func ParseHTMLGrid(data []byte) (internal.RawGrid, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Kind: internal.InputHTML, Err: err}
	}

	var grid internal.RawGrid
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return true
		}
		rows.Each(func(_ int, row *goquery.Selection) {
			cells := []any{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.CollapseSpaces(strings.ReplaceAll(cell.Text(), "\u00A0", " ")))
			})
			grid = append(grid, cells)
		})
		return false
	})

	if len(grid) == 0 {
		return nil, &ParseError{Kind: internal.InputHTML, Err: errors.New("no table found")}
	}
	return grid, nil
}

// ParsePDFGrid reads the text of every page and splits each line into cells
// on runs of two or more spaces.
func ParsePDFGrid(data []byte) (internal.RawGrid, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Kind: internal.InputPDF, Err: err}
	}

	grid := internal.RawGrid{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range util.SplitLines(text) {
			grid = append(grid, toCells(util.SplitWideColumns(line)))
		}
	}
	if len(grid) == 0 {
		return nil, &ParseError{Kind: internal.InputPDF, Err: errors.New("no text found")}
	}
	return grid, nil
}

// Attachment is a tabular file carried by a report email.
type Attachment struct {
	Name    string
	Kind    internal.InputKind
	Content []byte
}

// ExtractAttachments returns the tabular attachments of a raw RFC 822
// message together with its subject.
func ExtractAttachments(raw []byte) ([]Attachment, string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}

	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)

	out := make([]Attachment, 0, len(parts))
	for i, part := range parts {
		name := strings.TrimSpace(part.FileName)
		if name == "" {
			name = fmt.Sprintf("attachment-%d", i+1)
		}
		kind, ok := DetectKind(name, part.Content)
		if !ok {
			continue
		}
		out = append(out, Attachment{Name: name, Kind: kind, Content: part.Content})
	}
	return out, env.GetHeader("Subject"), nil
}

// DetectKind picks a provider from the file extension, sniffing ".xls"
// files that are HTML in disguise.
func DetectKind(name string, content []byte) (internal.InputKind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".tsv":
		return internal.InputCSV, true
	case ".xlsx", ".xlsm":
		return internal.InputXLSX, true
	case ".htm", ".html":
		return internal.InputHTML, true
	case ".pdf":
		return internal.InputPDF, true
	case ".xls":
		if looksLikeHTML(content) {
			return internal.InputHTML, true
		}
		return internal.InputXLSX, true
	default:
		return "", false
	}
}

func looksLikeHTML(content []byte) bool {
	head := content
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.TrimSpace(bytes.TrimPrefix(head, utf8BOM))
	return bytes.HasPrefix(head, []byte("<")) || bytes.Contains(bytes.ToLower(head), []byte("<table"))
}

// ReadGrid tokenizes any supported input into a grid.
func ReadGrid(kind internal.InputKind, data []byte, opts DelimitedOptions) (internal.RawGrid, []internal.RowError, error) {
	switch kind {
	case internal.InputCSV:
		return ParseDelimitedGrid(data, opts)
	case internal.InputXLSX:
		grid, err := ParseSpreadsheetGrid(data)
		return grid, nil, err
	case internal.InputHTML:
		grid, err := ParseHTMLGrid(data)
		return grid, nil, err
	case internal.InputPDF:
		grid, err := ParsePDFGrid(data)
		return grid, nil, err
	default:
		return nil, nil, fmt.Errorf("unsupported input type: %s", kind)
	}
}

func toCells(record []string) []any {
	out := make([]any, len(record))
	for i, v := range record {
		out[i] = v
	}
	return out
}
