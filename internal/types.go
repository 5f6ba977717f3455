package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type InputKind string

const (
	InputCSV  InputKind = "csv"
	InputXLSX InputKind = "xlsx"
	InputHTML InputKind = "html"
	InputPDF  InputKind = "pdf"
)

type ReportKind string

const (
	ReportGPS     ReportKind = "gps"
	ReportWifi    ReportKind = "wifi"
	ReportConvert ReportKind = "convert"
)

// RawRow maps the literal header text of an export to a cell value. Keys
// keep first-insertion order; positional rules rely on it.
type RawRow struct {
	Keys   []string
	Values map[string]any
}

// NewRawRow pairs headers with cells by position. Repeated headers are made
// unique first, so every column keeps its own key and position.
func NewRawRow(headers []string, cells []any) RawRow {
	headers = UniqueHeaders(headers)
	row := RawRow{Keys: make([]string, 0, len(headers)), Values: make(map[string]any, len(headers))}
	for i, h := range headers {
		var v any
		if i < len(cells) {
			v = cells[i]
		}
		row.Set(h, v)
	}
	return row
}

// UniqueHeaders renames repeated headers "h", "h_1", "h_2" in column order.
// Blank headers repeat like any other, so two blank cells become "" and "_1".
func UniqueHeaders(headers []string) []string {
	out := make([]string, len(headers))
	taken := make(map[string]bool, len(headers))
	for _, h := range headers {
		taken[h] = true
	}
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		n := seen[h]
		seen[h] = n + 1
		if n == 0 {
			out[i] = h
			continue
		}
		name := fmt.Sprintf("%s_%d", h, n)
		for taken[name] {
			n++
			name = fmt.Sprintf("%s_%d", h, n)
		}
		seen[h] = n + 1
		taken[name] = true
		out[i] = name
	}
	return out
}

// Set appends key when new; an existing key keeps its position and takes
// the new value.
func (r *RawRow) Set(key string, value any) {
	if r.Values == nil {
		r.Values = map[string]any{}
	}
	if _, exists := r.Values[key]; !exists {
		r.Keys = append(r.Keys, key)
	}
	r.Values[key] = value
}

func (r RawRow) Get(key string) (any, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// At returns the key and value in the given column position.
func (r RawRow) At(idx int) (string, any, bool) {
	if idx < 0 || idx >= len(r.Keys) {
		return "", nil, false
	}
	key := r.Keys[idx]
	return key, r.Values[key], true
}

func (r RawRow) Text(key string) string {
	v, ok := r.Values[key]
	if !ok {
		return ""
	}
	return CellText(v)
}

type RowError struct {
	Line    int
	Message string
}

func (e RowError) String() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

type RawTable struct {
	Headers   []string
	Rows      []RawRow
	RowErrors []RowError
}

// RawGrid is a tokenized export with no assumed header row. Rows may be ragged.
type RawGrid [][]any

type Field string

const (
	FieldVehicle          Field = "vehicle"
	FieldStatus           Field = "status"
	FieldDaysSinceContact Field = "daysSinceContact"
	FieldLastContactDate  Field = "lastContactDate"
	FieldGroup            Field = "group"
	FieldSerialNumber     Field = "serialNumber"
)

// FieldResolution maps a canonical field to the raw header that satisfies
// it. One header may satisfy several fields.
type FieldResolution map[Field]string

func (r FieldResolution) Key(f Field) (string, bool) {
	k, ok := r[f]
	return k, ok && k != ""
}

type CanonicalRow struct {
	Columns []string
	Values  map[string]any
}

func NewCanonicalRow() CanonicalRow {
	return CanonicalRow{Values: map[string]any{}}
}

func (r *CanonicalRow) Set(column string, value any) {
	if r.Values == nil {
		r.Values = map[string]any{}
	}
	if _, exists := r.Values[column]; !exists {
		r.Columns = append(r.Columns, column)
	}
	r.Values[column] = value
}

func (r CanonicalRow) Get(column string) any {
	return r.Values[column]
}

func (r CanonicalRow) String(column string) string {
	return CellText(r.Values[column])
}

func (r CanonicalRow) Float(column string) float64 {
	switch v := r.Values[column].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type Summary struct {
	StatusCounts      []StatusCount  `json:"statusCounts"`
	MaxRow            *CanonicalRow  `json:"-"`
	MaxVehicle        string         `json:"maxVehicle"`
	MaxDays           float64        `json:"maxDays"`
	Disconnected      []CanonicalRow `json:"-"`
	DisconnectedCount int            `json:"disconnectedCount"`
	MeanDays          float64        `json:"meanDays"`
	MedianDays        float64        `json:"medianDays"`
}

// CellText renders a raw cell the way a spreadsheet shows it.
func CellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// FetchedMailMessage is a raw scheduled-report email pulled from a mailbox.
type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt time.Time
	Raw        []byte
}
