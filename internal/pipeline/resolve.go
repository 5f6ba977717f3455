package pipeline

import (
	"fleetreport/internal"
	"fleetreport/internal/util"
)

// FieldRule describes how one canonical field is found among raw headers.
// Exact is compared against the normalized header; if nothing matches, each
// Contains group is tried in order and the first header (in original order)
// whose normalized form holds every term of the group wins.
type FieldRule struct {
	Field    internal.Field
	Label    string
	Exact    string
	Contains [][]string
}

var FieldRules = []FieldRule{
	{
		Field:    internal.FieldVehicle,
		Label:    "Vehículo",
		Exact:    "vehiculo",
		Contains: [][]string{{"vehiculo"}, {"vehicle"}},
	},
	{
		Field:    internal.FieldStatus,
		Label:    "Estado",
		Exact:    "estado",
		Contains: [][]string{{"estado del dispositivo"}, {"informacion adicional de estado"}, {"status"}},
	},
	{
		Field:    internal.FieldDaysSinceContact,
		Label:    "Días desde que se recibió la comunicación",
		Exact:    "dias desde que se recibio la comunicacion",
		Contains: [][]string{{"dias", "comunic"}, {"days", "communic"}},
	},
	{
		Field:    internal.FieldLastContactDate,
		Label:    "Última fecha de comunicación",
		Exact:    "ultima fecha de comunicacion",
		Contains: [][]string{{"ultima", "comunicacion"}, {"last", "communication"}},
	},
	{
		Field:    internal.FieldGroup,
		Label:    "Grupo",
		Exact:    "grupo",
		Contains: [][]string{{"grupo"}, {"group"}},
	},
	{
		Field:    internal.FieldSerialNumber,
		Label:    "Número de serie",
		Exact:    "numero de serie",
		Contains: [][]string{{"numero de serie"}, {"serial number"}},
	},
}

// coreFields must not all be missing for a communication report.
var coreFields = []internal.Field{internal.FieldVehicle, internal.FieldStatus, internal.FieldDaysSinceContact}

// ResolveHeaders applies FieldRules to a header list. A header may satisfy
// more than one field.
func ResolveHeaders(headers []string) internal.FieldResolution {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = util.NormalizeHeader(h)
	}

	res := internal.FieldResolution{}
	for _, rule := range FieldRules {
		if key, ok := resolveField(rule, headers, normalized); ok {
			res[rule.Field] = key
		}
	}
	return res
}

func resolveField(rule FieldRule, headers, normalized []string) (string, bool) {
	for i, nh := range normalized {
		if nh == rule.Exact {
			return headers[i], true
		}
	}
	for _, group := range rule.Contains {
		for i, nh := range normalized {
			if util.ContainsAll(nh, group) {
				return headers[i], true
			}
		}
	}
	return "", false
}

// ResolveColumns resolves the canonical fields of a communication report.
// It fails when none of vehicle, status and days-since-contact is present,
// so no misleading summary is built from an unrelated file.
func ResolveColumns(table internal.RawTable) (internal.FieldResolution, error) {
	headers := table.Headers
	if len(headers) == 0 && len(table.Rows) > 0 {
		headers = table.Rows[0].Keys
	}

	res := ResolveHeaders(headers)
	for _, f := range coreFields {
		if _, ok := res.Key(f); ok {
			return res, nil
		}
	}

	expected := make([]string, 0, len(coreFields))
	for _, f := range coreFields {
		expected = append(expected, fieldLabel(f))
	}
	return nil, &HeaderNotFoundError{Expected: expected, Seen: headers}
}

func fieldLabel(f internal.Field) string {
	for _, rule := range FieldRules {
		if rule.Field == f {
			return rule.Label
		}
	}
	return string(f)
}
