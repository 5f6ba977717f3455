package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reWideGaps = regexp.MustCompile(`\s{2,}|\t`)
)

// NormalizeHeader folds header text for comparison: non-breaking spaces
// become spaces, diacritics are stripped, case is lowered and whitespace
// collapsed. "Vehículo " and "VEHICULO" normalize to the same string.
func NormalizeHeader(input string) string {
	s := strings.ReplaceAll(input, "\u00A0", " ")
	s = StripDiacritics(s)
	s = strings.ToLower(s)
	return CollapseSpaces(s)
}

func StripDiacritics(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, input)
	if err != nil {
		return input
	}
	return out
}

func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// SplitWideColumns splits a line of fixed-width text on runs of two or more
// spaces or tabs.
func SplitWideColumns(line string) []string {
	parts := reWideGaps.Split(strings.TrimSpace(line), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinCodes turns a vertical list of device codes (one per line) into a
// single comma separated line.
func JoinCodes(input string) string {
	return strings.Join(SplitLines(input), ", ")
}

func ContainsAll(s string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return len(terms) > 0
}
