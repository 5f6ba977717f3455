package util

import "testing"

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{name: "integer", input: "78", want: 78, ok: true},
		{name: "decimal comma", input: "1,5", want: 1.5, ok: true},
		{name: "decimal dot", input: "1.5", want: 1.5, ok: true},
		{name: "padded", input: "  2,25 ", want: 2.25, ok: true},
		{name: "negative", input: "-3", want: -3, ok: true},
		{name: "empty", input: "", ok: false},
		{name: "text", input: "N/A", ok: false},
		{name: "infinity", input: "Inf", ok: false},
		{name: "unit suffix", input: "2 Days", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDecimal(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok=%v want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}
