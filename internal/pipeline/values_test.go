package pipeline

import (
	"math"
	"testing"
	"time"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNormalizeTimestamp(t *testing.T) {
	cases := []struct{ in, want string }{
		{"2024-03-05T10:00:00Z", "05/03/2024"},
		{"2024-03-05T23:30:00-03:00", "06/03/2024"},
		{"2024-12-01 08:15:00", "01/12/2024"},
		{"2024-01-09", "09/01/2024"},
		{"N/A", "N/A"},
		{"", ""},
		{"ayer", "ayer"},
	}
	for _, tc := range cases {
		if got := NormalizeTimestamp(tc.in, time.UTC); got != tc.want {
			t.Fatalf("%q: got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestDurationToDays(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{"78 Days", 78},
		{"1 day", 1},
		{"3 días", 3},
		{"1,5 dias", 1.5},
		{"2 Horas", 2.0 / 24},
		{"12 hours", 0.5},
		{"11 Minutes", 11.0 / 1440},
		{"30 minutos", 30.0 / 1440},
		{"4.25", 4.25},
		{2.5, 2.5},
		{7, 7},
		{"", 0},
		{"sin datos", 0},
		{nil, 0},
		{true, 0},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		if got := DurationToDays(tc.in); !near(got, tc.want) {
			t.Fatalf("%v: got %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestDaysSince(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if got := DaysSince("2024-03-08T12:00:00Z", now); !near(got, 2) {
		t.Fatalf("got %v", got)
	}
	if got := DaysSince("2024-03-10T00:00:00Z", now); !near(got, 0.5) {
		t.Fatalf("got %v", got)
	}
	if got := DaysSince("nunca", now); got != 0 {
		t.Fatalf("got %v", got)
	}
	if got := DaysSince(nil, now); got != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []any{true, "true", "TRUE", " True ", "1", 1, 1.0} {
		if !IsTruthy(v) {
			t.Fatalf("%v should be truthy", v)
		}
	}
	for _, v := range []any{false, "false", "0", "", "yes", 0, 2.0, nil} {
		if IsTruthy(v) {
			t.Fatalf("%v should not be truthy", v)
		}
	}
}
