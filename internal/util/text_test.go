package util

import "testing"

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "Vehículo", want: "vehiculo"},
		{input: "  ESTADO   del\tDispositivo ", want: "estado del dispositivo"},
		{input: "Días desde que se recibió la comunicación", want: "dias desde que se recibio la comunicacion"},
		{input: "Número de serie", want: "numero de serie"},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		if got := NormalizeHeader(tc.input); got != tc.want {
			t.Fatalf("NormalizeHeader(%q)=%q want %q", tc.input, got, tc.want)
		}
	}
}

func TestJoinCodes(t *testing.T) {
	got := JoinCodes("FK008\n  FK095\r\n\nC822\n")
	if got != "FK008, FK095, C822" {
		t.Fatalf("got %q", got)
	}
	if JoinCodes("  \n ") != "" {
		t.Fatal("expected empty output for blank input")
	}
}

func TestSplitWideColumns(t *testing.T) {
	got := SplitWideColumns("Vehículo   Estado del dispositivo\tNúmero de serie")
	want := []string{"Vehículo", "Estado del dispositivo", "Número de serie"}
	if len(got) != len(want) {
		t.Fatalf("len=%d got %q", len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("col %d: got %q want %q", i, got[i], want[i])
		}
	}
}
