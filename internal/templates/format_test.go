package templates

import (
	"testing"
	"time"
)

func TestMoney(t *testing.T) {
	cases := map[float64]string{
		0:          "R$ 0,00",
		950:        "R$ 950,00",
		1234.5:     "R$ 1.234,50",
		1000000.07: "R$ 1.000.000,07",
		-12.3:      "-R$ 12,30",
	}
	for in, want := range cases {
		if got := Money(in); got != want {
			t.Fatalf("Money(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestDate(t *testing.T) {
	if got := Date(nil); got != "" {
		t.Fatalf("expected empty date, got %q", got)
	}
	d := time.Date(2026, time.March, 5, 15, 0, 0, 0, time.UTC)
	if got := Date(&d); got != "05/03/2026" {
		t.Fatalf("unexpected date %q", got)
	}
}
