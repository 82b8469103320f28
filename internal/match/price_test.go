package match

import (
	"math"
	"testing"
)

func TestParsePrice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{name: "hryvnia", raw: "15000 грн", want: 15000.0 / DefaultUAHRate},
		{name: "dollars", raw: "$500", want: 500},
		{name: "bare number", raw: "750", want: 750},
		{name: "empty", raw: "", want: 0},
		{name: "whitespace only", raw: "   ", want: 0},
		{name: "separators stripped", raw: "1 200 грн/міс", want: 1200.0 / DefaultUAHRate},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.raw, 0)
			if err != nil {
				t.Fatalf("ParsePrice(%q) error: %v", tt.raw, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("ParsePrice(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParsePriceNoDigits(t *testing.T) {
	t.Parallel()
	if _, err := ParsePrice("договірна", 0); err == nil {
		t.Fatal("expected error for price without digits")
	}
}

func TestParsePriceCustomRate(t *testing.T) {
	t.Parallel()
	got, err := ParsePrice("4000 грн", 40)
	if err != nil {
		t.Fatalf("ParsePrice error: %v", err)
	}
	if got != 100 {
		t.Fatalf("ParsePrice = %v, want 100", got)
	}
}
