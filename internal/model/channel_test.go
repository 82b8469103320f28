package model

import "testing"

func TestParseCategory(t *testing.T) {
	t.Parallel()
	if c, err := ParseCategory("broadcast"); err != nil || c != CategoryBroadcast {
		t.Fatalf("ParseCategory(broadcast) = (%v, %v)", c, err)
	}
	if c, err := ParseCategory("successful"); err != nil || c != CategorySuccessful {
		t.Fatalf("ParseCategory(successful) = (%v, %v)", c, err)
	}
	if _, err := ParseCategory("weird"); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestCategoryPolicy(t *testing.T) {
	t.Parallel()
	if CategoryBroadcast.Policy() != BestEffortOnce {
		t.Fatal("broadcast must use best-effort-once bookkeeping")
	}
	if CategorySuccessful.Policy() != ConfirmedOnly {
		t.Fatal("successful must use confirmed-only bookkeeping")
	}
}

func TestParseLocationType(t *testing.T) {
	t.Parallel()
	if lt, err := ParseLocationType(""); err != nil || lt != LocationAll {
		t.Fatalf("empty location type = (%v, %v), want all", lt, err)
	}
	for _, s := range []string{"all", "city", "region", "suburbs"} {
		if _, err := ParseLocationType(s); err != nil {
			t.Fatalf("ParseLocationType(%q): %v", s, err)
		}
	}
	if _, err := ParseLocationType("galaxy"); err == nil {
		t.Fatal("expected error for unknown location type")
	}
}
