package cli

import (
	"strings"
	"testing"
)

func collectValues(t *testing.T, input string) []string {
	t.Helper()
	var out []string
	err := scanValues(strings.NewReader(input), func(v string) error {
		out = append(out, v)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestScanValuesLFMode(t *testing.T) {
	got := collectValues(t, "[1, 2, 3]\n\n[4, 5, 6]\n")
	if len(got) != 2 || got[0] != "[1, 2, 3]" || got[1] != "[4, 5, 6]" {
		t.Errorf("Unexpected values: %q", got)
	}
}

func TestScanValuesRSMode(t *testing.T) {
	input := "\x1e{\n  \"type\": \"Point\",\n  \"coordinates\": [0, 0]\n}\n\x1e[1, 2, 3]\n"
	got := collectValues(t, input)
	if len(got) != 2 {
		t.Fatalf("Expected 2 values, got %d: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "{") || !strings.Contains(got[0], "\"coordinates\"") {
		t.Errorf("First value mangled: %q", got[0])
	}
	if got[1] != "[1, 2, 3]" {
		t.Errorf("Second value mangled: %q", got[1])
	}
}

func TestScanValuesUnterminatedRSFlushed(t *testing.T) {
	got := collectValues(t, "\x1e[7, 8, 9]")
	if len(got) != 1 || got[0] != "[7, 8, 9]" {
		t.Errorf("Expected the trailing buffer to flush, got %q", got)
	}
}

func TestScanValuesEmptyRSDropped(t *testing.T) {
	got := collectValues(t, "\x1e\n\x1e[1, 1, 1]\n")
	if len(got) != 1 || got[0] != "[1, 1, 1]" {
		t.Errorf("Expected one value, got %q", got)
	}
}

func TestScanValuesMixedThenRS(t *testing.T) {
	got := collectValues(t, "[1, 1, 1]\n\x1e[2, 2,\n2]\n")
	if len(got) != 2 {
		t.Fatalf("Expected 2 values, got %q", got)
	}
	if got[1] != "[2, 2,\n2]" {
		t.Errorf("RS value should span lines, got %q", got[1])
	}
}

func TestScanValuesErrorStops(t *testing.T) {
	calls := 0
	err := scanValues(strings.NewReader("a\nb\n"), func(v string) error {
		calls++
		return badInputf("boom")
	})
	if err == nil || calls != 1 {
		t.Errorf("Expected the first error to stop the scan, calls=%d err=%v", calls, err)
	}
}
