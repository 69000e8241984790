package report_test

import (
	"slices"
	"testing"
	"time"

	"wheelwatch/internal/report"
)

func TestCompare(t *testing.T) {
	day := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	mk := func(id string, ts time.Time, train, comp, wheel int) report.InspectionReport {
		return report.InspectionReport{ID: id, TrainNumber: train, CompartmentNumber: comp, WheelNumber: wheel, Timestamp: ts}
	}

	tests := []struct {
		name string
		a, b report.InspectionReport
		want int
	}{
		{name: "newer first", a: mk("a", day.Add(time.Hour), 9, 9, 9), b: mk("b", day, 1, 1, 1), want: -1},
		{name: "older after", a: mk("a", day, 1, 1, 1), b: mk("b", day.Add(time.Minute), 1, 1, 1), want: 1},
		{name: "lower train first", a: mk("a", day, 1, 5, 5), b: mk("b", day, 2, 1, 1), want: -1},
		{name: "lower compartment first", a: mk("a", day, 1, 1, 5), b: mk("b", day, 1, 2, 1), want: -1},
		{name: "lower wheel first", a: mk("a", day, 1, 1, 2), b: mk("b", day, 1, 1, 1), want: 1},
		{name: "id breaks ties", a: mk("a", day, 1, 1, 1), b: mk("b", day, 1, 1, 1), want: -1},
		{name: "identical", a: mk("a", day, 1, 1, 1), b: mk("a", day, 1, 1, 1), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := report.Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSortCanonical_stable(t *testing.T) {
	base := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	var input []report.InspectionReport
	// Many equal timestamps so the secondary keys matter.
	for i := range 40 {
		input = append(input, report.InspectionReport{
			ID:                string(rune('a'+i%26)) + string(rune('a'+i/26)),
			TrainNumber:       1 + i%3,
			CompartmentNumber: 1 + i%4,
			WheelNumber:       1 + i%5,
			Timestamp:         base.Add(time.Duration(i%6) * time.Hour),
		})
	}

	first := slices.Clone(input)
	report.SortCanonical(first)

	for run := range 5 {
		again := slices.Clone(input)
		// Reverse the input so the sort starts from a different permutation.
		slices.Reverse(again)
		report.SortCanonical(again)
		if !slices.EqualFunc(first, again, func(a, b report.InspectionReport) bool { return a.ID == b.ID }) {
			t.Fatalf("run %d: order differs from first sort", run)
		}
	}

	for i := 1; i < len(first); i++ {
		if report.Compare(first[i-1], first[i]) > 0 {
			t.Fatalf("reports %d and %d are out of order", i-1, i)
		}
	}
}
