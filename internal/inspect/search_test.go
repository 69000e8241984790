package inspect_test

import (
	"testing"
	"time"

	"wheelwatch/internal/inspect"
	"wheelwatch/internal/report"
	"wheelwatch/internal/testutil"
)

func TestEngine_Search(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t)
	e.LoadInitial([]report.InspectionReport{
		testutil.NewReport("a").At(5, 2, 3).Build(),
		testutil.NewReport("b").At(12, 1, 1).On(testutil.Day.Add(time.Hour)).Build(),
		testutil.NewReport("c").At(5, 1, 8).On(testutil.Day.AddDate(0, 0, -1)).Build(),
	})

	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{"b", "a", "c"}},
		{query: "   ", want: []string{"b", "a", "c"}},
		{query: "t5", want: []string{"a", "c"}},
		{query: "TRAIN 5", want: []string{"a", "c"}},
		{query: "train 1", want: []string{"b"}},
		{query: "c2", want: []string{"a"}},
		{query: "compartment 1", want: []string{"b", "c"}},
		{query: "w8", want: []string{"c"}},
		{query: "wheel 3", want: []string{"a"}},
		{query: "6/15/2024", want: []string{"b", "a"}},
		{query: "6/14", want: []string{"c"}},
		{query: "2024", want: []string{"b", "a", "c"}},
		{query: "5 c2", want: nil},
		{query: "t99", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := e.Search(tt.query)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("Search(%q) = %v, want %v", tt.query, ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("Search(%q) = %v, want %v", tt.query, ids, tt.want)
					break
				}
			}
		})
	}
}

func TestEngine_SearchUsesEngineTimezone(t *testing.T) {
	t.Parallel()

	manila := time.FixedZone("UTC+8", 8*3600)
	e := inspect.NewEngine(manila, report.DefaultThresholds(), inspect.NewNopLogger(), inspect.NopMetrics{}, testutil.FixedClock())
	// 20:00 UTC on the 15th is the 16th in UTC+8.
	e.LoadInitial([]report.InspectionReport{
		testutil.NewReport("late").On(time.Date(2024, 6, 15, 20, 0, 0, 0, time.UTC)).Build(),
	})

	got, _ := e.Search("6/16/2024")
	if len(got) != 1 {
		t.Errorf("Search(6/16/2024) returned %d reports, want 1", len(got))
	}
}
