package hierarchy_test

import (
	"fmt"
	"testing"
	"time"

	"wheelwatch/internal/hierarchy"
	"wheelwatch/internal/report"
	"wheelwatch/internal/testutil"
)

func TestHierarchy_LatestSummary(t *testing.T) {
	t.Run("empty tree has no summary", func(t *testing.T) {
		t.Parallel()
		if _, ok := newHierarchy().LatestSummary(); ok {
			t.Error("LatestSummary() ok = true on empty tree")
		}
	})

	t.Run("picks the newest train day", func(t *testing.T) {
		t.Parallel()
		h := newHierarchy()
		h.Rebuild([]report.InspectionReport{
			testutil.NewReport("a").At(3, 1, 1).Build(),
			testutil.NewReport("b").At(8, 1, 1).On(testutil.Day.Add(time.Hour)).Build(),
		})

		s, ok := h.LatestSummary()
		if !ok {
			t.Fatal("LatestSummary() ok = false")
		}
		if s.Key.TrainNumber != 8 {
			t.Errorf("Key = %v, want train 8", s.Key)
		}
		if !s.Latest.Equal(testutil.Day.Add(time.Hour)) {
			t.Errorf("Latest = %v", s.Latest)
		}
	})

	t.Run("ties go to the lower train number", func(t *testing.T) {
		t.Parallel()
		h := newHierarchy()
		h.Rebuild([]report.InspectionReport{
			testutil.NewReport("a").At(9, 1, 1).Build(),
			testutil.NewReport("b").At(4, 1, 1).Build(),
		})

		s, _ := h.LatestSummary()
		if s.Key.TrainNumber != 4 {
			t.Errorf("Key = %v, want train 4", s.Key)
		}
	})

	t.Run("aggregates status", func(t *testing.T) {
		t.Parallel()
		h := newHierarchy()
		h.Rebuild(scenarioReports())

		s, _ := h.LatestSummary()
		if s.SurfaceStatus != report.StatusFlawDetected {
			t.Errorf("SurfaceStatus = %q", s.SurfaceStatus)
		}
		if s.Condition != report.ConditionBad {
			t.Errorf("Condition = %q, want BAD", s.Condition)
		}
		if s.Recommendation != report.RecommendFlawsAndWear {
			t.Errorf("Recommendation = %q", s.Recommendation)
		}
		if s.Wheels != 3 || s.FlawedWheels != 1 || s.WornWheels != 1 {
			t.Errorf("counts = %d/%d/%d, want 3/1/1", s.Wheels, s.FlawedWheels, s.WornWheels)
		}
	})
}

func TestSummarize_condition(t *testing.T) {
	tests := []struct {
		name    string
		reports []report.InspectionReport
		want    report.Condition
		rec     string
	}{
		{
			name:    "all unknown",
			reports: []report.InspectionReport{testutil.NewReport("a").NoDiameter().Build()},
			want:    report.ConditionUnknown,
			rec:     report.RecommendMonitoring,
		},
		{
			name: "good beats unknown",
			reports: []report.InspectionReport{
				testutil.NewReport("a").NoDiameter().Build(),
				testutil.NewReport("b").At(1, 1, 2).Diameter(700).Build(),
			},
			want: report.ConditionGood,
			rec:  report.RecommendMonitoring,
		},
		{
			name: "bad beats good",
			reports: []report.InspectionReport{
				testutil.NewReport("a").Diameter(700).Build(),
				testutil.NewReport("b").At(1, 1, 2).Diameter(630).Build(),
			},
			want: report.ConditionBad,
			rec:  report.RecommendExcessWear,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHierarchy()
			h.Rebuild(tt.reports)

			s := hierarchy.Summarize(h.ListTrainDays()[0])
			if s.Condition != tt.want {
				t.Errorf("Condition = %q, want %q", s.Condition, tt.want)
			}
			if s.Recommendation != tt.rec {
				t.Errorf("Recommendation = %q, want %q", s.Recommendation, tt.rec)
			}
		})
	}
}

func TestSummarize_images(t *testing.T) {
	var reports []report.InspectionReport
	for i := range 8 {
		b := testutil.NewReport(fmt.Sprintf("r%d", i)).
			At(1, 1, i+1).
			On(testutil.Day.Add(time.Duration(i) * time.Minute))
		if i != 6 {
			b.Image(fmt.Sprintf("/uploads/r%d.jpg", i))
		}
		reports = append(reports, b.Build())
	}
	h := newHierarchy()
	h.Rebuild(reports)

	s, _ := h.LatestSummary()

	var got []string
	for _, w := range s.Images {
		got = append(got, w.Report.ID)
	}
	want := []string{"r7", "r5", "r4", "r3", "r2"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Images = %v, want %v", got, want)
	}
}
