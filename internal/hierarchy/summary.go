package hierarchy

import (
	"slices"
	"time"

	"wheelwatch/internal/report"
)

// maxSummaryImages bounds the image carousel of the latest summary.
const maxSummaryImages = 5

// Summary is the at-a-glance view of the most recent train day.
type Summary struct {
	Key    TrainDayKey
	Latest time.Time

	// SurfaceStatus is FLAW DETECTED when any wheel in the bucket is flawed.
	SurfaceStatus string
	// Condition is BAD when any wheel is BAD, else GOOD when any is GOOD,
	// else UNKNOWN.
	Condition      report.Condition
	Recommendation string

	Wheels       int
	FlawedWheels int
	WornWheels   int

	// Images holds the newest wheels that carry an image path, newest first.
	Images []Wheel
}

// LatestSummary summarizes the newest train day. Equal latest timestamps are
// resolved in favor of the lower train number. It returns false when the tree
// has no train days.
func (h *Hierarchy) LatestSummary() (Summary, bool) {
	days := h.Snapshot()
	if len(days) == 0 {
		return Summary{}, false
	}
	return Summarize(days[0]), true
}

// Summarize computes the aggregate status of one train day.
func Summarize(td TrainDay) Summary {
	s := Summary{Key: td.Key, Latest: td.Latest}

	var flawed, anyGood bool
	var all []Wheel
	for _, c := range td.Compartments {
		for _, w := range c.Wheels {
			all = append(all, w)
			s.Wheels++
			if w.Report.SurfaceFlawed {
				flawed = true
				s.FlawedWheels++
			}
			switch w.Derived.Condition {
			case report.ConditionBad:
				s.WornWheels++
			case report.ConditionGood:
				anyGood = true
			}
		}
	}

	switch {
	case s.WornWheels > 0:
		s.Condition = report.ConditionBad
	case anyGood:
		s.Condition = report.ConditionGood
	default:
		s.Condition = report.ConditionUnknown
	}
	s.SurfaceStatus = report.SurfaceStatus(flawed)
	s.Recommendation = report.DeriveRecommendation(flawed, s.Condition)

	slices.SortFunc(all, func(a, b Wheel) int { return report.Compare(a.Report, b.Report) })
	for _, w := range all {
		if len(s.Images) == maxSummaryImages {
			break
		}
		if w.Report.ImagePath != "" {
			s.Images = append(s.Images, w)
		}
	}
	return s
}
