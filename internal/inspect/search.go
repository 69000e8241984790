package inspect

import (
	"fmt"
	"strings"

	"wheelwatch/internal/report"
)

// searchDateLayout is the US short date used in search text, e.g. 6/15/2024.
const searchDateLayout = "1/2/2006"

// Search returns the reports whose search text contains query, case
// insensitively, in canonical order. The search text of a report is
//
//	t5
//	train 5
//	c2
//	compartment 2
//	w3
//	wheel 3
//	6/15/2024
//
// one term per line, so "train 5" matches but "5 c2" does not.
// An empty query returns every report.
func (e *Engine) Search(query string) ([]report.InspectionReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil, report.ErrNotLoaded
	}

	q := strings.ToLower(strings.TrimSpace(query))
	all := e.coll.Reports()
	if q == "" {
		return all, nil
	}

	loc := e.tree.Location()
	var out []report.InspectionReport
	for _, r := range all {
		if strings.Contains(searchText(r, r.Timestamp.In(loc).Format(searchDateLayout)), q) {
			out = append(out, r)
		}
	}
	return out, nil
}

func searchText(r report.InspectionReport, date string) string {
	return strings.ToLower(strings.Join([]string{
		fmt.Sprintf("t%d", r.TrainNumber),
		fmt.Sprintf("train %d", r.TrainNumber),
		fmt.Sprintf("c%d", r.CompartmentNumber),
		fmt.Sprintf("compartment %d", r.CompartmentNumber),
		fmt.Sprintf("w%d", r.WheelNumber),
		fmt.Sprintf("wheel %d", r.WheelNumber),
		date,
	}, "\n"))
}
