package report

import (
	"cmp"
	"slices"
	"strings"
)

// Compare is the canonical ordering: newest timestamp first, then ascending
// train, compartment and wheel numbers. The ID breaks any remaining tie so the
// order is total.
func Compare(a, b InspectionReport) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TrainNumber, b.TrainNumber); c != 0 {
		return c
	}
	if c := cmp.Compare(a.CompartmentNumber, b.CompartmentNumber); c != 0 {
		return c
	}
	if c := cmp.Compare(a.WheelNumber, b.WheelNumber); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// SortCanonical sorts reports in place using Compare.
func SortCanonical(reports []InspectionReport) {
	slices.SortStableFunc(reports, Compare)
}
