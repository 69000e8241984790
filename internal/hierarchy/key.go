package hierarchy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"wheelwatch/internal/report"
)

// DateLayout is the format of TrainDayKey.Date.
const DateLayout = "2006-01-02"

// TrainDayKey identifies one train's inspections on one calendar day.
type TrainDayKey struct {
	TrainNumber int
	Date        string // DateLayout, in the hierarchy's location
}

// KeyFor returns the bucket key of r when days are cut in loc.
func KeyFor(r report.InspectionReport, loc *time.Location) TrainDayKey {
	return TrainDayKey{
		TrainNumber: r.TrainNumber,
		Date:        r.Timestamp.In(loc).Format(DateLayout),
	}
}

// String formats the key as "<train>/<date>", e.g. "5/2024-06-15".
func (k TrainDayKey) String() string {
	return fmt.Sprintf("%d/%s", k.TrainNumber, k.Date)
}

// ParseTrainDayKey parses the form produced by TrainDayKey.String.
func ParseTrainDayKey(s string) (TrainDayKey, error) {
	train, date, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return TrainDayKey{}, fmt.Errorf("invalid train day %q: expected TRAIN/YYYY-MM-DD", s)
	}
	n, err := strconv.Atoi(train)
	if err != nil || n <= 0 {
		return TrainDayKey{}, fmt.Errorf("invalid train number %q", train)
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return TrainDayKey{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return TrainDayKey{TrainNumber: n, Date: date}, nil
}
