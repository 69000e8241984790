package report

import "time"

// InspectionReport is one wheel inspection as announced by the backend.
// Reports are replaced wholesale on update; the ID is stable across updates.
type InspectionReport struct {
	ID                string
	TrainNumber       int
	CompartmentNumber int
	WheelNumber       int
	WheelDiameterMm   *float64 // nil means unknown
	SurfaceFlawed     bool
	ImagePath         string // relative to the backend base URL, may be empty
	Timestamp         time.Time
}

// HasDiameter reports whether the wheel diameter was measured.
func (r InspectionReport) HasDiameter() bool {
	return r.WheelDiameterMm != nil
}

// Clone returns a copy that shares no memory with r.
func (r InspectionReport) Clone() InspectionReport {
	if r.WheelDiameterMm != nil {
		d := *r.WheelDiameterMm
		r.WheelDiameterMm = &d
	}
	return r
}

// Equal reports whether r and o carry the same values.
func (r InspectionReport) Equal(o InspectionReport) bool {
	if r.HasDiameter() != o.HasDiameter() {
		return false
	}
	if r.HasDiameter() && *r.WheelDiameterMm != *o.WheelDiameterMm {
		return false
	}
	return r.ID == o.ID &&
		r.TrainNumber == o.TrainNumber &&
		r.CompartmentNumber == o.CompartmentNumber &&
		r.WheelNumber == o.WheelNumber &&
		r.SurfaceFlawed == o.SurfaceFlawed &&
		r.ImagePath == o.ImagePath &&
		r.Timestamp.Equal(o.Timestamp)
}

// Diameter is a convenience for building reports with a known diameter.
func Diameter(mm float64) *float64 {
	return &mm
}

// EventType is the canonical kind of a live update.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is a single point update from the live channel.
// For deletes only Report.ID is meaningful.
type Event struct {
	Type   EventType
	Report InspectionReport
}

// Validate checks that the event carries the fields required for its type.
func (e Event) Validate() error {
	switch e.Type {
	case EventCreated, EventUpdated, EventDeleted:
	case "":
		return &MalformedEventError{Field: "type", Reason: "missing"}
	default:
		return &MalformedEventError{Field: "type", Reason: "unknown event type " + string(e.Type)}
	}
	if e.Report.ID == "" {
		return &MalformedEventError{Field: "id", Reason: "missing"}
	}
	if e.Type == EventDeleted {
		return nil
	}
	return e.Report.Validate()
}

// Validate checks the fields every ingested report must carry.
func (r InspectionReport) Validate() error {
	switch {
	case r.ID == "":
		return &MalformedEventError{Field: "id", Reason: "missing"}
	case r.TrainNumber <= 0:
		return &MalformedEventError{Field: "trainNumber", Reason: "must be positive"}
	case r.CompartmentNumber <= 0:
		return &MalformedEventError{Field: "compartmentNumber", Reason: "must be positive"}
	case r.WheelNumber <= 0:
		return &MalformedEventError{Field: "wheelNumber", Reason: "must be positive"}
	case r.WheelDiameterMm != nil && *r.WheelDiameterMm < 0:
		return &MalformedEventError{Field: "wheel_diameter", Reason: "must not be negative"}
	case r.Timestamp.IsZero():
		return &MalformedEventError{Field: "timestamp", Reason: "missing"}
	}
	return nil
}
