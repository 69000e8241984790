package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// eventTypeAliases maps every event name seen on the live channel to its canonical type.
var eventTypeAliases = map[string]EventType{
	"created":        EventCreated,
	"new_report":     EventCreated,
	"updated":        EventUpdated,
	"updated_report": EventUpdated,
	"report_updated": EventUpdated,
	"deleted":        EventDeleted,
	"deleted_report": EventDeleted,
}

// NormalizeEventType maps a wire event name to its canonical type.
func NormalizeEventType(name string) (EventType, bool) {
	t, ok := eventTypeAliases[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// timestampLayouts are tried in order for string timestamps that are not epoch numbers.
// Layouts without a zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// epochMillisCutoff separates epoch seconds from epoch milliseconds.
// 1e11 seconds is in the year 5138; 1e11 milliseconds is March 1973.
const epochMillisCutoff = 1e11

// DecodeRecord decodes one backend report record. Fields that are present but
// cannot be parsed produce a *MalformedEventError. Missing fields are left at
// their zero value; Validate reports those.
func DecodeRecord(data []byte) (InspectionReport, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return InspectionReport{}, &MalformedEventError{Field: "record", Reason: err.Error()}
	}

	var r InspectionReport
	var err error

	idRaw, ok := fields["_id"]
	if !ok {
		idRaw = fields["id"]
	}
	if r.ID, err = decodeID(idRaw); err != nil {
		return InspectionReport{}, &MalformedEventError{Field: "_id", Reason: err.Error()}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"trainNumber", &r.TrainNumber},
		{"compartmentNumber", &r.CompartmentNumber},
		{"wheelNumber", &r.WheelNumber},
	}
	for _, f := range ints {
		v, set, err := decodeNumber(fields[f.name])
		if err != nil {
			return InspectionReport{}, &MalformedEventError{Field: f.name, Reason: err.Error()}
		}
		if !set {
			continue
		}
		if v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
			return InspectionReport{}, &MalformedEventError{Field: f.name, Reason: "not an integer"}
		}
		*f.dst = int(v)
	}

	d, set, err := decodeNumber(fields["wheel_diameter"])
	if err != nil {
		return InspectionReport{}, &MalformedEventError{Field: "wheel_diameter", Reason: err.Error()}
	}
	if set {
		r.WheelDiameterMm = Diameter(d)
	}

	status, err := decodeString(fields["status"])
	if err != nil {
		return InspectionReport{}, &MalformedEventError{Field: "status", Reason: err.Error()}
	}
	r.SurfaceFlawed = strings.EqualFold(strings.TrimSpace(status), StatusFlawDetected)

	if r.ImagePath, err = decodeString(fields["image_path"]); err != nil {
		return InspectionReport{}, &MalformedEventError{Field: "image_path", Reason: err.Error()}
	}

	if r.Timestamp, err = decodeTimestamp(fields["timestamp"]); err != nil {
		return InspectionReport{}, &MalformedEventError{Field: "timestamp", Reason: err.Error()}
	}

	return r, nil
}

// DecodeRecords decodes a bulk fetch response. Both a bare JSON array and the
// {"data": [...]} envelope are accepted.
func DecodeRecords(data []byte) ([]InspectionReport, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decoding response envelope: %w", err)
		}
		if envelope.Data == nil {
			return nil, fmt.Errorf("decoding response envelope: missing data field")
		}
		trimmed = envelope.Data
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("decoding report list: %w", err)
	}

	reports := make([]InspectionReport, 0, len(raw))
	for i, item := range raw {
		r, err := DecodeRecord(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// DecodeMessage decodes one live channel message of the form
// {"type": "<name>", "data": <record>}. A delete may carry either a record or a
// bare id string as its data.
func DecodeMessage(data []byte) (Event, error) {
	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, &MalformedEventError{Field: "message", Reason: err.Error()}
	}
	if strings.TrimSpace(msg.Type) == "" {
		return Event{}, &MalformedEventError{Field: "type", Reason: "missing"}
	}
	t, ok := NormalizeEventType(msg.Type)
	if !ok {
		return Event{}, &MalformedEventError{Field: "type", Reason: "unknown event type " + msg.Type}
	}
	if len(msg.Data) == 0 || string(msg.Data) == "null" {
		return Event{}, &MalformedEventError{Field: "data", Reason: "missing"}
	}

	trimmed := bytes.TrimSpace(msg.Data)
	if trimmed[0] != '{' {
		id, err := decodeID(trimmed)
		if err != nil {
			return Event{}, &MalformedEventError{Field: "data", Reason: err.Error()}
		}
		return Event{Type: t, Report: InspectionReport{ID: id}}, nil
	}

	r, err := DecodeRecord(trimmed)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Report: r}, nil
}

func decodeID(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("expected string or number, got %s", raw)
}

// decodeNumber accepts a JSON number or a numeric string. An absent, null or
// empty-string value reports set=false.
func decodeNumber(raw json.RawMessage) (value float64, set bool, err error) {
	if isNull(raw) {
		return 0, false, nil
	}
	s := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false, nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("not a number: %s", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("not a finite number: %s", s)
	}
	return v, true, nil
}

func decodeString(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected string, got %s", raw)
	}
	return s, nil
}

// decodeTimestamp accepts ISO-8601 strings and epoch numbers (as JSON numbers or strings).
func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	if isNull(raw) {
		return time.Time{}, nil
	}
	s := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, nil
		}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(v), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func fromEpoch(v float64) time.Time {
	if math.Abs(v) >= epochMillisCutoff {
		return time.UnixMilli(int64(v)).UTC()
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func isNull(raw json.RawMessage) bool {
	s := bytes.TrimSpace(raw)
	return len(s) == 0 || string(s) == "null"
}
