package inspect_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"wheelwatch/internal/inspect"
	"wheelwatch/internal/report"
	"wheelwatch/internal/testutil"
)

func loadedEngine(t *testing.T) *inspect.Engine {
	t.Helper()
	e, _ := newEngine(t)
	err := e.LoadInitial([]report.InspectionReport{
		testutil.NewReport("r1").At(5, 1, 1).Diameter(640).Image("img/r1.jpg").Build(),
		testutil.NewReport("r2").At(5, 1, 2).Diameter(600).Flawed().Build(),
		testutil.NewReport("r3").At(5, 2, 1).NoDiameter().Build(),
	})
	if err != nil {
		t.Fatalf("LoadInitial() error = %v", err)
	}
	return e
}

func TestEngine_ExportDocument(t *testing.T) {
	t.Parallel()
	e := loadedEngine(t)

	doc, err := e.ExportDocument()
	if err != nil {
		t.Fatalf("ExportDocument() error = %v", err)
	}
	if !doc.GeneratedAt.Equal(testutil.FixedClock().Now()) {
		t.Errorf("GeneratedAt = %v", doc.GeneratedAt)
	}
	if doc.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", doc.Timezone)
	}
	if len(doc.TrainDays) != 1 {
		t.Fatalf("TrainDays = %d, want 1", len(doc.TrainDays))
	}

	td := doc.TrainDays[0]
	if td.Train != 5 || td.Date != "2024-06-15" || !td.NeedsAttention {
		t.Errorf("train day = %+v", td)
	}
	if len(td.Compartments) != 2 || len(td.Compartments[0].Wheels) != 2 {
		t.Fatalf("compartments = %+v", td.Compartments)
	}
	w := td.Compartments[0].Wheels[1]
	if w.ID != "r2" || w.Condition != "BAD" || w.SurfaceStatus != report.StatusFlawDetected {
		t.Errorf("wheel = %+v", w)
	}
	if w.Recommendation != report.DeriveRecommendation(true, report.ConditionBad) {
		t.Errorf("Recommendation = %q", w.Recommendation)
	}
	if doc.Latest == nil || doc.Latest.Condition != "BAD" || doc.Latest.Wheels != 3 {
		t.Errorf("Latest = %+v", doc.Latest)
	}
}

func TestEngine_ExportDocument_emptyIsValidJSON(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	e.LoadInitial(nil)

	doc, err := e.ExportDocument()
	if err != nil {
		t.Fatalf("ExportDocument() error = %v", err)
	}
	data, _ := json.Marshal(doc)
	if !strings.Contains(string(data), `"train_days":[]`) {
		t.Errorf("empty export = %s, want empty train_days array", data)
	}
	if doc.Latest != nil {
		t.Errorf("Latest = %+v, want nil", doc.Latest)
	}
}

func newExporter(t *testing.T, e *inspect.Engine, enc inspect.Encryptor) (*inspect.Exporter, inspect.Sink) {
	t.Helper()
	s := testutil.NewTestSink()
	return inspect.NewExporter(e, s, enc, testutil.FixedClock(), inspect.NewNopLogger(), "client-1"), s
}

func TestExporter_Plain(t *testing.T) {
	t.Parallel()
	x, s := newExporter(t, loadedEngine(t), nil)

	name, err := x.Export(false)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if name != "client-1/20240615T180000Z.json" {
		t.Errorf("name = %q", name)
	}

	var stored bytes.Buffer
	if err := s.Get(name, &stored); err != nil {
		t.Fatalf("sink Get() error = %v", err)
	}
	var doc inspect.Document
	if err := json.Unmarshal(stored.Bytes(), &doc); err != nil {
		t.Fatalf("stored export is not JSON: %v", err)
	}
	if len(doc.TrainDays) != 1 {
		t.Errorf("stored TrainDays = %d, want 1", len(doc.TrainDays))
	}

	var out bytes.Buffer
	if err := x.Cat(name, &out, nil); err != nil {
		t.Fatalf("Cat() error = %v", err)
	}
	if !bytes.Equal(out.Bytes(), stored.Bytes()) {
		t.Error("Cat() output differs from stored document")
	}

	names, err := x.List()
	if err != nil || len(names) != 1 || names[0] != name {
		t.Errorf("List() = %v, %v", names, err)
	}
}

func TestExporter_Encrypted(t *testing.T) {
	t.Parallel()
	x, s := newExporter(t, loadedEngine(t), testutil.NewTestEncryptor())

	name, err := x.Export(true)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if name != "client-1/20240615T180000Z.json.age" || !inspect.IsEncrypted(name) {
		t.Errorf("name = %q", name)
	}

	var stored bytes.Buffer
	s.Get(name, &stored)
	if json.Valid(stored.Bytes()) {
		t.Error("encrypted export is readable JSON")
	}

	if err := x.Cat(name, &bytes.Buffer{}, nil); !errors.Is(err, inspect.ErrLocked) {
		t.Errorf("Cat() without key error = %v, want ErrLocked", err)
	}

	dc, _ := testutil.NewTestEncryptor().Unlock("")
	var out bytes.Buffer
	if err := x.Cat(name, &out, dc); err != nil {
		t.Fatalf("Cat() error = %v", err)
	}
	if !json.Valid(out.Bytes()) {
		t.Errorf("decrypted export is not JSON: %q", out.String())
	}
}

func TestExporter_Errors(t *testing.T) {
	t.Parallel()

	t.Run("not loaded", func(t *testing.T) {
		e, _ := newEngine(t)
		x, _ := newExporter(t, e, nil)
		if _, err := x.Export(false); !errors.Is(err, report.ErrNotLoaded) {
			t.Errorf("Export() error = %v, want ErrNotLoaded", err)
		}
	})

	t.Run("encrypt without encryptor", func(t *testing.T) {
		x, s := newExporter(t, loadedEngine(t), nil)
		if _, err := x.Export(true); err == nil {
			t.Error("Export(true) expected error without encryptor")
		}
		if names, _ := s.List(""); len(names) != 0 {
			t.Errorf("sink holds %v after failed export", names)
		}
	})

	t.Run("missing export", func(t *testing.T) {
		x, _ := newExporter(t, loadedEngine(t), nil)
		if err := x.Cat("client-1/missing.json", &bytes.Buffer{}, nil); err == nil {
			t.Error("Cat() expected error for missing export")
		}
	})
}
