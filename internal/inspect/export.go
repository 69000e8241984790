package inspect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"wheelwatch/internal/hierarchy"
	"wheelwatch/internal/report"
)

// ErrLocked is returned when reading an encrypted export without a DecryptionContext.
var ErrLocked = errors.New("export is encrypted: unlock the private key first")

const (
	exportExt          = ".json"
	encryptedExportExt = ".json.age"
	exportTimeLayout   = "20060102T150405Z"
)

// Document is the serialized form of the hierarchy written by Export.
type Document struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Timezone    string        `json:"timezone"`
	TrainDays   []DocTrainDay `json:"train_days"`
	Latest      *DocSummary   `json:"latest,omitempty"`
}

type DocTrainDay struct {
	Train          int              `json:"train"`
	Date           string           `json:"date"`
	Latest         time.Time        `json:"latest"`
	NeedsAttention bool             `json:"needs_attention"`
	Compartments   []DocCompartment `json:"compartments"`
}

type DocCompartment struct {
	Number         int        `json:"number"`
	NeedsAttention bool       `json:"needs_attention"`
	Wheels         []DocWheel `json:"wheels"`
}

type DocWheel struct {
	ID             string    `json:"id"`
	Wheel          int       `json:"wheel"`
	DiameterMm     *float64  `json:"wheel_diameter_mm"`
	SurfaceStatus  string    `json:"surface_status"`
	Condition      string    `json:"condition"`
	Recommendation string    `json:"recommendation"`
	ImagePath      string    `json:"image_path,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type DocSummary struct {
	Train          int    `json:"train"`
	Date           string `json:"date"`
	SurfaceStatus  string `json:"surface_status"`
	Condition      string `json:"condition"`
	Recommendation string `json:"recommendation"`
	Wheels         int    `json:"wheels"`
}

// ExportDocument builds a Document from the current state.
func (e *Engine) ExportDocument() (Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return Document{}, report.ErrNotLoaded
	}

	doc := Document{
		GeneratedAt: e.clock.Now().UTC(),
		Timezone:    e.tree.Location().String(),
		TrainDays:   []DocTrainDay{},
	}
	for _, td := range e.tree.Snapshot() {
		doc.TrainDays = append(doc.TrainDays, docTrainDay(td))
	}
	if s, ok := e.tree.LatestSummary(); ok {
		doc.Latest = &DocSummary{
			Train:          s.Key.TrainNumber,
			Date:           s.Key.Date,
			SurfaceStatus:  s.SurfaceStatus,
			Condition:      string(s.Condition),
			Recommendation: s.Recommendation,
			Wheels:         s.Wheels,
		}
	}
	return doc, nil
}

func docTrainDay(td hierarchy.TrainDay) DocTrainDay {
	out := DocTrainDay{
		Train:          td.Key.TrainNumber,
		Date:           td.Key.Date,
		Latest:         td.Latest.UTC(),
		NeedsAttention: td.NeedsAttention,
	}
	for _, c := range td.Compartments {
		dc := DocCompartment{Number: c.Number, NeedsAttention: c.NeedsAttention}
		for _, w := range c.Wheels {
			dc.Wheels = append(dc.Wheels, DocWheel{
				ID:             w.Report.ID,
				Wheel:          w.Report.WheelNumber,
				DiameterMm:     w.Report.WheelDiameterMm,
				SurfaceStatus:  w.Derived.SurfaceStatus,
				Condition:      string(w.Derived.Condition),
				Recommendation: w.Derived.Recommendation,
				ImagePath:      w.Report.ImagePath,
				Timestamp:      w.Report.Timestamp.UTC(),
			})
		}
		out.Compartments = append(out.Compartments, dc)
	}
	return out
}

// Exporter writes export documents to a Sink, optionally encrypted.
type Exporter struct {
	engine    *Engine
	sink      Sink
	encryptor Encryptor
	clock     Clock
	logger    Logger
	clientID  string
}

// NewExporter creates an Exporter. encryptor may be nil when exports are
// never encrypted.
func NewExporter(engine *Engine, sink Sink, encryptor Encryptor, clock Clock, logger Logger, clientID string) *Exporter {
	return &Exporter{
		engine:    engine,
		sink:      sink,
		encryptor: encryptor,
		clock:     clock,
		logger:    logger,
		clientID:  clientID,
	}
}

// Export serializes the current state and stores it. Returns the object name.
func (x *Exporter) Export(encrypt bool) (string, error) {
	doc, err := x.engine.ExportDocument()
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding export: %w", err)
	}

	name := x.clientID + "/" + x.clock.Now().UTC().Format(exportTimeLayout) + exportExt
	if encrypt {
		if x.encryptor == nil {
			return "", fmt.Errorf("encryption requested but no encryptor is configured")
		}
		var buf bytes.Buffer
		if err := x.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return "", fmt.Errorf("encrypting export: %w", err)
		}
		data = buf.Bytes()
		name = strings.TrimSuffix(name, exportExt) + encryptedExportExt
	}

	if err := x.sink.Put(name, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", fmt.Errorf("storing export: %w", err)
	}

	x.logger.Info("exported reports", "name", name, "train_days", len(doc.TrainDays), "bytes", len(data), "encrypted", encrypt)
	return name, nil
}

// List returns the names of this client's exports, oldest first.
func (x *Exporter) List() ([]string, error) {
	names, err := x.sink.List(x.clientID + "/")
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	return names, nil
}

// IsEncrypted reports whether name refers to an encrypted export.
func IsEncrypted(name string) bool {
	return strings.HasSuffix(name, encryptedExportExt)
}

// Cat writes the plaintext of export name to w. dc is required for encrypted exports.
func (x *Exporter) Cat(name string, w io.Writer, dc DecryptionContext) error {
	if !IsEncrypted(name) {
		if err := x.sink.Get(name, w); err != nil {
			return fmt.Errorf("reading export: %w", err)
		}
		return nil
	}
	if dc == nil {
		return ErrLocked
	}

	var buf bytes.Buffer
	if err := x.sink.Get(name, &buf); err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	if err := dc.Decrypt(&buf, w); err != nil {
		return fmt.Errorf("decrypting export: %w", err)
	}
	return nil
}
