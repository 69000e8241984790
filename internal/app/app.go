package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wheelwatch/internal/config"
	"wheelwatch/internal/encryption"
	"wheelwatch/internal/hierarchy"
	"wheelwatch/internal/inspect"
	"wheelwatch/internal/report"
	"wheelwatch/internal/sink"
	"wheelwatch/internal/transport"
)

// Options tune how NewApp builds its dependencies.
type Options struct {
	// Stderr receives a copy of the log. nil keeps the log file only.
	Stderr   io.Writer
	LogLevel slog.Leveler
	Clock    inspect.Clock
}

// App is the application layer between the CLI and the engine. It constructs
// all dependencies from config and exposes the operations the commands run.
// The caller must call Close when done.
type App struct {
	cfg       *config.Config
	engine    *inspect.Engine
	client    *transport.Client
	exporter  *inspect.Exporter
	encryptor inspect.Encryptor
	registry  *prometheus.Registry
	metrics   *PromMetrics
	logger    inspect.Logger
	clock     inspect.Clock
	op        *Operation
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config. operation names the
// CLI command being run and tags the log.
func NewApp(cfg *config.Config, operation string, opts Options) (*App, error) {
	clock := opts.Clock
	if clock == nil {
		clock = inspect.RealClock{}
	}

	loc, err := cfg.Engine.Location()
	if err != nil {
		return nil, fmt.Errorf("configuring engine: %w", err)
	}

	s, err := sink.NewSinkFromConfig(cfg.Export)
	if err != nil {
		return nil, fmt.Errorf("creating export sink: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	op := NewOperation(operation, clock.Now())
	level := opts.LogLevel
	if level == nil {
		level = slog.LevelInfo
	}
	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, level, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewPromMetrics(registry)

	engine := inspect.NewEngine(loc, cfg.Engine.Thresholds(), logger, metrics, clock)
	logger.Info("operation started", "operation", operation)

	return &App{
		cfg:       cfg,
		engine:    engine,
		client:    transport.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout()),
		exporter:  inspect.NewExporter(engine, s, enc, clock, logger, cfg.ClientID),
		encryptor: enc,
		registry:  registry,
		metrics:   metrics,
		logger:    logger,
		clock:     clock,
		op:        op,
		logFile:   logFile,
	}, nil
}

// Engine returns the engine for queries.
func (a *App) Engine() *inspect.Engine {
	return a.engine
}

// Registry returns the Prometheus registry holding the app's collectors.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Fail marks the running operation as failed; Close logs the outcome.
func (a *App) Fail(err error) {
	a.op.Fail(err)
}

// Sync fetches the full report list and loads it into the engine.
func (a *App) Sync(ctx context.Context) error {
	reports, err := a.client.FetchReports(ctx)
	if err != nil {
		return err
	}
	return a.engine.LoadInitial(reports)
}

// Watch follows the live stream until ctx is cancelled, calling onChange after
// every change. The metrics listener runs alongside when configured.
func (a *App) Watch(ctx context.Context, onChange func(inspect.Change)) error {
	streamURL, err := a.cfg.Backend.ResolvedStreamURL()
	if err != nil {
		return fmt.Errorf("resolving stream url: %w", err)
	}

	if onChange != nil {
		unsubscribe := a.engine.Subscribe(onChange)
		defer unsubscribe()
	}

	if a.cfg.Metrics.Addr != "" {
		srv, addr, err := a.serveMetrics(a.cfg.Metrics.Addr)
		if err != nil {
			return err
		}
		a.logger.Info("serving metrics", "addr", addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	minDelay, maxDelay := a.cfg.Stream.Backoff()
	stream := transport.NewStream(streamURL, a.cfg.Backend.Token, a.Sync, a.engine.ApplyEvent, a.logger)
	stream.MinBackoff = minDelay
	stream.MaxBackoff = maxDelay
	stream.Observer = streamObserver{metrics: a.metrics}
	stream.IDs = inspect.UUIDGenerator{}

	err = stream.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveMetrics starts the /metrics listener. It returns the bound address so
// ":0" can be used in tests.
func (a *App) serveMetrics(addr string) (*http.Server, string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listening for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics listener stopped", "error", err)
		}
	}()
	return srv, ln.Addr().String(), nil
}

// TrainDays syncs and returns every train day, newest first.
func (a *App) TrainDays(ctx context.Context) ([]hierarchy.TrainDay, error) {
	if err := a.Sync(ctx); err != nil {
		return nil, err
	}
	return a.engine.ListTrainDays()
}

// Compartments syncs and returns the compartments of the train day named by
// key, e.g. "5/2024-06-15".
func (a *App) Compartments(ctx context.Context, key string) ([]hierarchy.Compartment, error) {
	k, err := hierarchy.ParseTrainDayKey(key)
	if err != nil {
		return nil, err
	}
	if err := a.Sync(ctx); err != nil {
		return nil, err
	}
	return a.engine.ListCompartments(k)
}

// Wheels syncs and returns the wheels of one compartment.
func (a *App) Wheels(ctx context.Context, key string, compartment int) ([]hierarchy.Wheel, error) {
	k, err := hierarchy.ParseTrainDayKey(key)
	if err != nil {
		return nil, err
	}
	if err := a.Sync(ctx); err != nil {
		return nil, err
	}
	return a.engine.ListWheels(k, compartment)
}

// Latest syncs and summarizes the newest train day.
func (a *App) Latest(ctx context.Context) (hierarchy.Summary, bool, error) {
	if err := a.Sync(ctx); err != nil {
		return hierarchy.Summary{}, false, err
	}
	return a.engine.LatestSummary()
}

// Search syncs and returns the reports matching query.
func (a *App) Search(ctx context.Context, query string) ([]report.InspectionReport, error) {
	if err := a.Sync(ctx); err != nil {
		return nil, err
	}
	return a.engine.Search(query)
}

// ImageURL resolves a report image path against the backend.
func (a *App) ImageURL(path string) string {
	return a.client.ImageURL(path)
}

// Delete removes a report on the backend.
func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.client.DeleteReport(ctx, id); err != nil {
		return err
	}
	a.logger.Info("deleted report", "id", id)
	return nil
}

// Export syncs and writes an export document. Encryption is used when the
// config or the caller asks for it.
func (a *App) Export(ctx context.Context, encrypt bool) (string, error) {
	if err := a.Sync(ctx); err != nil {
		return "", err
	}
	return a.exporter.Export(encrypt || a.cfg.Export.Encrypt)
}

// ListExports returns the names of this client's exports.
func (a *App) ListExports() ([]string, error) {
	return a.exporter.List()
}

// CatExport writes the plaintext of an export to w. passphrase is only called
// for encrypted exports.
func (a *App) CatExport(name string, w io.Writer, passphrase func() (string, error)) error {
	if !inspect.IsEncrypted(name) {
		return a.exporter.Cat(name, w, nil)
	}
	if !a.encryptor.IsConfigured() {
		return fmt.Errorf("export %s is encrypted but no keys are configured", name)
	}
	p, err := passphrase()
	if err != nil {
		return fmt.Errorf("reading passphrase: %w", err)
	}
	dc, err := a.encryptor.Unlock(p)
	if err != nil {
		return err
	}
	return a.exporter.Cat(name, w, dc)
}

// SetupKeys generates the export key pair.
func (a *App) SetupKeys(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up keys: %w", err)
	}
	a.logger.Info("generated export keys", "public_key", a.cfg.Encryption.PublicKeyPath)
	return nil
}

// Close logs the operation outcome and closes the log file.
func (a *App) Close() error {
	elapsed := a.op.Elapsed(a.clock.Now())
	if a.op.Err != nil {
		a.logger.Error("operation finished", "operation", a.op.Name, "status", a.op.Status, "elapsed", elapsed, "error", a.op.Err)
	} else {
		a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status, "elapsed", elapsed)
	}

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			return fmt.Errorf("closing log file: %w", err)
		}
	}
	return nil
}
