package config

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"wheelwatch/internal/report"
)

// Config represents the main configuration for wheelwatch.
type Config struct {
	ClientID   string           `toml:"client_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Backend    BackendConfig    `toml:"backend"`
	Stream     StreamConfig     `toml:"stream"`
	Engine     EngineConfig     `toml:"engine"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Export     ExportConfig     `toml:"export"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// BackendConfig locates the inspection backend.
type BackendConfig struct {
	BaseURL string `toml:"base_url"`
	// StreamURL is the live update WebSocket. When empty it is derived from
	// BaseURL by switching the scheme to ws or wss.
	StreamURL      string `toml:"stream_url,omitempty"`
	Token          string `toml:"token,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// StreamConfig bounds the reconnect backoff of the live stream.
type StreamConfig struct {
	ReconnectMinSeconds int `toml:"reconnect_min_seconds"`
	ReconnectMaxSeconds int `toml:"reconnect_max_seconds"`
}

// EngineConfig holds the aggregation settings.
type EngineConfig struct {
	Timezone       string  `toml:"timezone"` // IANA name or "Local"
	GoodDiameterMm float64 `toml:"good_diameter_mm"`
}

// MetricsConfig holds the Prometheus listener used by `wheelwatch watch`.
type MetricsConfig struct {
	Addr string `toml:"addr,omitempty"` // empty disables the listener
}

// ExportConfig represents configuration for the export sink.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ExportConfig struct {
	Type    string `toml:"type"` // "memory", "filesystem" or "s3"
	Encrypt bool   `toml:"encrypt"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

const (
	defaultTimeoutSeconds      = 15
	defaultReconnectMinSeconds = 1
	defaultReconnectMaxSeconds = 30
)

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(clientID, baseDir string) *Config {
	return &Config{
		ClientID: clientID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Backend: BackendConfig{
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Stream: StreamConfig{
			ReconnectMinSeconds: defaultReconnectMinSeconds,
			ReconnectMaxSeconds: defaultReconnectMaxSeconds,
		},
		Engine: EngineConfig{
			Timezone:       "Local",
			GoodDiameterMm: report.DefaultGoodDiameterMm,
		},
		Export: ExportConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "exports"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "wheelwatch.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "wheelwatch.key"),
		},
	}
}

// Location resolves the engine time zone. Empty and "Local" mean the host zone.
func (c EngineConfig) Location() (*time.Location, error) {
	switch tz := strings.TrimSpace(c.Timezone); tz {
	case "", "Local":
		return time.Local, nil
	default:
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
		}
		return loc, nil
	}
}

// Thresholds returns the derivation thresholds, defaulting to 631mm.
func (c EngineConfig) Thresholds() report.Thresholds {
	th := report.DefaultThresholds()
	if c.GoodDiameterMm > 0 {
		th.GoodDiameterMm = c.GoodDiameterMm
	}
	return th
}

// Timeout returns the HTTP timeout for backend requests.
func (c BackendConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolvedStreamURL returns StreamURL, or the WebSocket URL derived from BaseURL.
func (c BackendConfig) ResolvedStreamURL() (string, error) {
	if c.StreamURL != "" {
		return c.StreamURL, nil
	}
	if c.BaseURL == "" {
		return "", fmt.Errorf("backend base_url is not set")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base_url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("base_url must be http or https, got %q", u.Scheme)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// Backoff returns the reconnect bounds, defaulting to 1s and 30s.
func (c StreamConfig) Backoff() (minDelay, maxDelay time.Duration) {
	minDelay = time.Duration(c.ReconnectMinSeconds) * time.Second
	maxDelay = time.Duration(c.ReconnectMaxSeconds) * time.Second
	if minDelay <= 0 {
		minDelay = defaultReconnectMinSeconds * time.Second
	}
	if maxDelay < minDelay {
		maxDelay = max(defaultReconnectMaxSeconds*time.Second, minDelay)
	}
	return minDelay, maxDelay
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// The file may hold a backend token, so it is created user-readable only.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
