package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	envConfigPath = "WHEELWATCH_CONFIG_PATH"
	envHome       = "WHEELWATCH_HOME"
)

// Defaults are the paths used before a config file exists.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults resolves the default paths. WHEELWATCH_CONFIG_PATH overrides
// ~/.config/wheelwatch.toml and WHEELWATCH_HOME overrides the data directory
// ~/.local/share/wheelwatch, which holds exports, keys and logs.
func GetDefaults() (Defaults, error) {
	configPath, err := envOrHome(envConfigPath, ".config", "wheelwatch.toml")
	if err != nil {
		return Defaults{}, err
	}
	baseDir, err := envOrHome(envHome, ".local", "share", "wheelwatch")
	if err != nil {
		return Defaults{}, err
	}
	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns $env when set, else the path elems joined under the home directory.
func envOrHome(env string, elems ...string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving %s: cannot determine home directory: %w", env, err)
	}
	return filepath.Join(append([]string{home}, elems...)...), nil
}
