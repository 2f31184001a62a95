// Package config resolves the effective configuration from the three-layer
// override chain: built-in defaults, the TOML config file, then environment
// variables. CLI flags are applied last by the command layer.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Worker pool bounds. Uploads beyond this parallelism hit Drive's per-user
// rate limits more than they help throughput.
const (
	DefaultUploadWorkers = 3
	maxUploadWorkers     = 8
)

// Environment variable names for overrides.
const (
	EnvConfig       = "DRIVEPUT_CONFIG"
	EnvParentFolder = "DRIVEPUT_PARENT_FOLDER"
	EnvLogLevel     = "DRIVEPUT_LOG_LEVEL"
	EnvWorkers      = "DRIVEPUT_WORKERS"
)

// Config is the TOML config file schema. All fields are optional.
type Config struct {
	// ParentFolderID is the default remote destination when the host supplies none.
	ParentFolderID string `toml:"parent_folder_id"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// UploadWorkers bounds parallel transfers. 1 means strictly sequential.
	UploadWorkers int `toml:"upload_workers"`
	// ShareWith is a default email granted reader access after each upload.
	ShareWith string `toml:"share_with"`
}

// Load reads the config file at path, or the default location when path is
// empty, applies environment overrides, and validates the result. A missing
// config file is not an error — defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := &Config{
		LogLevel:      "info",
		UploadWorkers: DefaultUploadWorkers,
	}

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvParentFolder); v != "" {
		cfg.ParentFolderID = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.UploadWorkers = n
		}
	}
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}

	if c.UploadWorkers < 1 || c.UploadWorkers > maxUploadWorkers {
		return fmt.Errorf("config: upload_workers must be between 1 and %d, got %d",
			maxUploadWorkers, c.UploadWorkers)
	}

	return nil
}
