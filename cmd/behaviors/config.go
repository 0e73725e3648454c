package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/behaviors/internal/logging"
)

// Config holds all behaviors server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	RulesPath string `json:"rules_path"`
	DBPath    string `json:"db_path"` // empty disables the trigger log
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

func defaultConfig() Config {
	return Config{
		RulesPath: filepath.Join(behaviorsDir(), "behaviors.yaml"),
		DBPath:    filepath.Join(behaviorsDir(), "behaviors.db"),
		LogLevel:  "info",
		LogFormat: string(logging.FormatText),
	}
}

func behaviorsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".behaviors"
	}
	return filepath.Join(home, ".behaviors")
}

func settingsPath() string {
	return filepath.Join(behaviorsDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override. BEHAVIORS_DB_PATH may be set to an empty
	// value to disable the trigger log.
	if v := os.Getenv("BEHAVIORS_RULES_PATH"); v != "" {
		cfg.RulesPath = v
	}
	if v, ok := os.LookupEnv("BEHAVIORS_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v := os.Getenv("BEHAVIORS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BEHAVIORS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

func (c Config) validate() error {
	if c.RulesPath == "" {
		return fmt.Errorf("rules_path is required")
	}
	switch logging.Format(c.LogFormat) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("unsupported log_format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// dbURI turns a filesystem path into the file URI libSQL expects.
func (c Config) dbURI() string {
	if c.DBPath == "" || strings.HasPrefix(c.DBPath, "file:") {
		return c.DBPath
	}
	return "file:" + c.DBPath
}
