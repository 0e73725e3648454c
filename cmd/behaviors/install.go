package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

func runInstall(args []string) {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	rulesPath := fs.String("rules", "", "behavior set file (default: ~/.behaviors/behaviors.yaml)")
	dbPath := fs.String("db-path", "", "trigger log database path (default: ~/.behaviors/behaviors.db)")
	noDB := fs.Bool("no-db", false, "disable the trigger log")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "text", "log format: text, json")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if err := install(installOptions{
		RulesPath: *rulesPath,
		DBPath:    *dbPath,
		NoDB:      *noDB,
		LogLevel:  *logLevel,
		LogFormat: *logFormat,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written to %s\n", settingsPath())
}

type installOptions struct {
	RulesPath string
	DBPath    string
	NoDB      bool
	LogLevel  string
	LogFormat string
}

// install writes settings.json, falling back to defaults for unset paths.
func install(opts installOptions) error {
	dir := behaviorsDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}

	cfg := defaultConfig()
	cfg.LogLevel = opts.LogLevel
	cfg.LogFormat = opts.LogFormat
	if opts.RulesPath != "" {
		abs, err := filepath.Abs(opts.RulesPath)
		if err != nil {
			return err
		}
		cfg.RulesPath = abs
	}
	switch {
	case opts.NoDB:
		cfg.DBPath = ""
	case opts.DBPath != "":
		cfg.DBPath = opts.DBPath
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	path := settingsPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
