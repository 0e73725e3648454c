package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/behaviors/internal/behavior"
	"github.com/rendis/behaviors/internal/expressions"
	"github.com/rendis/behaviors/internal/store"
	"github.com/rendis/behaviors/internal/templating"
	"github.com/rendis/behaviors/pkg/mcp"
)

// app holds the wired components of a running server.
type app struct {
	engine    *behavior.Engine
	resolver  *expressions.Resolver
	store     *store.LibSQLStore // nil when the trigger log is disabled
	history   *store.TriggerLog
	templates *templating.Task
	logger    *slog.Logger
}

// buildApp loads the behavior set, opens the trigger log and compiles the
// engine. Any defect in the behavior set is fatal.
func buildApp(ctx context.Context, cfg Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	if cfg.DBPath != "" {
		if dir := filepath.Dir(strings.TrimPrefix(cfg.DBPath, "file:")); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
		s, err := store.NewLibSQLStore(cfg.dbURI())
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate trigger log: %w", err)
		}
		a.store = s
		a.history = store.NewTriggerLog(s)
	}

	set, err := behavior.LoadFile(cfg.RulesPath)
	if err != nil {
		a.close()
		return nil, err
	}

	a.resolver = expressions.NewResolver(expressions.DefaultRegistry())
	opts := behavior.Options{
		Resolver: a.resolver,
		Logger:   logger,
	}
	if a.history != nil {
		opts.Recorder = a.history
	}
	engine, err := behavior.Compile(set, opts)
	if err != nil {
		a.close()
		return nil, err
	}

	a.engine = engine
	a.templates = templating.NewTask(templating.NewEngine(), logger)
	return a, nil
}

func (a *app) server() *mcp.BehaviorServer {
	return mcp.NewBehaviorServer(mcp.BehaviorServerDeps{
		Engine:    a.engine,
		Resolver:  a.resolver,
		History:   a.history,
		Templates: a.templates,
		Version:   version,
		Logger:    a.logger,
	})
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close trigger log", "error", err)
		}
	}
}
