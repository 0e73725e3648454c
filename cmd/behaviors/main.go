package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rendis/behaviors/internal/behavior"
	"github.com/rendis/behaviors/internal/logging"
	"github.com/rendis/behaviors/pkg/schema"
)

const usage = `usage: behaviors [-version] <command> [flags]

commands:
  serve     run the MCP server on stdio (default)
  check     load and compile a behavior set, then list its behaviors
  install   write ~/.behaviors/settings.json
`

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if *showVersion {
		printVersion()
		return
	}

	args := flag.Args()
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		if err := runServe(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "check":
		if err := runCheck(args, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "install":
		runInstall(args)
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	rules := fs.String("rules", "", "behavior set file (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := loadConfig()
	if *rules != "" {
		cfg.RulesPath = *rules
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	// stdout carries the MCP protocol; logs go to stderr.
	logger := logging.New(os.Stderr, cfg.LogLevel, logging.Format(cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	logger.Info("behaviors server starting",
		"version", version,
		"rules", cfg.RulesPath,
		"set_id", a.engine.SetID(),
		"behaviors", len(a.engine.Behaviors()),
		"trigger_log", a.history != nil,
	)

	if err := a.server().Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("behaviors server stopped")
	return nil
}

// runCheck compiles a behavior set without serving it. Validation failures
// are printed one per line.
func runCheck(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := loadConfig().RulesPath
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	set, err := behavior.LoadFile(path)
	if err == nil {
		var engine *behavior.Engine
		engine, err = behavior.Compile(set, behavior.Options{Logger: logging.Discard()})
		if err == nil {
			fmt.Fprintf(out, "%s: set %q compiled, %d behaviors\n", path, engine.SetID(), len(engine.Behaviors()))
			for _, id := range engine.Behaviors() {
				expr, _ := engine.Expression(id)
				fmt.Fprintf(out, "  %s: %s\n", id, expr)
			}
			return nil
		}
	}

	if be, ok := schema.AsBehaviorError(err); ok {
		if issues, ok := be.Details["errors"].([]schema.ValidationIssue); ok && len(issues) > 1 {
			for _, is := range issues {
				fmt.Fprintf(out, "  %s: %s\n", is.Path, is.Message)
			}
		}
	}
	return err
}
