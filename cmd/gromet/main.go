/* gromet collects Android platform build metadata: release tag lists,
manifest project tables, and Blueprint module registries. */
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gitlab.com/grometheus/gromet/pkg/collect"
	"gitlab.com/grometheus/gromet/pkg/config"
	"gitlab.com/grometheus/gromet/pkg/sched"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("gromet", flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), "usage: gromet [options] OUTPUT_DIR [STAGE...]")
		fmt.Fprintln(flags.Output(), "stages: tags, manifests (default), blueprints(DIR)")
		flags.PrintDefaults()
	}
	configPath := flags.String("config", "", "path to an HCL config file")
	jobs := flags.Uint("jobs", 0, "number of parallel workers (0 uses the config or CPU count)")
	logLevel := flags.String("log-level", "", "log level: debug, info, warn, or error")
	logFormat := flags.String("log-format", "", "log format: text or json")
	debugTag := flags.String("debug-tag", "", "process only this release tag, skipping discovery")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	if *jobs != 0 {
		cfg.Jobs = *jobs
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	if *debugTag != "" {
		cfg.DebugTag = *debugTag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	rest := flags.Args()
	outDir := cfg.OutputDir
	if len(rest) > 0 {
		outDir = rest[0]
		rest = rest[1:]
	}
	if outDir == "" {
		flags.Usage()
		return 2
	}
	outDir, err := filepath.Abs(outDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		fmt.Fprintln(os.Stderr, "error: OUTPUT_DIR must be an existing directory")
		return 1
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	stageNames := rest
	if len(stageNames) == 0 {
		stageNames = []string{"manifests"}
	}
	for _, root := range cfg.BlueprintRoots() {
		stageNames = append(stageNames, "blueprints("+root+")")
	}

	stages, err := collect.Stages(collect.Options{
		OutDir:        outDir,
		ManifestURL:   cfg.ManifestURL,
		DebugTag:      cfg.DebugTag,
		CompressCache: *cfg.CompressCache,
		Logger:        logger,
	}, stageNames)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	coordinator := sched.New(cfg.Jobs, sched.WithLogger(logger))
	defer coordinator.Close()
	for _, stage := range stages {
		coordinator.Submit(stage)
	}
	errs := coordinator.Drain()
	for _, err := range errs {
		fmt.Fprintln(os.Stderr, err)
	}
	if len(errs) > 0 {
		return 1
	}
	return 0
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
