// Package main provides the diceodds command: it rolls dice notation, prints
// outcome distributions, and runs Lua dice scripts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceodds/internal/config"
	"github.com/cory-johannsen/diceodds/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (defaults and DICEODDS_* env when empty)")
	envFile := flag.String("env", ".env", "dotenv file loaded before configuration; ignored when missing")
	rolls := flag.Int("roll", 0, "roll each notation this many times")
	showOdds := flag.Bool("odds", false, "print the outcome distribution of each notation")
	format := flag.String("format", formatText, "output format: text or yaml")
	seed := flag.Uint64("seed", 0, "seed for reproducible rolls (0 = crypto/rand)")
	scriptPath := flag.String("script", "", "Lua script to run")
	scriptFn := flag.String("call", "main", "global function called in -script")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !validFormat(*format) {
		logger.Fatal("invalid output format", zap.String("format", *format))
	}
	if *rolls < 0 {
		logger.Fatal("invalid roll count", zap.Int("roll", *rolls))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := initializeApp(ctx, cfg, logger, Seed(*seed))
	if err != nil {
		logger.Fatal("initializing", zap.Error(err))
	}
	defer cleanup()

	logger.Debug("diceodds ready",
		zap.String("cache", cfg.Cache.Backend),
		observability.Elapsed(start),
	)

	if err := run(ctx, app, options{
		notations:  flag.Args(),
		rolls:      *rolls,
		odds:       *showOdds,
		format:     *format,
		scriptPath: *scriptPath,
		scriptFn:   *scriptFn,
	}); err != nil {
		logger.Error("diceodds failed", zap.Error(err))
		cleanup()
		_ = logger.Sync()
		os.Exit(1)
	}
}

type options struct {
	notations  []string
	rolls      int
	odds       bool
	format     string
	scriptPath string
	scriptFn   string
}

// run executes one command invocation against app, writing to stdout.
func run(ctx context.Context, app *App, o options) error {
	if o.scriptPath != "" {
		if err := app.Scripts.LoadFile(ctx, "cli", o.scriptPath); err != nil {
			return err
		}
		ret, err := app.Scripts.Call(ctx, "cli", o.scriptFn)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, ret.String())
	}

	if o.scriptPath == "" && len(o.notations) == 0 {
		return errors.New("no dice notation given")
	}

	rolls := o.rolls
	if rolls == 0 && !o.odds {
		rolls = 1
	}
	for _, text := range o.notations {
		if o.odds {
			report, err := app.Odds.Odds(ctx, text)
			if err != nil {
				return fmt.Errorf("odds for %q: %w", text, err)
			}
			if err := writeOdds(os.Stdout, o.format, report); err != nil {
				return err
			}
		}
		for range rolls {
			r, err := app.Roller.RollExpr(text)
			if err != nil {
				return fmt.Errorf("rolling %q: %w", text, err)
			}
			if err := writeRoll(os.Stdout, o.format, r); err != nil {
				return err
			}
		}
	}
	return nil
}
