package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/modbridge/internal/config"
	"github.com/zeusync/modbridge/internal/injector"
	"github.com/zeusync/modbridge/internal/core/observability/log"
)

func main() {
	cfgPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "bridge:", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
	}

	app, cleanup, err := injector.InitializeApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err = spawnDemoLevel(app.Engine); err != nil {
		return fmt.Errorf("demo level: %w", err)
	}
	app.Logger.Info("demo level ready", log.Int("entities", app.Engine.Len()))

	n, err := app.Runtime.LoadDir(cfg.Scripts.Dir, cfg.Scripts.Pattern)
	if err != nil {
		app.Logger.Warn("some scripts failed to load", log.Error(err))
	}
	app.Logger.Info("scripts loaded", log.Int("count", n), log.String("dir", cfg.Scripts.Dir))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Console.Enabled {
		g.Go(func() error {
			return app.Console.Run(ctx)
		})
	}
	g.Go(func() error {
		return hostLoop(ctx, app, cfg.Console.Tick)
	})

	err = g.Wait()
	app.Logger.Info("shutting down")
	return err
}

// hostLoop is the single thread scripts run on. Console submissions are
// evaluated here between ticks.
func hostLoop(ctx context.Context, app *injector.App, tick time.Duration) error {
	if tick <= 0 {
		tick = config.Default().Console.Tick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := app.Console.Drain(app.Runtime); n > 0 {
				app.Logger.Debug("console submissions evaluated", log.Int("count", n))
			}
		}
	}
}
