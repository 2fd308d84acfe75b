package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/springd/internal/animator"
	"github.com/zeusync/springd/internal/config"
	"github.com/zeusync/springd/internal/core/events/bus"
	"github.com/zeusync/springd/internal/core/observability/log"
	"github.com/zeusync/springd/internal/injector"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML or JSON config file")
		logLevel   = flag.String("log-level", "", "override log level (debug, info, warn, error)")
		simulate   = flag.Int("simulate", 0, "run headless for at most N frames and print a trace to stdout")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "springd:", err)
		os.Exit(2)
	}

	app, err := injector.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "springd:", err)
		os.Exit(1)
	}
	defer func() { _ = app.Logger.Sync() }()

	if *simulate > 0 {
		out := bufio.NewWriter(os.Stdout)
		frames := runSimulation(app.Animator, *simulate, out)
		if err := out.Flush(); err != nil {
			app.Logger.Error("write trace", log.Error(err))
			os.Exit(1)
		}
		app.Logger.Info("simulation finished",
			log.Int("frames", frames),
			log.Bool("settled", app.Animator.Settled()),
		)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := logTransitions(app.Bus, app.Logger); err != nil {
		app.Logger.Error("subscribe", log.Error(err))
		os.Exit(1)
	}

	if err := app.Server.Run(ctx); err != nil {
		app.Logger.Error("server failed", log.Error(err))
		os.Exit(1)
	}
}

// logTransitions reports springs being added, removed or coming to rest.
func logTransitions(eventBus bus.EventBus, logger log.Log) error {
	handler := func(event bus.Event) error {
		t, ok := event.Data.(animator.Transition)
		if !ok {
			return nil
		}
		logger.Info(event.Type,
			log.Stringer("id", t.ID),
			log.String("name", t.Name),
			log.Stringer("value", t.Value),
			log.Uint64("frame", t.Frame),
		)
		return nil
	}
	for _, typ := range []string{animator.EventAdded, animator.EventRemoved, animator.EventSettled} {
		if _, err := eventBus.Subscribe(typ, handler); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig(path, level string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Log.Level = parsed
	}
	return cfg, cfg.Validate()
}
