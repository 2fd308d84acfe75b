package injector

import (
	"fmt"

	"github.com/zeusync/springd/internal/animator"
	"github.com/zeusync/springd/internal/config"
	"github.com/zeusync/springd/internal/core/events/bus"
	"github.com/zeusync/springd/internal/core/observability/log"
	"github.com/zeusync/springd/internal/server"
)

// App is the assembled springd process.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Bus      bus.EventBus
	Animator *animator.Animator
	Server   *server.Server
}

func ProvideLogger(cfg *config.Config) *log.Logger {
	return log.New(cfg.Log.Level)
}

// ProvideAnimator builds the animator and creates the springs declared in
// the configuration, already heading for their destinations.
func ProvideAnimator(cfg *config.Config, eventBus bus.EventBus, logger log.Log) (*animator.Animator, error) {
	a := animator.New(eventBus, logger)
	for _, sc := range cfg.Springs {
		preset, err := cfg.Preset(sc.Preset)
		if err != nil {
			return nil, fmt.Errorf("spring %q: %w", sc.Name, err)
		}
		id, err := a.Add(sc.Name, paramsOf(preset), sc.InitialValue())
		if err != nil {
			return nil, fmt.Errorf("spring %q: %w", sc.Name, err)
		}
		if dest, ok := sc.DestinationValue(); ok {
			if err := a.SetDestination(id, dest, true); err != nil {
				return nil, fmt.Errorf("spring %q: %w", sc.Name, err)
			}
		}
	}
	return a, nil
}

func ProvideServerConfig(cfg *config.Config) server.Config {
	presets := make(map[string]animator.Params, len(cfg.Presets))
	for name, p := range cfg.Presets {
		presets[name] = paramsOf(p)
	}
	return server.Config{
		ListenAddr:    cfg.Server.ListenAddr,
		FrameInterval: cfg.FrameInterval(),
		WriteTimeout:  cfg.Server.WriteTimeout,
		MaxClients:    cfg.Server.MaxClients,
		Presets:       presets,
	}
}

func paramsOf(p config.Preset) animator.Params {
	return animator.Params{Stiffness: p.Stiffness, Dampening: p.Dampening, Precision: p.Precision}
}
