//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/springd/internal/config"
	"github.com/zeusync/springd/internal/core/events/bus"
	"github.com/zeusync/springd/internal/core/observability/log"
	"github.com/zeusync/springd/internal/server"
)

var providerSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	bus.New,
	ProvideAnimator,
	ProvideServerConfig,
	server.New,
	wire.Struct(new(App), "*"),
)

func InitializeApp(cfg *config.Config) (*App, error) {
	wire.Build(providerSet)
	return nil, nil
}
