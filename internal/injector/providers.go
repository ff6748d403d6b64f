package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/modbridge/internal/bridge"
	"github.com/zeusync/modbridge/internal/config"
	"github.com/zeusync/modbridge/internal/console"
	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/engine/memory"
	"github.com/zeusync/modbridge/internal/core/events/bus"
	"github.com/zeusync/modbridge/internal/core/observability/log"
	"github.com/zeusync/modbridge/internal/script"
)

// App is everything the host program drives.
type App struct {
	Config  config.Config
	Logger  log.Log
	Engine  *memory.Engine
	Bridge  *bridge.Bridge
	Runtime *script.Runtime
	Console *console.Server
}

// ProviderSet builds an App on the in-memory engine.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideEngine,
	wire.Bind(new(engine.Engine), new(*memory.Engine)),
	bus.New,
	ProvideBridge,
	ProvideRuntime,
	ProvideConsole,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg config.Config) (log.Log, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := log.NewWithOptions(cfg.LogOptions())
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideEngine() (*memory.Engine, error) {
	return memory.New()
}

func ProvideBridge(eng engine.Engine, events bus.EventBus, logger log.Log, cfg config.Config) (*bridge.Bridge, func(), error) {
	b, err := bridge.New(eng, events, logger, cfg.Bridge)
	if err != nil {
		return nil, nil, err
	}
	return b, b.Close, nil
}

func ProvideRuntime(b *bridge.Bridge, logger log.Log) (*script.Runtime, func()) {
	r := script.NewRuntime(b, logger)
	return r, r.Close
}

func ProvideConsole(cfg config.Config, logger log.Log) *console.Server {
	return console.New(cfg.Console, logger)
}
