// Package app wires the host: configuration, program loading, the action
// registry, the runtime, and the listeners, plus the process lifecycle
// around them.
package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/arolang/aro/internal/config"
	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/internal/runtime"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	host     *config.Host
	registry *registry.Registry
	runtime  *runtime.Runtime
}

// NewApp constructs a fully wired application: host configuration, parsed
// and validated program, populated registry, and runtime. Extra modules
// (tests, embedders) register after the core set.
func NewApp(ctx context.Context, outW io.Writer, appConfig *Config, extra ...registry.Module) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	host := config.Default()
	if appConfig.ConfigPath != "" {
		loaded, err := config.Load(ctx, appConfig.ConfigPath)
		if err != nil {
			return nil, err
		}
		host = loaded
	}
	if appConfig.Workers > 0 {
		host.Runtime.Workers = appConfig.Workers
	}

	program, err := loadProgram(ctx, appConfig.ProgramPath)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	for _, mod := range coreModules(outW) {
		if err := mod.Register(reg); err != nil {
			return nil, err
		}
	}
	for _, mod := range extra {
		if err := mod.Register(reg); err != nil {
			return nil, err
		}
	}
	logger.Debug("Action registry populated.", "verbs", reg.Verbs())

	rt, err := runtime.New(program, reg,
		runtime.WithWorkers(host.Runtime.Workers),
		runtime.WithRequestTimeout(host.Runtime.RequestTimeout),
		runtime.WithShutdownTimeout(host.Runtime.ShutdownTimeout),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		outW:     outW,
		logger:   logger,
		host:     host,
		registry: reg,
		runtime:  rt,
	}, nil
}

// Runtime returns the application's runtime. This is primarily for testing.
func (a *App) Runtime() *runtime.Runtime {
	return a.runtime
}
