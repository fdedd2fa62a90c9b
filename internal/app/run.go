package app

import (
	"context"

	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/event"
	"github.com/arolang/aro/modules/persistence"
	"github.com/arolang/aro/modules/socketio"
)

// Run executes the application lifecycle: attach collaborators, run the
// start-up execution, serve triggers until the context ends, then run the
// matching shutdown execution. A start-up failure routes to the error
// shutdown and is returned.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.host.Persistence != nil {
		observer, err := persistence.Open(a.host.Persistence.Path, a.host.Persistence.Repositories)
		if err != nil {
			return err
		}
		defer observer.Close()
		a.runtime.AddChangeListener(observer.OnChange)
		a.logger.Info("Durable change log attached.", "path", a.host.Persistence.Path)
	}

	if err := a.runtime.Start(ctx); err != nil {
		a.logger.Error("Start-up execution failed.", "error", err)
		if shutdownErr := a.runtime.Shutdown(context.WithoutCancel(ctx), true); shutdownErr != nil {
			a.logger.Error("Error-shutdown execution failed.", "error", shutdownErr)
		}
		return err
	}

	var listeners []*socketio.Listener
	for _, cfg := range a.host.Listeners {
		listener := socketio.NewListener(cfg.URL, cfg.Namespace, cfg.Events, func(ctx context.Context, ev event.Event) {
			result := a.runtime.Trigger(ctx, ev)
			if result.Err != nil {
				a.logger.Error("Broker-triggered execution failed.", "event", ev.Name, "error", result.Err)
			}
		})
		if err := listener.Start(ctx); err != nil {
			a.logger.Error("Listener failed to start.", "url", cfg.URL, "error", err)
			continue
		}
		listeners = append(listeners, listener)
	}

	if len(listeners) > 0 {
		a.logger.Info("Serving triggers.", "listeners", len(listeners))
		<-ctx.Done()
		for _, listener := range listeners {
			listener.Close()
		}
	}

	err := a.runtime.Shutdown(context.WithoutCancel(ctx), false)
	if err != nil {
		a.logger.Error("Shutdown execution failed.", "error", err)
		return err
	}
	a.logger.Info("🏁 Execution finished.")
	return nil
}
