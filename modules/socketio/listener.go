// Package socketio provides the real-time trigger listener: it subscribes
// to broker events over socket.io and forwards them into the core as
// ordinary triggers.
package socketio

import (
	"context"
	"fmt"
	"net/url"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/event"
)

// Trigger delivers one forwarded event into the core. The listener ignores
// the result; broker-driven executions answer nobody.
type Trigger func(ctx context.Context, ev event.Event)

// Listener maintains one socket.io subscription.
type Listener struct {
	url       string
	namespace string
	events    []string
	trigger   Trigger

	manager *socket.Manager
	io      *socket.Socket
}

// NewListener builds a listener for the given broker URL and event names.
func NewListener(rawURL, namespace string, events []string, trigger Trigger) *Listener {
	return &Listener{url: rawURL, namespace: namespace, events: events, trigger: trigger}
}

// Start connects and subscribes. Reconnection is the client library's job;
// forwarded events carry the broker payload when it is an object, or wrap
// it under "value" otherwise.
func (l *Listener) Start(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("listener", "socketio", "url", l.url, "namespace", l.namespace)

	parsedURL, err := url.Parse(l.url)
	if err != nil {
		return fmt.Errorf("failed to parse listener URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	l.manager = socket.NewManager(baseURL, opts)
	l.io = l.manager.Socket(l.namespace, opts)

	l.io.On(types.EventName("connect"), func(...any) {
		logger.Info("Listener connected.", "sid", l.io.Id(), "events", l.events)
	})
	l.io.On(types.EventName("connect_error"), func(errs ...any) {
		logger.Warn("Listener connection error.", "error", fmt.Sprint(errs...))
	})

	for _, name := range l.events {
		name := name
		l.io.On(types.EventName(name), func(data ...any) {
			payload := map[string]any{}
			if len(data) > 0 {
				if m, ok := data[0].(map[string]any); ok {
					payload = m
				} else {
					payload = map[string]any{"value": data[0]}
				}
			}
			logger.Debug("Forwarding broker event.", "event", name)
			l.trigger(ctx, event.New(name, payload))
		})
	}

	l.io.Connect()
	return nil
}

// Close disconnects the subscription.
func (l *Listener) Close() {
	if l.io != nil {
		l.io.Disconnect()
	}
}
