// Package config loads the host configuration file: runtime tuning,
// trigger listeners, and durable persistence. Program sources are not
// configuration and are loaded separately.
package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/failure"
)

// Host is the decoded host configuration.
type Host struct {
	Runtime     Runtime
	Listeners   []Listener
	Persistence *Persistence
}

// Runtime tunes the execution core.
type Runtime struct {
	Workers         int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Listener describes one external trigger source.
type Listener struct {
	Kind      string
	URL       string
	Namespace string
	Events    []string
}

// Persistence describes the durable repository observer.
type Persistence struct {
	Path         string
	Repositories []string
}

type hostHCL struct {
	Runtime     *runtimeHCL     `hcl:"runtime,block"`
	Listeners   []listenerHCL   `hcl:"listener,block"`
	Persistence *persistenceHCL `hcl:"persistence,block"`
}

type runtimeHCL struct {
	Workers         *int    `hcl:"workers,optional"`
	RequestTimeout  *string `hcl:"request_timeout,optional"`
	ShutdownTimeout *string `hcl:"shutdown_timeout,optional"`
}

type listenerHCL struct {
	Kind      string   `hcl:"kind,label"`
	URL       string   `hcl:"url"`
	Namespace *string  `hcl:"namespace,optional"`
	Events    []string `hcl:"events"`
}

type persistenceHCL struct {
	Path         string   `hcl:"path"`
	Repositories []string `hcl:"repositories"`
}

// Default returns the host configuration used when no file is given.
func Default() *Host {
	return &Host{
		Runtime: Runtime{
			Workers:         0, // 0 lets the pool pick NumCPU
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load parses and decodes a host configuration file.
func Load(ctx context.Context, filePath string) (*Host, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding host configuration file.", "path", filePath)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return nil, failure.New(failure.KindConfiguration, "failed to parse host configuration %s: %s", filePath, diags.Error())
	}

	var raw hostHCL
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &raw); diags.HasErrors() {
		return nil, failure.New(failure.KindConfiguration, "failed to decode host configuration %s: %s", filePath, diags.Error())
	}

	host := Default()
	if raw.Runtime != nil {
		if raw.Runtime.Workers != nil {
			if *raw.Runtime.Workers < 0 {
				return nil, failure.New(failure.KindConfiguration, "runtime.workers must not be negative, got %d", *raw.Runtime.Workers)
			}
			host.Runtime.Workers = *raw.Runtime.Workers
		}
		if err := decodeDuration(raw.Runtime.RequestTimeout, "runtime.request_timeout", &host.Runtime.RequestTimeout); err != nil {
			return nil, err
		}
		if err := decodeDuration(raw.Runtime.ShutdownTimeout, "runtime.shutdown_timeout", &host.Runtime.ShutdownTimeout); err != nil {
			return nil, err
		}
	}

	for _, l := range raw.Listeners {
		listener := Listener{Kind: l.Kind, URL: l.URL, Events: l.Events, Namespace: "/"}
		if l.Namespace != nil {
			listener.Namespace = *l.Namespace
		}
		if listener.Kind != "socketio" {
			return nil, failure.New(failure.KindConfiguration, "unsupported listener kind %q, only \"socketio\" is available", listener.Kind)
		}
		host.Listeners = append(host.Listeners, listener)
	}

	if raw.Persistence != nil {
		host.Persistence = &Persistence{
			Path:         raw.Persistence.Path,
			Repositories: raw.Persistence.Repositories,
		}
	}

	logger.Debug("Host configuration decoded.", "listeners", len(host.Listeners), "persistence", host.Persistence != nil)
	return host, nil
}

// evalContext exposes the process environment as the "env" variable, so a
// configuration file can write url = env.BROKER_URL.
func evalContext() *hcl.EvalContext {
	environ := os.Environ()
	vars := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		if name, value, ok := strings.Cut(kv, "="); ok && name != "" {
			vars[name] = cty.StringVal(value)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}

func decodeDuration(raw *string, field string, into *time.Duration) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return failure.New(failure.KindConfiguration, "%s: %v", field, err)
	}
	if d <= 0 {
		return failure.New(failure.KindConfiguration, "%s must be positive, got %s", field, d)
	}
	*into = d
	return nil
}
