// Package httpfetch provides the HTTP actions Fetch and Call. Both start
// their I/O the moment the statement runs and bind a resolvable handle, so
// a later statement blocks only when it actually uses the response.
package httpfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arolang/aro/internal/binding"
	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/registry"
)

// Module implements the registry.Module interface for this package. All
// statements share one client; tests inject their own.
type Module struct {
	Client *http.Client
}

func (m *Module) client() *http.Client {
	if m.Client != nil {
		return m.Client
	}
	return http.DefaultClient
}

// resolveURL reads the statement's object position as the target URL.
func resolveURL(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (string, error) {
	if inv.ObjectLiteral != nil {
		return *inv.ObjectLiteral, nil
	}
	v, err := ec.ResolveRef(ctx, inv.Object)
	if err != nil {
		return "", err
	}
	url, ok := v.(string)
	if !ok {
		return "", failure.New(failure.KindAction, "'%s' does not resolve to a URL string", inv.Object.String())
	}
	return url, nil
}

// start launches the request on its own goroutine and returns the handle it
// will settle. The request outlives the statement but not the request
// timeout.
func (m *Module) start(ctx context.Context, timeout time.Duration, method, url string, body []byte) *binding.Future {
	fut := binding.NewFuture()
	logger := ctxlog.FromContext(ctx)

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	go func() {
		defer cancel()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
		if err != nil {
			fut.Resolve(nil, failure.New(failure.KindAction, "failed to build %s request for %s: %v", method, url, err))
			return
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := m.client().Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				fut.Resolve(nil, failure.New(failure.KindTimeout, "%s %s did not answer within %s", method, url, timeout))
				return
			}
			fut.Resolve(nil, failure.New(failure.KindAction, "%s %s failed: %v", method, url, err))
			return
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			fut.Resolve(nil, failure.New(failure.KindAction, "failed to read the %s response: %v", url, err))
			return
		}
		logger.Debug("HTTP response received.", "method", method, "url", url, "status", resp.StatusCode)
		fut.Resolve(map[string]any{
			"status": float64(resp.StatusCode),
			"body":   decodeBody(resp.Header.Get("Content-Type"), raw),
		}, nil)
	}()
	return fut
}

// decodeBody unmarshals JSON responses into plain data; anything else stays
// a string.
func decodeBody(contentType string, raw []byte) any {
	if strings.Contains(contentType, "json") {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

// executeFetch performs a GET:
//
//	Fetch rates from "https://api.example.com/rates"
func (m *Module) executeFetch(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	url, err := resolveURL(ctx, ec, inv)
	if err != nil {
		return nil, err
	}
	return m.start(ctx, ec.RequestTimeout(), http.MethodGet, url, nil), nil
}

// executeCall performs a POST with the with-clause value as JSON body:
//
//	Call confirmation to "https://api.example.com/confirm" with confirmed-order
func (m *Module) executeCall(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	url, err := resolveURL(ctx, ec, inv)
	if err != nil {
		return nil, err
	}
	var body []byte
	if inv.With != nil {
		v, err := ec.ResolveOperand(ctx, *inv.With)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, failure.New(failure.KindAction, "the Call payload is not serializable: %v", err)
		}
		body = raw
	}
	return m.start(ctx, ec.RequestTimeout(), http.MethodPost, url, body), nil
}

// Register registers the HTTP actions with the registry.
func (m *Module) Register(r *registry.Registry) error {
	actions := []*registry.Action{
		{
			Name:         "httpfetch.fetch",
			Role:         registry.RoleRequest,
			Verbs:        []string{"Fetch"},
			Prepositions: []string{"from"},
			Execute:      m.executeFetch,
		},
		{
			Name:         "httpfetch.call",
			Role:         registry.RoleRequest,
			Verbs:        []string{"Call"},
			Prepositions: []string{"to"},
			Execute:      m.executeCall,
		},
	}
	for _, action := range actions {
		if err := r.Register(action); err != nil {
			return err
		}
	}
	return nil
}
