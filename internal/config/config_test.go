package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arolang/aro/internal/config"
	"github.com/arolang/aro/internal/failure"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "host.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfiguration(t *testing.T) {
	path := writeConfig(t, `
runtime {
  workers          = 8
  request_timeout  = "3s"
  shutdown_timeout = "1s"
}

listener "socketio" {
  url       = "http://localhost:3000"
  namespace = "/orders"
  events    = ["order-created", "order-confirmed"]
}

persistence {
  path         = "changes.db"
  repositories = ["order-repository"]
}
`)

	host, err := config.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 8, host.Runtime.Workers)
	assert.Equal(t, 3*time.Second, host.Runtime.RequestTimeout)
	assert.Equal(t, time.Second, host.Runtime.ShutdownTimeout)

	require.Len(t, host.Listeners, 1)
	assert.Equal(t, "socketio", host.Listeners[0].Kind)
	assert.Equal(t, "/orders", host.Listeners[0].Namespace)
	assert.Equal(t, []string{"order-created", "order-confirmed"}, host.Listeners[0].Events)

	require.NotNil(t, host.Persistence)
	assert.Equal(t, "changes.db", host.Persistence.Path)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "")

	host, err := config.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), host)
}

func TestLoad_ListenerNamespaceDefaultsToRoot(t *testing.T) {
	path := writeConfig(t, `
listener "socketio" {
  url    = "http://localhost:3000"
  events = ["order-created"]
}
`)

	host, err := config.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, host.Listeners, 1)
	assert.Equal(t, "/", host.Listeners[0].Namespace)
}

func TestLoad_EnvironmentInterpolation(t *testing.T) {
	t.Setenv("BROKER_URL", "http://broker.internal:3000")
	path := writeConfig(t, `
listener "socketio" {
  url    = env.BROKER_URL
  events = ["order-created"]
}
`)

	host, err := config.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, host.Listeners, 1)
	assert.Equal(t, "http://broker.internal:3000", host.Listeners[0].URL)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad duration": `
runtime {
  request_timeout = "soon"
}
`,
		"non-positive duration": `
runtime {
  shutdown_timeout = "0s"
}
`,
		"negative workers": `
runtime {
  workers = -2
}
`,
		"unsupported listener kind": `
listener "kafka" {
  url    = "localhost:9092"
  events = ["order-created"]
}
`,
		"not hcl at all": `{{{{`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, content)
			_, err := config.Load(context.Background(), path)
			require.Error(t, err)
			assert.Equal(t, failure.KindConfiguration, failure.KindOf(err))
		})
	}
}
