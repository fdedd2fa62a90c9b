package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arolang/aro/internal/cli"
)

func TestParse_PositionalProgramPath(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := cli.Parse([]string{"rules/"}, &out)
	require.NoError(t, err)
	assert.False(t, exit)
	require.NotNil(t, config)
	assert.Equal(t, "rules/", config.ProgramPath)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, "info", config.LogLevel)
}

func TestParse_FlagsOverrideDefaults(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := cli.Parse([]string{
		"-program", "orders.aro",
		"-config", "host.hcl",
		"-log-format", "text",
		"-log-level", "debug",
		"-workers", "4",
	}, &out)
	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, "orders.aro", config.ProgramPath)
	assert.Equal(t, "host.hcl", config.ConfigPath)
	assert.Equal(t, "text", config.LogFormat)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 4, config.Workers)
}

func TestParse_ShorthandProgramFlag(t *testing.T) {
	var out bytes.Buffer
	config, _, err := cli.Parse([]string{"-p", "orders.aro"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "orders.aro", config.ProgramPath)
}

func TestParse_NoPathPrintsUsageAndExitsCleanly(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := cli.Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, config)
	assert.Contains(t, out.String(), "PROGRAM_PATH")
}

func TestParse_HelpExitsCleanly(t *testing.T) {
	var out bytes.Buffer
	config, exit, err := cli.Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, config)
}

func TestParse_InvalidValuesReturnExitErrors(t *testing.T) {
	cases := map[string][]string{
		"bad log format": {"-log-format", "xml", "orders.aro"},
		"bad log level":  {"-log-level", "loud", "orders.aro"},
		"bad workers":    {"-workers", "-1", "orders.aro"},
		"unknown flag":   {"-frobnicate", "orders.aro"},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := cli.Parse(args, &out)
			require.Error(t, err)
			var exitErr *cli.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}
