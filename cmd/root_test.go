package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hdb-fairness/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "estimate", "pool"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "hdb-fairness", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	assert.NotNil(t, serveCmd.Flags().Lookup("pool"))
}

func TestEstimateCommand_Flags(t *testing.T) {
	for _, name := range []string{"town", "flat-type", "area", "lease", "asking", "pool", "beta-lease", "gamma-log-area", "format"} {
		assert.NotNil(t, estimateCmd.Flags().Lookup(name), "estimate should have --%s flag", name)
	}
	assert.Equal(t, "table", estimateCmd.Flags().Lookup("format").DefValue)
}

func TestPoolCommand_Flags(t *testing.T) {
	for _, name := range []string{"town", "flat-type", "output", "pool"} {
		assert.NotNil(t, poolCmd.Flags().Lookup(name), "pool should have --%s flag", name)
	}
}

func TestApplyOverrides(t *testing.T) {
	prev := logLevel
	t.Cleanup(func() { logLevel = prev })

	c := &config.Config{Log: config.LogConfig{Level: "info"}}
	logLevel = ""
	applyOverrides(c)
	assert.Equal(t, "info", c.Log.Level)

	logLevel = "debug"
	applyOverrides(c)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestRootCommand_LogLevelFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}
