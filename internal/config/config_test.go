package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, nil)
	require.NoError(t, err)
	require.Equal(t, defaultActionMaxRetries, cfg.ActionMaxRetries)
	require.Equal(t, defaultCacheMaxEntries, cfg.CacheMaxEntries)
	require.False(t, cfg.KeepGoing)
}

func TestLoadFlagOverridesEnv(t *testing.T) {
	t.Setenv("BUILDER_JOBS", "7")
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"-jobs", "3"})
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Jobs, "an explicit flag must win over the environment variable")
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("BUILDER_KEEP_GOING", "true")
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, nil)
	require.NoError(t, err)
	require.True(t, cfg.KeepGoing)
}

func TestLoadWorkspaceRootFromFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"-workspace", "/tmp/ws"})
	require.NoError(t, err)
	require.Equal(t, "/tmp/ws", cfg.WorkspaceRoot)
}

