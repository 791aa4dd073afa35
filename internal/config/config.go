// Package config resolves the build's configuration from CLI flags, the
// environment, an optional config file, and built-in defaults, in that
// precedence order. Grounded on distri's own cmd/distri flag wiring
// (plain stdlib flag.Bool/flag.String, see internal/build/mount.go),
// layered under viper the way eve.evalgo.org does for config-file and
// env-var precedence — the one config-layering library in the examples
// pack.
package config

import (
	"flag"
	"time"

	"github.com/spf13/viper"
)

// BuildConfig is the resolved configuration a cmd/builder invocation
// runs with.
type BuildConfig struct {
	WorkspaceRoot string
	CacheDir      string
	Jobs          int
	KeepGoing     bool
	LogLevel      string

	RemoteCacheAddr string

	CacheMaxAge        time.Duration
	CacheMaxBytes      int64
	CacheMaxEntries    int
	CacheSweepInterval time.Duration

	ActionMaxRetries int
	ConfigFile       string
}

// defaults mirrors cache.DefaultPolicy's values so a config file need not
// repeat them; duplicated here (rather than imported) so this package
// never depends on internal/cache, keeping the dependency graph a strict
// DAG from services down to config.
const (
	defaultCacheMaxAge        = 30 * 24 * time.Hour
	defaultCacheMaxBytes      = 20 << 30
	defaultCacheMaxEntries    = 200_000
	defaultCacheSweepInterval = 10 * time.Minute
	defaultActionMaxRetries   = 3
)

// Load parses args (typically os.Args[1:]) against fs, then layers a
// viper-backed reader over BUILDER_-prefixed environment variables and
// an optional config file (set via -config, or BUILDER_CONFIG_FILE), and
// returns the merged configuration. Precedence, highest first: explicit
// flag > environment variable > config file > default — matching
// viper's own SetDefault/BindEnv/config-file precedence model, with CLI
// flags layered on top via explicit overrides after viper resolves the
// rest.
func Load(fs *flag.FlagSet, args []string) (*BuildConfig, error) {
	var (
		workspaceRoot = fs.String("workspace", "", "workspace root to build in (default: $BUILDER_WORKSPACE_ROOT or internal/env's default)")
		cacheDir      = fs.String("cache-dir", "", "action cache directory")
		jobs          = fs.Int("jobs", 0, "worker count (default: number of CPUs)")
		keepGoing     = fs.Bool("keep-going", false, "continue building independent targets after a failure")
		logLevel      = fs.String("log-level", "", "log level: debug, info, warn, error")
		remoteCache   = fs.String("remote-cache", "", "address of a remote action cache server")
		configFile    = fs.String("config", "", "path to a config file (YAML/TOML/JSON via viper)")
		maxRetries    = fs.Int("action-max-retries", 0, "max retries for a transiently-failing action")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("BUILDER")
	v.AutomaticEnv()
	v.SetDefault("jobs", 0)
	v.SetDefault("keep_going", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("cache_max_age", defaultCacheMaxAge)
	v.SetDefault("cache_max_bytes", defaultCacheMaxBytes)
	v.SetDefault("cache_max_entries", defaultCacheMaxEntries)
	v.SetDefault("cache_sweep_interval", defaultCacheSweepInterval)
	v.SetDefault("action_max_retries", defaultActionMaxRetries)

	configPath := firstNonEmpty(*configFile, v.GetString("config_file"))
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &BuildConfig{
		WorkspaceRoot:      firstNonEmpty(*workspaceRoot, v.GetString("workspace")),
		CacheDir:           firstNonEmpty(*cacheDir, v.GetString("cache_dir")),
		Jobs:               firstNonZeroInt(*jobs, v.GetInt("jobs")),
		KeepGoing:          *keepGoing || v.GetBool("keep_going"),
		LogLevel:           firstNonEmpty(*logLevel, v.GetString("log_level")),
		RemoteCacheAddr:    firstNonEmpty(*remoteCache, v.GetString("remote_cache")),
		CacheMaxAge:        v.GetDuration("cache_max_age"),
		CacheMaxBytes:      v.GetInt64("cache_max_bytes"),
		CacheMaxEntries:    v.GetInt("cache_max_entries"),
		CacheSweepInterval: v.GetDuration("cache_sweep_interval"),
		ActionMaxRetries:   firstNonZeroInt(*maxRetries, v.GetInt("action_max_retries")),
		ConfigFile:         configPath,
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZeroInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
