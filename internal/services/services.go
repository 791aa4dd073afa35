// Package services is the build's dependency-injection container: every
// long-lived component (logger, caches, sandbox factory, graph,
// scheduler, runner) is a field here, constructed once from a resolved
// config.BuildConfig, rather than a package-level global. Grounded on
// distri's internal/batch.Ctx, which plays the same role for distri's
// own batch builder (Log, DistriRoot, DefaultBuildCtx bundled together
// and threaded through explicitly instead of reached for globally).
package services

import (
	"context"
	"runtime"

	"github.com/distr1/builder/internal/cache"
	"github.com/distr1/builder/internal/cache/remote"
	"github.com/distr1/builder/internal/config"
	"github.com/distr1/builder/internal/env"
	"github.com/distr1/builder/internal/graph"
	"github.com/distr1/builder/internal/hash"
	"github.com/distr1/builder/internal/runner"
	"github.com/distr1/builder/internal/sandbox"
	"github.com/distr1/builder/internal/scheduler"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
)

// Services bundles every component the execution core needs for one
// build invocation. New registers no language handlers: Runner.Handlers
// starts empty and is filled by the caller after New returns, since
// language handlers live outside this package's scope; cmd/builder
// registers none.
type Services struct {
	Log *logrus.Logger
	Cfg *config.BuildConfig

	Cache       *cache.ActionCache
	TargetCache *cache.TargetCache

	Graph     *graph.Graph
	Scheduler *scheduler.Scheduler
	Runner    *runner.Runner

	remoteConn *grpc.ClientConn
}

// New wires every component together in dependency order: logger, then
// the (optional) remote cache transport, then the local action/target
// caches, then the sandbox factory and hasher that feed the runner, then
// a fresh empty graph and the scheduler bound to it. Handlers and the
// graph's initial targets are the caller's responsibility to add before
// calling Scheduler.Run.
func New(ctx context.Context, cfg *config.BuildConfig) (*Services, error) {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	workspaceRoot := cfg.WorkspaceRoot
	if workspaceRoot == "" {
		workspaceRoot = env.WorkspaceRoot
	}

	var remoteTransport cache.RemoteTransport
	var conn *grpc.ClientConn
	if cfg.RemoteCacheAddr != "" {
		client, c, err := remote.Dial(ctx, cfg.RemoteCacheAddr)
		if err != nil {
			return nil, xerrors.Errorf("services: dialing remote cache %s: %w", cfg.RemoteCacheAddr, err)
		}
		remoteTransport = client
		conn = c
	}

	policy := cache.Policy{
		MaxAge:        cfg.CacheMaxAge,
		MaxBytes:      cfg.CacheMaxBytes,
		MaxEntries:    cfg.CacheMaxEntries,
		SweepInterval: cfg.CacheSweepInterval,
	}
	ac, err := cache.New(ctx, cfg.CacheDir, remoteTransport, policy, log)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, xerrors.Errorf("services: opening action cache: %w", err)
	}
	tc := cache.NewTargetCache(ac)

	g := graph.New(cfg.KeepGoing)

	retryPolicy := runner.DefaultRetryPolicy
	retryPolicy.MaxRetries = cfg.ActionMaxRetries

	events := runner.NewLogrusEventSink(log)

	r := &runner.Runner{
		Cache:         ac,
		TargetCache:   tc,
		Sandbox:       runner.WrapFactory(sandbox.NewFactory()),
		Hasher:        hash.NewHasher(4096),
		Handlers:      map[string]runner.LanguageHandler{},
		Policy:        retryPolicy,
		Events:        events,
		WorkspaceRoot: workspaceRoot,
		Graph:         g,
		Log:           log.WithField("component", "runner"),
	}

	jobs := cfg.Jobs
	if jobs < 1 {
		jobs = runtime.NumCPU()
	}
	sched := scheduler.New(g, r, scheduler.Options{
		Jobs:      jobs,
		KeepGoing: cfg.KeepGoing,
		Log:       log,
		Events:    events,
	})

	return &Services{
		Log:         log,
		Cfg:         cfg,
		Cache:       ac,
		TargetCache: tc,
		Graph:       g,
		Scheduler:   sched,
		Runner:      r,
		remoteConn:  conn,
	}, nil
}

// Close releases resources that outlive a single build call: the action
// cache's background sweeper and, if dialed, the remote cache connection.
func (s *Services) Close() error {
	s.Cache.Close()
	if s.remoteConn != nil {
		return s.remoteConn.Close()
	}
	return nil
}
