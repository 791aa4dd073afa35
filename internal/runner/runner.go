// Package runner implements the action runner (component G): the glue
// that turns a graph.BuildNode into a cache probe, a sandboxed execution,
// and a cache insert, with retry on transient failure and dynamic-graph
// extension on discovery. Grounded on distri's internal/build/build.go
// top-level Build() orchestration (cache lookup -> hermetic exec ->
// output collection -> cache store), generalized from distri's
// squashfs-package model to spec.md §4.7's action-shaped model.
package runner

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/distr1/builder/internal/cache"
	"github.com/distr1/builder/internal/core"
	"github.com/distr1/builder/internal/graph"
	"github.com/distr1/builder/internal/hash"
	"github.com/distr1/builder/internal/sandbox"
	"github.com/distr1/builder/pb"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// PreparedSandbox is the narrow surface Runner needs from a prepared
// sandbox; *sandbox.Sandbox satisfies it structurally. Kept separate
// from sandbox.Factory's concrete return type so tests can substitute a
// fake without spinning up real namespaces, matching the ActionRunner
// seam scheduler already uses between itself and this package.
type PreparedSandbox interface {
	Run(ctx context.Context, argv []string) (sandbox.ExecResult, error)
	CollectOutputs() (map[string]sandbox.OutputInfo, error)
	ScanUndeclaredOutputs() ([]sandbox.Violation, error)
	OutputPath(rel string) string
	Teardown() error
}

// SandboxFactory prepares a PreparedSandbox for a spec. WrapFactory
// adapts a sandbox.Factory (the platform implementation) to this
// interface.
type SandboxFactory interface {
	Prepare(ctx context.Context, spec sandbox.Spec) (PreparedSandbox, error)
}

type factoryAdapter struct{ f sandbox.Factory }

func (a factoryAdapter) Prepare(ctx context.Context, spec sandbox.Spec) (PreparedSandbox, error) {
	return a.f.Prepare(ctx, spec)
}

// WrapFactory adapts a platform sandbox.Factory (sandbox.NewFactory())
// for use as a Runner's SandboxFactory.
func WrapFactory(f sandbox.Factory) SandboxFactory { return factoryAdapter{f} }

// Runner wires the execution core's storage and isolation components
// (cache, sandbox, hasher) and the per-language plug-in seam (Handlers)
// into spec.md §4.7's seven-step action execution.
type Runner struct {
	Cache         *cache.ActionCache
	TargetCache   *cache.TargetCache
	Sandbox       SandboxFactory
	Hasher        *hash.Hasher
	Handlers      map[string]LanguageHandler
	Policy        RetryPolicy
	Events        EventSink
	WorkspaceRoot string
	Limits        sandbox.ResourceLimits

	// Graph is extended via a handler's Discover result after a
	// successful execution, when non-nil. A nil Graph disables dynamic
	// discovery (e.g. in tests that don't exercise it).
	Graph *graph.Graph

	Log *logrus.Entry
}

func (r *Runner) log() *logrus.Entry {
	if r.Log != nil {
		return r.Log
	}
	return logrus.NewEntry(logrus.New()).WithField("component", "runner")
}

func (r *Runner) events() EventSink {
	if r.Events != nil {
		return r.Events
	}
	return NopEventSink{}
}

// Run implements spec.md §4.7 for a single action:
//  1. build (or reuse) the node's ActionSpec via its language handler
//  2. compute the ActionKey
//  3. probe the action cache; on hit, materialize and return
//  4. on miss, prepare a sandbox and execute
//  5. collect declared outputs, enforcing hermeticity
//  6. on success, insert into the action cache
//  7. on non-zero exit, consult the retry policy before giving up
//
// Discovery (extending the graph from this action's results) is run
// after a successful execution, via the handler's Discover method and
// r.Graph.Extend, when r.Graph is set, matching spec.md §4.5's "dynamic
// discovery is optional per action type". Run's signature matches
// scheduler.ActionRunner, so a *Runner is dispatched directly by the
// scheduler's worker loop.
func (r *Runner) Run(ctx context.Context, n *graph.BuildNode) error {
	targetID := n.Target.GetId()

	spec, err := r.resolveActionSpec(ctx, n)
	if err != nil {
		return &core.Error{Kind: core.KindConfig, Message: "resolving action spec", Target: targetID, Err: err}
	}

	inputHashes, err := r.hashInputs(spec)
	if err != nil {
		return &core.Error{Kind: core.KindIO, Message: "hashing inputs", Target: targetID, Err: err}
	}
	key := computeActionKey(spec, inputHashes)
	n.ActionKey = key
	start := time.Now()
	r.events().ActionStarted(targetID, spec.GetActionType())

	if cached := r.tryTargetCache(ctx, n, key, spec, targetID, start); cached {
		return nil
	}

	if entry, hit, err := r.Cache.Probe(ctx, key); err != nil {
		r.log().WithError(err).Warn("action cache probe failed; treating as miss")
	} else if hit {
		r.events().CacheHit(targetID, key.String())
		if err := r.Cache.Materialize(entry, r.WorkspaceRoot); err != nil {
			return &core.Error{Kind: core.KindCacheCorruption, Message: "materializing cached outputs", Target: targetID, Err: err}
		}
		n.SetResult(&graph.Result{CacheHit: true, DurationNS: int64(time.Since(start))})
		r.events().ActionCompleted(targetID, spec.GetActionType(), "cached", time.Since(start), "hit")
		return nil
	}
	r.events().CacheMiss(targetID, key.String())

	var lastErr error
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			r.events().ActionStarted(targetID, spec.GetActionType())
		}
		result, execErr := r.execute(ctx, spec)
		if execErr != nil {
			lastErr = execErr
			r.events().ActionCompleted(targetID, spec.GetActionType(), "failed", time.Since(start), "miss")
			n.SetResult(&graph.Result{Err: execErr, DurationNS: int64(time.Since(start))})
			return &core.Error{Kind: core.KindSandbox, Message: "sandbox execution", Target: targetID, Err: execErr, Retryable: false}
		}

		if result.exitCode == 0 {
			for _, v := range result.violations {
				r.events().SandboxViolation(targetID, v.Kind.String(), v.Path, v.Message)
			}
			if err := r.Cache.Insert(ctx, key, result.entry, result.blobs); err != nil {
				r.log().WithError(err).Warn("cache insert failed (non-fatal)")
			}
			n.SetResult(&graph.Result{DurationNS: int64(time.Since(start))})
			r.events().ActionCompleted(targetID, spec.GetActionType(), "success", time.Since(start), "miss")

			if r.Graph != nil {
				if h, ok := r.Handlers[n.Target.GetLanguage()]; ok {
					if err := r.discover(ctx, r.Graph, n, h, spec); err != nil {
						r.log().WithError(err).Warn("dynamic discovery failed (non-fatal)")
					}
				}
			}
			return nil
		}

		lastErr = xerrors.Errorf("action exited %d", result.exitCode)
		if !r.Policy.retryable(result.exitCode) || attempt > r.maxRetries() {
			n.SetResult(&graph.Result{Err: lastErr, DurationNS: int64(time.Since(start))})
			r.events().ActionCompleted(targetID, spec.GetActionType(), "failed", time.Since(start), "miss")
			return &core.Error{
				Kind:      core.KindActionFailed,
				Message:   lastErr.Error(),
				Target:    targetID,
				Err:       lastErr,
				Retryable: false,
			}
		}
		r.events().ActionCompleted(targetID, spec.GetActionType(), "failed", time.Since(start), "miss")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Policy.backoff(attempt)):
		}
	}
}

// tryTargetCache implements spec.md §4.7 step 1: before probing the
// action cache for this node alone, check whether every action required
// to fully build n's target (n's own action plus its transitive
// dependencies', per cache.TargetKey's definition) is already present.
// A hit materializes every one of those outputs in one pass and marks n
// cached directly. Correctness never depends on this layer: any anomaly
// (no target cache configured, a dependency that hasn't executed in this
// process, a stale/evicted entry) falls through to the per-action probe
// that follows, so a false return here is always safe.
func (r *Runner) tryTargetCache(ctx context.Context, n *graph.BuildNode, key hash.Digest, spec *pb.ActionSpec, targetID string, start time.Time) bool {
	if r.TargetCache == nil || r.Graph == nil {
		return false
	}
	keys, ok := r.targetActionKeyClosure(n, key)
	if !ok {
		return false
	}
	entries, hit := r.TargetCache.ProbeAll(ctx, keys)
	if !hit {
		return false
	}
	for _, entry := range entries {
		if err := r.Cache.Materialize(entry, r.WorkspaceRoot); err != nil {
			r.log().WithError(err).Warn("target cache hit but materializing an output failed; falling back to per-action probing")
			return false
		}
	}
	r.events().CacheHit(targetID, cache.TargetKey(keys).String())
	n.SetResult(&graph.Result{CacheHit: true, DurationNS: int64(time.Since(start))})
	r.events().ActionCompleted(targetID, spec.GetActionType(), "cached", time.Since(start), "hit")
	return true
}

// targetActionKeyClosure collects ownKey plus the ActionKey of every
// transitive dependency of n. It returns ok=false if any dependency
// hasn't executed yet in this process (ActionKey still zero) — by
// scheduler construction a node only becomes ready once its dependencies
// are terminal, so this is the rare case (process restart mid-build,
// graph built directly against a warm target-cache with no prior probe)
// rather than the common one.
func (r *Runner) targetActionKeyClosure(n *graph.BuildNode, ownKey hash.Digest) ([]hash.Digest, bool) {
	keys := []hash.Digest{ownKey}
	seen := map[int64]bool{n.ID(): true}

	var walk func(*graph.BuildNode) bool
	walk = func(cur *graph.BuildNode) bool {
		for _, dep := range r.Graph.Dependencies(cur) {
			if seen[dep.ID()] {
				continue
			}
			seen[dep.ID()] = true
			if dep.ActionKey.IsZero() {
				return false
			}
			keys = append(keys, dep.ActionKey)
			if !walk(dep) {
				return false
			}
		}
		return true
	}
	if !walk(n) {
		return nil, false
	}
	return keys, true
}

func (r *Runner) maxRetries() int {
	if r.Policy.MaxRetries > 0 {
		return r.Policy.MaxRetries
	}
	return DefaultRetryPolicy.MaxRetries
}

func (r *Runner) resolveActionSpec(ctx context.Context, n *graph.BuildNode) (*pb.ActionSpec, error) {
	if n.ActionSpec != nil {
		return n.ActionSpec, nil
	}
	h, ok := r.Handlers[n.Target.GetLanguage()]
	if !ok {
		return nil, xerrors.Errorf("no language handler registered for %q (target %s)", n.Target.GetLanguage(), n.Target.GetId())
	}
	specs, err := h.BuildSpecs(ctx, n.Target)
	if err != nil {
		return nil, xerrors.Errorf("building action spec for %s: %w", n.Target.GetId(), err)
	}
	if len(specs) == 0 {
		return nil, xerrors.Errorf("handler for %s returned no action specs", n.Target.GetId())
	}
	tools, err := h.ToolVersions(ctx)
	if err == nil && len(tools) > 0 {
		for _, s := range specs {
			if s.ToolVersions == nil {
				s.ToolVersions = make(map[string]string, len(tools))
			}
			for k, v := range tools {
				s.ToolVersions[k] = v
			}
		}
	}
	n.ActionSpec = specs[0]
	return n.ActionSpec, nil
}

func (r *Runner) hashInputs(spec *pb.ActionSpec) (map[string]hash.Digest, error) {
	out := make(map[string]hash.Digest, len(spec.GetInputs()))
	for _, in := range spec.GetInputs() {
		d, err := r.Hasher.HashFile(in)
		if err != nil {
			return nil, xerrors.Errorf("hashing input %q: %w", in, err)
		}
		out[in] = d
	}
	return out, nil
}

// discover runs after a successful execution for handlers that can find
// new work from it (e.g. transitively-included headers), extending g
// per spec.md §4.5's dynamic-discovery rules.
func (r *Runner) discover(ctx context.Context, g *graph.Graph, n *graph.BuildNode, h LanguageHandler, spec *pb.ActionSpec) error {
	meta, err := h.Discover(ctx, n.Target, spec)
	if err != nil {
		return err
	}
	if meta == nil || (len(meta.GetNewTargets()) == 0 && len(meta.GetNewEdges()) == 0) {
		return nil
	}
	added, err := g.Extend(n, meta)
	if err != nil {
		return err
	}
	r.events().GraphExtended(n.Target.GetId(), len(added))
	return nil
}

// executeResult carries what a sandboxed run produced, ready for the
// cache on success.
type executeResult struct {
	exitCode   int
	entry      *pb.CacheEntry
	blobs      map[hash.Digest][]byte
	violations []sandbox.Violation
}

// execute prepares a sandbox for spec, runs it, and on a zero exit reads
// back and hashes every declared output (spec.md §4.2/§4.7 steps 4-5).
// A non-zero exit is reported via exitCode, not as a Go error: the caller
// decides whether it is retryable.
func (r *Runner) execute(ctx context.Context, spec *pb.ActionSpec) (*executeResult, error) {
	sbSpec := sandbox.Spec{
		Temp:            "tmp",
		Env:             spec.GetEnv(),
		Limits:          r.Limits,
		DeclaredOutputs: spec.GetDeclaredOutputs(),
	}
	for _, in := range spec.GetInputs() {
		sbSpec.Inputs = append(sbSpec.Inputs, sandbox.Mount{HostPath: in, SandboxPath: in})
	}
	// Mount the parent directory of every declared output so the sandbox
	// has somewhere to write, and ScanUndeclaredOutputs has a scope (O in
	// spec.md §4.2 notation) to walk for hermeticity invariant 4.
	outputDirs := make(map[string]bool)
	for _, rel := range spec.GetDeclaredOutputs() {
		dir := filepath.Dir(rel)
		if dir == "." {
			dir = ""
		}
		outputDirs[dir] = true
	}
	for dir := range outputDirs {
		sbSpec.Outputs = append(sbSpec.Outputs, sandbox.Mount{SandboxPath: dir})
	}

	sb, err := r.Sandbox.Prepare(ctx, sbSpec)
	if err != nil {
		return nil, xerrors.Errorf("preparing sandbox: %w", err)
	}
	defer func() {
		if err := sb.Teardown(); err != nil {
			r.log().WithError(err).Warn("sandbox teardown failed")
		}
	}()

	wallStart := time.Now()
	execResult, err := sb.Run(ctx, spec.GetArgv())
	wall := time.Since(wallStart)
	if err != nil {
		return nil, err
	}

	res := &executeResult{exitCode: execResult.ExitCode}
	if execResult.ExitCode != 0 {
		return res, nil
	}

	outputs, err := sb.CollectOutputs()
	if err != nil {
		return nil, err
	}

	violations, err := sb.ScanUndeclaredOutputs()
	if err != nil {
		r.log().WithError(err).Warn("scanning for undeclared outputs failed (non-fatal)")
	}

	blobs := make(map[hash.Digest][]byte, len(outputs))
	records := make([]*pb.OutputRecord, 0, len(outputs))
	for rel, info := range outputs {
		raw, err := os.ReadFile(sb.OutputPath(rel))
		if err != nil {
			return nil, xerrors.Errorf("reading output %q: %w", rel, err)
		}
		blobs[info.Digest] = raw
		records = append(records, &pb.OutputRecord{
			RelativePath: rel,
			ContentHash:  info.Digest.String(),
			Size:         info.Size,
			Mode:         uint32(info.Mode),
		})
	}

	res.blobs = blobs
	res.violations = violations
	res.entry = &pb.CacheEntry{
		Outputs: records,
		Success: true,
		ExecutionMetadata: &pb.ExecutionMetadata{
			WallTimeMs:  wall.Milliseconds(),
			ExitCode:    int32(execResult.ExitCode),
			Stdout:      execResult.Stdout,
			Stderr:      execResult.Stderr,
			MaxRssBytes: execResult.MaxRSSBytes,
			UserTimeMs:  execResult.UserTime.Milliseconds(),
			SysTimeMs:   execResult.SysTime.Milliseconds(),
		},
	}
	return res, nil
}
