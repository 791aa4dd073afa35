package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/distr1/builder/internal/cache"
	"github.com/distr1/builder/internal/graph"
	"github.com/distr1/builder/internal/hash"
	"github.com/distr1/builder/internal/sandbox"
	"github.com/distr1/builder/pb"
)

func newTestCache(t *testing.T) *cache.ActionCache {
	t.Helper()
	ac, err := cache.New(context.Background(), t.TempDir(), nil, cache.Policy{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ac.Close)
	return ac
}

// fakeSandbox is a PreparedSandbox backed by files already staged on
// disk, so tests never spin up real namespaces or subprocesses.
type fakeSandbox struct {
	exitCode int
	outDir   string
	declared []string
}

func (s *fakeSandbox) Run(ctx context.Context, argv []string) (sandbox.ExecResult, error) {
	return sandbox.ExecResult{ExitCode: s.exitCode}, nil
}

func (s *fakeSandbox) CollectOutputs() (map[string]sandbox.OutputInfo, error) {
	out := make(map[string]sandbox.OutputInfo, len(s.declared))
	for _, rel := range s.declared {
		abs := filepath.Join(s.outDir, rel)
		fi, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		d, err := hash.HashFile(abs)
		if err != nil {
			return nil, err
		}
		out[rel] = sandbox.OutputInfo{Digest: d, Size: fi.Size(), Mode: fi.Mode()}
	}
	return out, nil
}

func (s *fakeSandbox) ScanUndeclaredOutputs() ([]sandbox.Violation, error) { return nil, nil }
func (s *fakeSandbox) OutputPath(rel string) string                       { return filepath.Join(s.outDir, rel) }
func (s *fakeSandbox) Teardown() error                                    { return nil }

// fakeFactory hands out exit codes from a fixed sequence, one per
// Prepare call, repeating the last entry once exhausted.
type fakeFactory struct {
	mu        sync.Mutex
	calls     int
	exitCodes []int
	outDir    string
	declared  []string
}

func (f *fakeFactory) Prepare(ctx context.Context, spec sandbox.Spec) (PreparedSandbox, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()
	code := f.exitCodes[len(f.exitCodes)-1]
	if i < len(f.exitCodes) {
		code = f.exitCodes[i]
	}
	return &fakeSandbox{exitCode: code, outDir: f.outDir, declared: f.declared}, nil
}

func (f *fakeFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// panicFactory fails the test if Prepare is ever called, for assertions
// that a cache hit must short-circuit sandboxed execution entirely.
type panicFactory struct{ t *testing.T }

func (f panicFactory) Prepare(ctx context.Context, spec sandbox.Spec) (PreparedSandbox, error) {
	f.t.Fatal("sandbox.Prepare called on a cache hit")
	return nil, nil
}

type fakeEvents struct {
	mu          sync.Mutex
	started     int
	completed   []string
	cacheHits   int
	cacheMisses int
}

func (e *fakeEvents) ActionStarted(string, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started++
}
func (e *fakeEvents) ActionCompleted(_, _ string, status string, _ time.Duration, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed = append(e.completed, status)
}
func (e *fakeEvents) CacheHit(string, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cacheHits++
}
func (e *fakeEvents) CacheMiss(string, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cacheMisses++
}
func (e *fakeEvents) SandboxViolation(string, string, string, string) {}
func (e *fakeEvents) GraphExtended(string, int)                      {}
func (e *fakeEvents) BuildSummary(*pb.BuildSummary)                  {}

// TestRunnerCacheHitSkipsSandbox: a populated cache entry short-circuits
// execution entirely and materializes the recorded outputs.
func TestRunnerCacheHitSkipsSandbox(t *testing.T) {
	ac := newTestCache(t)
	spec := &pb.ActionSpec{
		TargetId:        "t1",
		ActionType:      "compile",
		DeclaredOutputs: []string{"out/bin"},
	}
	key := computeActionKey(spec, nil)
	content := []byte("cached payload")
	digest := hash.HashBytes(content)
	entry := &pb.CacheEntry{
		Success: true,
		Outputs: []*pb.OutputRecord{{
			RelativePath: "out/bin",
			ContentHash:  digest.String(),
			Size:         int64(len(content)),
			Mode:         0644,
		}},
	}
	if err := ac.Insert(context.Background(), key, entry, map[hash.Digest][]byte{digest: content}); err != nil {
		t.Fatal(err)
	}

	workspace := t.TempDir()
	events := &fakeEvents{}
	r := &Runner{
		Cache:         ac,
		Sandbox:       panicFactory{t: t},
		Hasher:        hash.NewHasher(64),
		Handlers:      map[string]LanguageHandler{},
		Policy:        DefaultRetryPolicy,
		Events:        events,
		WorkspaceRoot: workspace,
	}

	g := graph.New(false)
	n := g.AddNode(&pb.Target{Id: "t1"})
	n.ActionSpec = spec

	if err := r.Run(context.Background(), n); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(workspace, "out/bin"))
	if err != nil {
		t.Fatalf("reading materialized output: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("materialized content = %q, want %q", got, content)
	}
	if res := n.Result(); res == nil || !res.CacheHit {
		t.Fatalf("expected node result to report a cache hit, got %+v", res)
	}
	if events.cacheHits != 1 {
		t.Fatalf("expected 1 CacheHit event, got %d", events.cacheHits)
	}
}

// TestRunnerTargetCacheShortCircuitsDependencyChain is the S1 null-build
// fast path (spec.md §4.7 step 1): a target whose own action and every
// transitive dependency's action are already in the action cache is
// materialized via the target cache and never reaches the sandbox for
// the dependent, even though only the individual action keys (never a
// stored "target key") were ever inserted.
func TestRunnerTargetCacheShortCircuitsDependencyChain(t *testing.T) {
	ac := newTestCache(t)
	tc := cache.NewTargetCache(ac)

	depSpec := &pb.ActionSpec{TargetId: "dep", ActionType: "compile", DeclaredOutputs: []string{"out/dep.o"}}
	depKey := computeActionKey(depSpec, nil)
	depContent := []byte("dep payload")
	depDigest := hash.HashBytes(depContent)
	if err := ac.Insert(context.Background(), depKey, &pb.CacheEntry{
		Success: true,
		Outputs: []*pb.OutputRecord{{RelativePath: "out/dep.o", ContentHash: depDigest.String(), Size: int64(len(depContent))}},
	}, map[hash.Digest][]byte{depDigest: depContent}); err != nil {
		t.Fatal(err)
	}

	topSpec := &pb.ActionSpec{TargetId: "top", ActionType: "link", DeclaredOutputs: []string{"out/top.bin"}}
	topKey := computeActionKey(topSpec, nil)
	topContent := []byte("top payload")
	topDigest := hash.HashBytes(topContent)
	if err := ac.Insert(context.Background(), topKey, &pb.CacheEntry{
		Success: true,
		Outputs: []*pb.OutputRecord{{RelativePath: "out/top.bin", ContentHash: topDigest.String(), Size: int64(len(topContent))}},
	}, map[hash.Digest][]byte{topDigest: topContent}); err != nil {
		t.Fatal(err)
	}

	g := graph.New(false)
	depNode := g.AddNode(&pb.Target{Id: "dep"})
	depNode.ActionSpec = depSpec
	topNode := g.AddNode(&pb.Target{Id: "top"})
	topNode.ActionSpec = topSpec
	if err := g.AddEdge(topNode, depNode); err != nil {
		t.Fatal(err)
	}

	workspace := t.TempDir()
	r := &Runner{
		Cache:         ac,
		TargetCache:   tc,
		Sandbox:       panicFactory{t: t},
		Hasher:        hash.NewHasher(64),
		Handlers:      map[string]LanguageHandler{},
		Policy:        DefaultRetryPolicy,
		Events:        &fakeEvents{},
		WorkspaceRoot: workspace,
		Graph:         g,
	}

	// dep must run first so its ActionKey is populated, matching how the
	// scheduler only dispatches top once dep is terminal.
	if err := r.Run(context.Background(), depNode); err != nil {
		t.Fatalf("Run(dep): %v", err)
	}
	if err := r.Run(context.Background(), topNode); err != nil {
		t.Fatalf("Run(top): %v", err)
	}

	got, err := os.ReadFile(filepath.Join(workspace, "out/top.bin"))
	if err != nil {
		t.Fatalf("reading materialized output: %v", err)
	}
	if string(got) != string(topContent) {
		t.Fatalf("materialized content = %q, want %q", got, topContent)
	}
	if res := topNode.Result(); res == nil || !res.CacheHit {
		t.Fatalf("expected top node result to report a cache hit, got %+v", res)
	}
}

// TestRunnerTargetCacheFallsThroughOnMiss confirms an anomaly (here, an
// evicted dependency action) falls back to the ordinary per-action probe
// instead of failing the build, per tryTargetCache's doc comment.
func TestRunnerTargetCacheFallsThroughOnMiss(t *testing.T) {
	ac := newTestCache(t)
	tc := cache.NewTargetCache(ac)

	depSpec := &pb.ActionSpec{TargetId: "dep", ActionType: "compile", DeclaredOutputs: []string{"out/dep.o"}}
	topSpec := &pb.ActionSpec{TargetId: "top", ActionType: "link", DeclaredOutputs: []string{"out/top.bin"}}
	topKey := computeActionKey(topSpec, nil)
	topContent := []byte("top payload")
	topDigest := hash.HashBytes(topContent)
	if err := ac.Insert(context.Background(), topKey, &pb.CacheEntry{
		Success: true,
		Outputs: []*pb.OutputRecord{{RelativePath: "out/top.bin", ContentHash: topDigest.String(), Size: int64(len(topContent))}},
	}, map[hash.Digest][]byte{topDigest: topContent}); err != nil {
		t.Fatal(err)
	}
	// dep's own action key is deliberately never inserted, simulating an
	// evicted entry: the target-cache closure check must still find dep's
	// ActionKey (set merely by dep having executed), but ProbeAll then
	// misses on it, so the whole batch falls through.

	g := graph.New(false)
	depNode := g.AddNode(&pb.Target{Id: "dep"})
	depNode.ActionSpec = depSpec
	topNode := g.AddNode(&pb.Target{Id: "top"})
	topNode.ActionSpec = topSpec
	if err := g.AddEdge(topNode, depNode); err != nil {
		t.Fatal(err)
	}
	depNode.ActionKey = computeActionKey(depSpec, nil)

	workspace := t.TempDir()
	r := &Runner{
		Cache:         ac,
		TargetCache:   tc,
		Sandbox:       panicFactory{t: t},
		Hasher:        hash.NewHasher(64),
		Handlers:      map[string]LanguageHandler{},
		Policy:        DefaultRetryPolicy,
		Events:        &fakeEvents{},
		WorkspaceRoot: workspace,
		Graph:         g,
	}

	if err := r.Run(context.Background(), topNode); err != nil {
		t.Fatalf("Run(top): %v", err)
	}
	if res := topNode.Result(); res == nil || !res.CacheHit {
		t.Fatalf("expected the per-action probe to still find top's own cache entry, got %+v", res)
	}
}

// TestRunnerRetrySucceedsOnSecondAttempt is S5: an action that exits
// non-zero once, then succeeds on retry, ends the node successful and
// inserts into the cache, having invoked the sandbox exactly twice.
func TestRunnerRetrySucceedsOnSecondAttempt(t *testing.T) {
	ac := newTestCache(t)
	outDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(outDir, "out"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "out", "result"), []byte("ok"), 0644); err != nil {
		t.Fatal(err)
	}

	factory := &fakeFactory{exitCodes: []int{1, 0}, outDir: outDir, declared: []string{"out/result"}}
	events := &fakeEvents{}
	r := &Runner{
		Cache:    ac,
		Sandbox:  factory,
		Hasher:   hash.NewHasher(64),
		Handlers: map[string]LanguageHandler{},
		Policy: RetryPolicy{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
			Retryable:  DefaultRetryable,
		},
		Events:        events,
		WorkspaceRoot: t.TempDir(),
	}

	g := graph.New(false)
	n := g.AddNode(&pb.Target{Id: "t2"})
	n.ActionSpec = &pb.ActionSpec{
		TargetId:        "t2",
		ActionType:      "compile",
		Argv:            []string{"/bin/true"},
		DeclaredOutputs: []string{"out/result"},
	}

	if err := r.Run(context.Background(), n); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := factory.callCount(); got != 2 {
		t.Fatalf("expected 2 sandbox invocations, got %d", got)
	}
	if len(events.completed) != 2 || events.completed[0] != "failed" || events.completed[1] != "success" {
		t.Fatalf("expected completed events [failed success], got %v", events.completed)
	}
	if events.started != 2 {
		t.Fatalf("expected 2 ActionStarted events (one per attempt), got %d", events.started)
	}
	if events.cacheMisses != 1 {
		t.Fatalf("expected 1 CacheMiss event, got %d", events.cacheMisses)
	}

	key := computeActionKey(n.ActionSpec, nil)
	if _, hit, err := ac.Probe(context.Background(), key); err != nil || !hit {
		t.Fatalf("expected successful retry to populate the cache, hit=%v err=%v", hit, err)
	}
}

// TestRunnerExhaustsRetriesOnPersistentFailure: when every attempt (the
// initial try plus all retries) exits non-zero, Run returns an error and
// the cache is left untouched.
func TestRunnerExhaustsRetriesOnPersistentFailure(t *testing.T) {
	ac := newTestCache(t)
	factory := &fakeFactory{exitCodes: []int{1, 1}, outDir: t.TempDir()}
	events := &fakeEvents{}
	r := &Runner{
		Cache:    ac,
		Sandbox:  factory,
		Hasher:   hash.NewHasher(64),
		Handlers: map[string]LanguageHandler{},
		Policy: RetryPolicy{
			MaxRetries: 1,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
			Retryable:  DefaultRetryable,
		},
		Events:        events,
		WorkspaceRoot: t.TempDir(),
	}

	g := graph.New(false)
	n := g.AddNode(&pb.Target{Id: "t3"})
	n.ActionSpec = &pb.ActionSpec{TargetId: "t3", ActionType: "compile", Argv: []string{"/bin/false"}}

	if err := r.Run(context.Background(), n); err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if got := factory.callCount(); got != 2 {
		t.Fatalf("expected 2 sandbox invocations (1 initial + 1 retry), got %d", got)
	}
	if n.Result() == nil || n.Result().Err == nil {
		t.Fatal("expected node result to carry the final error")
	}
}
