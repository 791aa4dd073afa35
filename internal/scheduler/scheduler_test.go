package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/distr1/builder/internal/graph"
	"github.com/distr1/builder/pb"
)

type fakeRunner struct {
	delay   time.Duration
	calls   int32
	failSet map[string]bool
}

func (r *fakeRunner) Run(ctx context.Context, n *graph.BuildNode) error {
	atomic.AddInt32(&r.calls, 1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	n.SetResult(&graph.Result{})
	if r.failSet != nil && r.failSet[n.Target.GetId()] {
		return xerrorsNew("injected failure")
	}
	return nil
}

// xerrorsNew avoids importing golang.org/x/xerrors just for a test sentinel.
func xerrorsNew(msg string) error { return simpleErr(msg) }

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

// TestSchedulerCompleteness: property 5 — a DAG with no intentional
// failures ends with every node in {success, cached}.
func TestSchedulerCompleteness(t *testing.T) {
	g := graph.New(false)
	a := g.AddNode(&pb.Target{Id: "a"})
	b := g.AddNode(&pb.Target{Id: "b"})
	c := g.AddNode(&pb.Target{Id: "c"})
	d := g.AddNode(&pb.Target{Id: "d"})
	if err := g.AddEdge(b, a); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(c, a); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(d, b); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(d, c); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	s := New(g, runner, Options{Jobs: 2})
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, n := range g.AllNodes() {
		st := n.Status()
		if st != graph.StatusSuccess && st != graph.StatusCached {
			t.Fatalf("node %s ended in status %s, want success/cached", n.Target.GetId(), st)
		}
	}
	if got := atomic.LoadInt32(&runner.calls); got != 4 {
		t.Fatalf("expected 4 action invocations, got %d", got)
	}
}

// TestSchedulerParallelism: property 6 — N independent nodes and W workers
// finish in roughly (N/W)*per-action-time, not N*per-action-time.
func TestSchedulerParallelism(t *testing.T) {
	const n, workers = 8, 4
	const perAction = 40 * time.Millisecond

	g := graph.New(false)
	for i := 0; i < n; i++ {
		g.AddNode(&pb.Target{Id: itoa(i)})
	}

	runner := &fakeRunner{delay: perAction}
	s := New(g, runner, Options{Jobs: workers})

	start := time.Now()
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)

	want := time.Duration(n/workers)*perAction + 200*time.Millisecond
	if elapsed > want {
		t.Fatalf("took %v, want <= %v (N=%d, W=%d)", elapsed, want, n, workers)
	}
}

// TestSchedulerCascadingSkip: property 9 — when a node fails and
// keep-going is off, transitive dependents end in skipped.
func TestSchedulerCascadingSkip(t *testing.T) {
	g := graph.New(false)
	root := g.AddNode(&pb.Target{Id: "root"})
	mid := g.AddNode(&pb.Target{Id: "mid"})
	leaf := g.AddNode(&pb.Target{Id: "leaf"})
	if err := g.AddEdge(mid, root); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(leaf, mid); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{failSet: map[string]bool{"root": true}}
	s := New(g, runner, Options{Jobs: 2})
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected an error from the injected failure")
	}

	if got := root.Status(); got != graph.StatusFailed {
		t.Fatalf("root ended %s, want failed", got)
	}
	if got := mid.Status(); got != graph.StatusSkipped {
		t.Fatalf("mid ended %s, want skipped", got)
	}
	if got := leaf.Status(); got != graph.StatusSkipped {
		t.Fatalf("leaf ended %s, want skipped", got)
	}
}
