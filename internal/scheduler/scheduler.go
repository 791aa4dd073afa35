// Package scheduler implements the work-stealing executor (component F):
// one Chase-Lev deque per worker, random-victim stealing with backoff, and
// park-on-condition-variable when no worker has anything to do. Grounded
// on distri's internal/batch/batch.go worker pool (errgroup-driven, with
// a terminal status line and trace events) generalized from a single
// shared work channel to per-worker deques, which spec.md §4.6 mandates.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/distr1/builder/internal/core"
	"github.com/distr1/builder/internal/graph"
	"github.com/distr1/builder/internal/trace"
	"github.com/distr1/builder/pb"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ActionRunner is the narrow interface the scheduler needs from the action
// runner (component G); kept separate from the concrete internal/runner
// package so scheduler never imports cache/sandbox/hash directly.
type ActionRunner interface {
	Run(ctx context.Context, node *graph.BuildNode) error
}

// EventSink receives the scheduler's one build-wide event: the root-cause
// BuildSummary emitted when Run returns, per spec.md §7. Kept narrow
// (rather than importing runner.EventSink) so the scheduler's dependency
// surface stays limited to graph/trace/pb; runner.EventSink implementations
// satisfy this trivially.
type EventSink interface {
	BuildSummary(*pb.BuildSummary)
}

type nopEventSink struct{}

func (nopEventSink) BuildSummary(*pb.BuildSummary) {}

// Options configures a Scheduler run.
type Options struct {
	Jobs      int // worker count; defaults to runtime.NumCPU via Run's caller
	KeepGoing bool
	Log       *logrus.Logger
	Events    EventSink // defaults to a no-op sink when nil
}

// Scheduler dispatches a build graph's ready nodes across Jobs workers.
type Scheduler struct {
	graph     *graph.Graph
	runner    ActionRunner
	jobs      int
	keepGoing bool
	log       *logrus.Entry
	status    *statusBoard

	deques []*deque
	events EventSink

	cond      *sync.Cond
	cancelled int32 // atomic bool

	remaining int64 // atomic; nodes not yet terminal
}

// New constructs a Scheduler over g, dispatching ready nodes to opts.Jobs
// workers (minimum 1).
func New(g *graph.Graph, runner ActionRunner, opts Options) *Scheduler {
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	deques := make([]*deque, jobs)
	for i := range deques {
		deques[i] = newDeque()
	}
	events := opts.Events
	if events == nil {
		events = nopEventSink{}
	}
	return &Scheduler{
		graph:     g,
		runner:    runner,
		jobs:      jobs,
		keepGoing: opts.KeepGoing,
		log:       log.WithField("component", "scheduler"),
		status:    newStatusBoard(jobs),
		deques:    deques,
		events:    events,
		cond:      sync.NewCond(&sync.Mutex{}),
	}
}

// Cancel requests cooperative shutdown: workers finish their in-flight
// action, then drain their remaining ready work to skipped rather than
// starting anything new, per spec.md §4.6's cancellation contract.
func (s *Scheduler) Cancel() {
	atomic.StoreInt32(&s.cancelled, 1)
	s.wake()
}

func (s *Scheduler) isCancelled() bool { return atomic.LoadInt32(&s.cancelled) != 0 }

func (s *Scheduler) wake() {
	s.cond.L.Lock()
	s.cond.Broadcast()
	s.cond.L.Unlock()
}

// Run dispatches the graph to completion: every node reaches a terminal
// status, or ctx is canceled. Returns the first action error encountered
// when KeepGoing is false; with KeepGoing, independent branches keep
// running and Run returns nil unless ctx itself is canceled (failures are
// visible via each node's Result()).
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.graph.ValidateAcyclic(); err != nil {
		return err
	}

	all := s.graph.AllNodes()
	s.remaining = int64(countNonTerminal(all))
	if s.remaining == 0 {
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)

	const traceFreq = 1 * time.Second
	traceCtx, cancelTrace := context.WithCancel(ctx)
	defer cancelTrace()
	go func() {
		if err := trace.CPUEvents(traceCtx, traceFreq); err != nil && traceCtx.Err() == nil {
			s.log.WithError(err).Debug("cpu trace sampling stopped")
		}
	}()
	go func() {
		if err := trace.MemEvents(traceCtx, traceFreq); err != nil && traceCtx.Err() == nil {
			s.log.WithError(err).Debug("mem trace sampling stopped")
		}
	}()

	// Seed workers round-robin from the initial ready set.
	ready := s.graph.ReadyNodes()
	for i, n := range ready {
		s.markReadyToRunning(n)
		s.deques[i%s.jobs].pushBottom(n)
	}

	go func() {
		<-ctx.Done()
		s.Cancel()
	}()

	var firstErr error
	var firstErrMu sync.Mutex

	for w := 0; w < s.jobs; w++ {
		w := w
		eg.Go(func() error {
			return s.workerLoop(ctx, w, func(err error) {
				firstErrMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				firstErrMu.Unlock()
			})
		})
	}

	err := eg.Wait()
	s.status.finish()
	s.events.BuildSummary(s.buildSummary())
	if err != nil {
		return err
	}
	if !s.keepGoing {
		firstErrMu.Lock()
		defer firstErrMu.Unlock()
		return firstErr
	}
	return nil
}

// buildSummary aggregates every node's terminal status into the root-cause
// report spec.md §7 names: per-outcome counts plus one FailureRecord per
// failed target, so a caller gets the whole build's verdict from a single
// event instead of replaying the per-action stream.
func (s *Scheduler) buildSummary() *pb.BuildSummary {
	summary := &pb.BuildSummary{}
	for _, n := range s.graph.AllNodes() {
		switch n.Status() {
		case graph.StatusSuccess:
			summary.Succeeded++
		case graph.StatusCached:
			summary.Cached++
		case graph.StatusSkipped:
			summary.Skipped++
		case graph.StatusFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, failureRecord(n))
		}
	}
	return summary
}

func failureRecord(n *graph.BuildNode) *pb.FailureRecord {
	rec := &pb.FailureRecord{TargetId: n.Target.GetId()}
	res := n.Result()
	if res == nil || res.Err == nil {
		return rec
	}
	if cerr, ok := res.Err.(*core.Error); ok {
		rec.Code = cerr.Kind.String()
		rec.Message = cerr.Message
		rec.RemediationHint = cerr.RemediationHint
	} else {
		rec.Message = res.Err.Error()
	}
	return rec
}

func countNonTerminal(nodes []*graph.BuildNode) int {
	n := 0
	for _, node := range nodes {
		if !node.Status().Terminal() {
			n++
		}
	}
	return n
}

// markReadyToRunning performs the pending->ready->running (or
// ready->running) transition the moment a node is dispatched onto a
// deque, so a node is claimed at most once even before a worker pops it,
// satisfying spec.md §4.6's "dequeued at most once" guarantee via the
// single CAS inside graph.Mark.
func (s *Scheduler) markReadyToRunning(n *graph.BuildNode) {
	if n.Status() == graph.StatusPending {
		_ = s.graph.Mark(n, graph.StatusReady)
	}
	_ = s.graph.Mark(n, graph.StatusRunning)
}

func (s *Scheduler) workerLoop(ctx context.Context, idx int, reportErr func(error)) error {
	own := s.deques[idx]
	backoff := time.Microsecond
	const maxBackoff = 4 * time.Millisecond

	for {
		if atomic.LoadInt64(&s.remaining) == 0 {
			s.status.setWorker(idx, "idle")
			return nil
		}
		if s.isCancelled() {
			s.drainToSkipped(own)
			s.status.setWorker(idx, "canceled")
			return nil
		}

		n, ok := own.popBottom()
		if !ok {
			n, ok = s.stealFrom(idx)
		}
		if !ok {
			if s.parkOrBackoff(ctx, &backoff, maxBackoff) {
				continue
			}
			return nil
		}
		backoff = time.Microsecond

		s.status.setWorker(idx, "building "+n.Target.GetId())
		ev := trace.Event("action "+n.Target.GetId(), idx)

		runErr := s.runner.Run(ctx, n)

		ev.Done()

		result := n.Result()
		status := graph.StatusSuccess
		if result != nil && result.CacheHit {
			status = graph.StatusCached
		}
		if runErr != nil {
			status = graph.StatusFailed
			if !s.keepGoing {
				reportErr(runErr)
			}
		}
		_ = s.graph.Mark(n, status)

		newlyReady := s.graph.Propagate(n)
		for _, r := range newlyReady {
			s.markReadyToRunning(r)
			own.pushBottom(r)
		}

		s.recomputeRemaining()
		s.status.setSummary(s.summaryLine())
		s.wake()

		if runErr != nil && !s.keepGoing {
			s.Cancel()
		}
	}
}

func (s *Scheduler) recomputeRemaining() {
	n := countNonTerminal(s.graph.AllNodes())
	atomic.StoreInt64(&s.remaining, int64(n))
}

func (s *Scheduler) summaryLine() string {
	all := s.graph.AllNodes()
	var succeeded, failed, cached, skipped, pending int
	for _, n := range all {
		switch n.Status() {
		case graph.StatusSuccess:
			succeeded++
		case graph.StatusFailed:
			failed++
		case graph.StatusCached:
			cached++
		case graph.StatusSkipped:
			skipped++
		default:
			pending++
		}
	}
	return fmtSummary(succeeded, failed, cached, skipped, pending, len(all))
}

func fmtSummary(succeeded, failed, cached, skipped, pending, total int) string {
	return "built " + itoa(succeeded+cached) + "/" + itoa(total) +
		" (failed " + itoa(failed) + ", skipped " + itoa(skipped) + ", pending " + itoa(pending) + ")"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// stealFrom attempts one steal from a randomly chosen victim other than
// idx. Returns false if the victim's deque was empty or the steal lost a
// race (the caller backs off and retries a different victim next time).
func (s *Scheduler) stealFrom(idx int) (*graph.BuildNode, bool) {
	if s.jobs <= 1 {
		return nil, false
	}
	victim := rand.Intn(s.jobs - 1)
	if victim >= idx {
		victim++
	}
	return s.deques[victim].steal()
}

// parkOrBackoff waits briefly (exponential backoff, capped) before the
// caller retries a steal; if every deque has stayed empty for a full
// backoff window, it parks on the scheduler's condition variable until any
// worker makes progress (graph.Propagate enqueues new work) or the
// scheduler wakes it for cancellation/termination. Always returns true;
// the caller's loop does its own termination and cancellation checks.
func (s *Scheduler) parkOrBackoff(ctx context.Context, backoff *time.Duration, max time.Duration) bool {
	if s.allEmpty() {
		s.cond.L.Lock()
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
			case <-time.After(*backoff):
			}
			close(done)
			s.wake()
		}()
		s.cond.Wait()
		s.cond.L.Unlock()
		<-done
		if *backoff < max {
			*backoff *= 2
		}
		return true
	}
	time.Sleep(*backoff)
	if *backoff < max {
		*backoff *= 2
	}
	return true
}

func (s *Scheduler) allEmpty() bool {
	for _, d := range s.deques {
		if !d.empty() {
			return false
		}
	}
	return true
}

// drainToSkipped marks every node still owned by own as skipped, per
// spec.md §4.6's cancellation contract ("workers drain the ready set to
// skipped").
func (s *Scheduler) drainToSkipped(own *deque) {
	for {
		n, ok := own.popBottom()
		if !ok {
			return
		}
		_ = s.graph.Mark(n, graph.StatusSkipped)
	}
}
