// Package graph implements the build graph (component E): a directed
// acyclic graph of BuildNodes with atomic status transitions and a dynamic
// extension API for actions that discover new work at execution time.
//
// Built directly on gonum's directed graph and topological-sort packages,
// the same choice the teacher's own batch scheduler makes for its
// (static, single-shot) package dependency graph.
package graph

import (
	"sync"
	"sync/atomic"

	"github.com/distr1/builder/internal/hash"
	"github.com/distr1/builder/pb"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Status is a BuildNode's position in its lifecycle (spec.md §3).
type Status uint32

const (
	StatusPending Status = iota
	StatusReady
	StatusRunning
	StatusSuccess
	StatusFailed
	StatusCached
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusCached:
		return "cached"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a status from which no further transition
// happens (spec.md invariant 2 refers to "terminal-success"; this also
// covers the terminal-failure statuses for cascading-skip purposes).
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCached, StatusSkipped:
		return true
	default:
		return false
	}
}

// Result is populated on a node reaching a terminal status.
type Result struct {
	Err        error
	CacheHit   bool
	DurationNS int64
}

// BuildNode is the graph's stateful entity (spec.md §3). It implements
// gonum's graph.Node via ID().
type BuildNode struct {
	id int64

	Target     *pb.Target
	ActionSpec *pb.ActionSpec // lazily attached by the language handler

	// ActionKey is set once the runner computes it for this node's own
	// action, so a dependent node's target-cache check (spec.md §4.7 step
	// 1) can fold it into its transitive action-key closure without
	// recomputing it. Zero until then.
	ActionKey hash.Digest

	status  uint32 // atomic, a Status value
	attempt int32  // atomic

	mu     sync.RWMutex
	result *Result
}

func (n *BuildNode) ID() int64 { return n.id }

// Status returns the node's current status via an atomic load, per
// spec.md §5's "reads are lock-free where the status word is word-sized."
func (n *BuildNode) Status() Status {
	return Status(atomic.LoadUint32(&n.status))
}

// Attempt returns the current retry counter.
func (n *BuildNode) Attempt() int {
	return int(atomic.LoadInt32(&n.attempt))
}

// IncrementAttempt bumps the retry counter and returns the new value.
func (n *BuildNode) IncrementAttempt() int {
	return int(atomic.AddInt32(&n.attempt, 1))
}

// Result returns the node's terminal result, if any.
func (n *BuildNode) Result() *Result {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.result
}

// SetResult stores the node's terminal result. Callers should call this
// before calling Graph.Mark with a terminal status, so readers of Result()
// after observing the terminal status via Status() never see a nil
// Result (happens-before via the atomic store in Mark).
func (n *BuildNode) SetResult(r *Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.result = r
}

// legalTransitions enumerates the state machine from spec.md §4.5:
// pending → ready → running → (success | failed | cached); pending,
// ready and running → skipped.
var legalTransitions = map[Status]map[Status]bool{
	StatusPending: {StatusReady: true, StatusSkipped: true},
	StatusReady:   {StatusRunning: true, StatusSkipped: true},
	StatusRunning: {StatusSuccess: true, StatusFailed: true, StatusCached: true, StatusSkipped: true},
}

// Graph is the build graph (component E): a DAG of BuildNodes with
// atomic status transitions, bidirectional edges for O(1) propagation,
// and the dynamic-extension API from spec.md §4.5.
type Graph struct {
	mu         sync.RWMutex
	g          *simple.DirectedGraph
	nextID     int64
	byID       map[int64]*BuildNode
	byTargetID map[string]*BuildNode

	generation uint64 // atomic

	// extensions tracks (discoveringNodeID, childTargetID) pairs already
	// applied, for the idempotency rule in spec.md §4.5 rule 2.
	extensions map[[2]string]bool

	keepGoing bool
}

// New returns an empty build graph.
func New(keepGoing bool) *Graph {
	return &Graph{
		g:          simple.NewDirectedGraph(),
		byID:       make(map[int64]*BuildNode),
		byTargetID: make(map[string]*BuildNode),
		extensions: make(map[[2]string]bool),
		keepGoing:  keepGoing,
	}
}

// Generation returns the graph's current generation counter, bumped on
// every mutation (static add or dynamic extension), per spec.md §3.
func (gr *Graph) Generation() uint64 {
	return atomic.LoadUint64(&gr.generation)
}

func (gr *Graph) bump() uint64 {
	return atomic.AddUint64(&gr.generation, 1)
}

// AddNode adds target as a new pending node and returns it. Not safe to
// call concurrently with AddEdge for the same node until both have
// completed; the graph itself serializes via gr.mu.
func (gr *Graph) AddNode(target *pb.Target) *BuildNode {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	id := gr.nextID
	gr.nextID++
	n := &BuildNode{id: id, Target: target, status: uint32(StatusPending)}
	gr.g.AddNode(n)
	gr.byID[id] = n
	gr.byTargetID[target.GetId()] = n
	gr.bump()
	return n
}

// AddEdge records that `from` depends on `to` (from must wait for to).
// Rejects with a *CycleError if the edge would introduce one, validating
// BEFORE committing as spec.md §4.5 requires.
func (gr *Graph) AddEdge(from, to *BuildNode) error {
	gr.mu.Lock()
	defer gr.mu.Unlock()
	return gr.addEdgeLocked(from, to)
}

func (gr *Graph) addEdgeLocked(from, to *BuildNode) error {
	if from.ID() == to.ID() {
		return nil // self-edges are dropped, matching the teacher's own dedup
	}
	if gr.g.HasEdgeFromTo(from.ID(), to.ID()) {
		return nil // idempotent
	}
	// Incremental cycle check: would adding from->to create a path
	// to->...->from? Walk reachability from `to`.
	if reaches(gr.g, to.ID(), from.ID()) {
		return &CycleError{From: from.Target.GetId(), To: to.Target.GetId()}
	}
	gr.g.SetEdge(gr.g.NewEdge(from, to))
	gr.bump()
	return nil
}

// reaches reports whether there is a path from start to target in g,
// using a plain BFS rather than a full topo.Sort, so AddEdge's check stays
// O(V+E) incremental rather than re-sorting the whole graph per edge.
func reaches(g graph.Directed, start, target int64) bool {
	if start == target {
		return true
	}
	visited := make(map[int64]bool)
	queue := []int64{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if cur == target {
			return true
		}
		it := g.From(cur)
		for it.Next() {
			queue = append(queue, it.Node().ID())
		}
	}
	return false
}

// CycleError reports a static or dynamic cycle, per spec.md §4.5 rule 3 /
// §7's CycleError kind.
type CycleError struct {
	From, To string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + e.From + " -> ... -> " + e.To + " -> " + e.From
}

// Node looks up a node by its gonum-assigned id.
func (gr *Graph) Node(id int64) (*BuildNode, bool) {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	n, ok := gr.byID[id]
	return n, ok
}

// NodeByTargetID looks up a node by its target's workspace-unique label.
func (gr *Graph) NodeByTargetID(targetID string) (*BuildNode, bool) {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	n, ok := gr.byTargetID[targetID]
	return n, ok
}

// Len returns the number of nodes currently in the graph.
func (gr *Graph) Len() int {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	return gr.g.Nodes().Len()
}

// ValidateAcyclic runs a full topological sort and, if the graph (as
// currently constructed) is not a DAG, returns a CycleError whose From
// and To both name one node of the first cyclic component found. Used at
// build start for the static graph; incremental edges already reject
// cycles at AddEdge time, so this is a belt-and-braces check.
func (gr *Graph) ValidateAcyclic() error {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	if _, err := topo.Sort(gr.g); err != nil {
		if uo, ok := err.(topo.Unorderable); ok && len(uo) > 0 && len(uo[0]) > 0 {
			first := uo[0][0].(*BuildNode)
			return &CycleError{From: first.Target.GetId(), To: first.Target.GetId()}
		}
		return err
	}
	return nil
}

// ReadyNodes returns nodes currently pending whose dependencies are all
// terminal-success (success, cached, or skipped-but-keep-going — per
// spec.md invariant 2, a pending node only becomes ready once every
// dependency is success/cached/skipped).
func (gr *Graph) ReadyNodes() []*BuildNode {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	var ready []*BuildNode
	for it := gr.g.Nodes(); it.Next(); {
		n := it.Node().(*BuildNode)
		if n.Status() != StatusPending {
			continue
		}
		if gr.satisfiedLocked(n) {
			ready = append(ready, n)
		}
	}
	return ready
}

func (gr *Graph) satisfiedLocked(n *BuildNode) bool {
	from := gr.g.From(n.ID())
	for from.Next() {
		dep := from.Node().(*BuildNode)
		switch dep.Status() {
		case StatusSuccess, StatusCached:
		case StatusSkipped:
			// A skipped dependency only satisfies readiness in keep-going
			// mode; otherwise the dependent should itself be cascaded to
			// skipped by Propagate, never reach "ready."
			if !gr.keepGoing {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Mark performs an atomic state transition, enforcing the legal-transition
// table from spec.md §4.5. Returns an error if the transition is illegal.
func (gr *Graph) Mark(n *BuildNode, status Status) error {
	for {
		cur := Status(atomic.LoadUint32(&n.status))
		if cur == status {
			return nil // idempotent re-mark
		}
		if !legalTransitions[cur][status] {
			return &IllegalTransitionError{From: cur, To: status}
		}
		if atomic.CompareAndSwapUint32(&n.status, uint32(cur), uint32(status)) {
			return nil
		}
		// lost the race, retry
	}
}

// IllegalTransitionError reports an attempted status transition outside
// the state machine in spec.md §4.5.
type IllegalTransitionError struct {
	From, To Status
}

func (e *IllegalTransitionError) Error() string {
	return "illegal transition " + e.From.String() + " -> " + e.To.String()
}

// Propagate examines n's dependents after a status transition: on
// success/cached, promotes any now-satisfiable dependent to ready; on
// failure, cascades skipped to transitively-dependent nodes unless
// keep-going is active. Returns the set of nodes that became ready, for
// the scheduler to enqueue (with a locality hint towards the worker that
// just finished n).
func (gr *Graph) Propagate(n *BuildNode) (newlyReady []*BuildNode) {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	switch n.Status() {
	case StatusSuccess, StatusCached:
		to := gr.g.To(n.ID())
		for to.Next() {
			dep := to.Node().(*BuildNode)
			if dep.Status() == StatusPending && gr.satisfiedLocked(dep) {
				if err := gr.markLocked(dep, StatusReady); err == nil {
					newlyReady = append(newlyReady, dep)
				}
			}
		}
	case StatusFailed:
		if !gr.keepGoing {
			gr.cascadeSkipLocked(n)
		}
	}
	return newlyReady
}

func (gr *Graph) markLocked(n *BuildNode, status Status) error {
	return gr.Mark(n, status) // Mark is itself lock-free/atomic; locked only to serialize with readers of gr.g above
}

func (gr *Graph) cascadeSkipLocked(failed *BuildNode) {
	to := gr.g.To(failed.ID())
	for to.Next() {
		dep := to.Node().(*BuildNode)
		if dep.Status().Terminal() {
			continue
		}
		// pending/ready/running -> skipped is always legal from pending;
		// from ready it's also legal; running nodes finish naturally and
		// are marked failed/success by their own runner, not skipped out
		// from under them.
		if dep.Status() == StatusRunning {
			continue
		}
		if err := gr.Mark(dep, StatusSkipped); err == nil {
			gr.cascadeSkipLocked(dep)
		}
	}
}

// ShortestPath returns the node ids on a shortest dependency path from a
// to b, per spec.md §4.5's read-only query interface.
func (gr *Graph) ShortestPath(a, b *BuildNode) ([]int64, bool) {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	shortest := path.DijkstraFrom(a, gr.g)
	nodes, _ := shortest.To(b.ID())
	if len(nodes) == 0 {
		return nil, false
	}
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	return ids, true
}

// Dependencies returns n's direct dependencies (nodes n points "From").
func (gr *Graph) Dependencies(n *BuildNode) []*BuildNode {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	var out []*BuildNode
	it := gr.g.From(n.ID())
	for it.Next() {
		out = append(out, it.Node().(*BuildNode))
	}
	return out
}

// ReverseDependencies returns nodes that directly depend on n.
func (gr *Graph) ReverseDependencies(n *BuildNode) []*BuildNode {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	var out []*BuildNode
	it := gr.g.To(n.ID())
	for it.Next() {
		out = append(out, it.Node().(*BuildNode))
	}
	return out
}

// AllNodes returns a snapshot of every node currently in the graph, for
// callers (the scheduler's termination check, tooling) that need to
// enumerate rather than traverse edges.
func (gr *Graph) AllNodes() []*BuildNode {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	out := make([]*BuildNode, 0, len(gr.byID))
	for it := gr.g.Nodes(); it.Next(); {
		out = append(out, it.Node().(*BuildNode))
	}
	return out
}

// FilterByKind returns all nodes whose target kind matches kind.
func (gr *Graph) FilterByKind(kind string) []*BuildNode {
	gr.mu.RLock()
	defer gr.mu.RUnlock()
	var out []*BuildNode
	for it := gr.g.Nodes(); it.Next(); {
		n := it.Node().(*BuildNode)
		if n.Target.GetKind() == kind {
			out = append(out, n)
		}
	}
	return out
}
