package graph

import (
	"github.com/distr1/builder/pb"
	"golang.org/x/xerrors"
)

// DynamicDiscoveryError wraps a rejected extension and is returned by
// Extend. Runner.Run logs it as a warning; the discovering action keeps
// its successful result and is not marked failed.
type DynamicDiscoveryError struct {
	Discovering string
	Err         error
}

func (e *DynamicDiscoveryError) Error() string {
	return "dynamic discovery from " + e.Discovering + " rejected: " + e.Err.Error()
}

func (e *DynamicDiscoveryError) Unwrap() error { return e.Err }

// Extend atomically applies a DiscoveryMetadata record emitted by
// discoveringNode's action, per spec.md §4.5:
//
//  1. new nodes may only depend on non-terminal nodes or the extending
//     node itself — edges from a terminal node are rejected (the
//     extension observed a frozen snapshot of graph state);
//  2. re-submitting an already-applied (discoveringNode, childID) pair is
//     a no-op;
//  3. an extension that would introduce a cycle is rejected wholesale
//     (no partial application) with a CycleError wrapped in
//     DynamicDiscoveryError.
//
// On success, Generation is bumped exactly once for the whole extension.
func (gr *Graph) Extend(discoveringNode *BuildNode, meta *pb.DiscoveryMetadata) ([]*BuildNode, error) {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	discoveringID := meta.GetDiscoveringActionId()

	// Resolve / create child nodes for each new target, honoring
	// idempotency: a target id already present in the graph is reused
	// rather than duplicated.
	created := make([]*BuildNode, 0, len(meta.GetNewTargets()))
	childByTargetID := make(map[string]*BuildNode, len(meta.GetNewTargets()))
	for _, t := range meta.GetNewTargets() {
		key := [2]string{discoveringID, t.GetId()}
		if gr.extensions[key] {
			if existing, ok := gr.byTargetID[t.GetId()]; ok {
				childByTargetID[t.GetId()] = existing
			}
			continue // already applied; idempotent no-op
		}
		n, ok := gr.byTargetID[t.GetId()]
		if !ok {
			id := gr.nextID
			gr.nextID++
			n = &BuildNode{id: id, Target: t, status: uint32(StatusPending)}
			gr.g.AddNode(n)
			gr.byID[id] = n
			gr.byTargetID[t.GetId()] = n
			created = append(created, n)
		}
		childByTargetID[t.GetId()] = n
		gr.extensions[key] = true
	}

	// Validate and stage every new edge before committing any of them:
	// an extension that would create a cycle is rejected as a whole, per
	// spec.md §4.5 rule 3.
	type pendingEdge struct{ from, to *BuildNode }
	var staged []pendingEdge
	for _, e := range meta.GetNewEdges() {
		from, ok := gr.resolveEdgeEndpointLocked(e.GetFrom(), discoveringNode, childByTargetID)
		if !ok {
			return nil, &DynamicDiscoveryError{Discovering: discoveringID, Err: xerrors.Errorf("unknown edge endpoint %q", e.GetFrom())}
		}
		to, ok := gr.resolveEdgeEndpointLocked(e.GetTo(), discoveringNode, childByTargetID)
		if !ok {
			return nil, &DynamicDiscoveryError{Discovering: discoveringID, Err: xerrors.Errorf("unknown edge endpoint %q", e.GetTo())}
		}
		// Rule 1: edges from an already-terminal node are prohibited —
		// the extension observed a frozen snapshot, it cannot rewrite
		// what a finished node depends on.
		if from.Status().Terminal() && from.ID() != discoveringNode.ID() {
			return nil, &DynamicDiscoveryError{Discovering: discoveringID, Err: xerrors.Errorf("edge from terminal node %s", from.Target.GetId())}
		}
		staged = append(staged, pendingEdge{from: from, to: to})
	}

	// Commit incrementally, checking each staged edge against the graph as
	// it stands with every earlier edge in this same batch already applied
	// — a batch whose edges only close a cycle jointly (e.g. A->B and B->A
	// staged together) must still be caught. A cycle found partway through
	// rolls back every edge this call already committed, so the rejected
	// extension leaves no partial trace.
	committed := make([]pendingEdge, 0, len(staged))
	for _, e := range staged {
		if e.from.ID() == e.to.ID() || gr.g.HasEdgeFromTo(e.from.ID(), e.to.ID()) {
			continue
		}
		if reaches(gr.g, e.to.ID(), e.from.ID()) {
			for _, c := range committed {
				gr.g.RemoveEdge(c.from.ID(), c.to.ID())
			}
			return nil, &DynamicDiscoveryError{
				Discovering: discoveringID,
				Err:         &CycleError{From: e.from.Target.GetId(), To: e.to.Target.GetId()},
			}
		}
		gr.g.SetEdge(gr.g.NewEdge(e.from, e.to))
		committed = append(committed, e)
	}

	if len(created) > 0 || len(committed) > 0 {
		gr.bump()
	}
	return created, nil
}

func (gr *Graph) resolveEdgeEndpointLocked(targetID string, discovering *BuildNode, fresh map[string]*BuildNode) (*BuildNode, bool) {
	if targetID == discovering.Target.GetId() {
		return discovering, true
	}
	if n, ok := fresh[targetID]; ok {
		return n, true
	}
	if n, ok := gr.byTargetID[targetID]; ok {
		return n, true
	}
	return nil, false
}
