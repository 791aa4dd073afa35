package cache

import (
	"context"

	"github.com/distr1/builder/internal/hash"
	"github.com/distr1/builder/pb"
)

// TargetCache is an optimization layered over ActionCache (component D):
// target-key = H(all action keys required to fully build the target).
// A target-key hit lets the scheduler mark every one of that target's
// actions cached without probing them individually (the S1 null-build
// fast path). Correctness never depends on this layer: any anomaly
// falls through to per-action probing.
type TargetCache struct {
	actions *ActionCache
}

// NewTargetCache wraps an already-open ActionCache.
func NewTargetCache(actions *ActionCache) *TargetCache {
	return &TargetCache{actions: actions}
}

// TargetKey computes H(sorted action keys), matching ActionKey's
// "canonical sort over sets" discipline from spec.md §3.
func TargetKey(actionKeys []hash.Digest) hash.Digest {
	parts := make([]hash.LabeledDigest, len(actionKeys))
	for i, k := range actionKeys {
		parts[i] = hash.LabeledDigest{Label: "action", Digest: k}
	}
	return hash.HashComposite(hash.SortedDigests(parts)...)
}

// ProbeAll reports whether every action key that makes up targetKey
// currently hits in the action cache, returning their entries in the
// same order as actionKeys if so. A false result means the caller must
// fall back to probing individually; it never means the target cannot
// be built.
func (tc *TargetCache) ProbeAll(ctx context.Context, actionKeys []hash.Digest) ([]*pb.CacheEntry, bool) {
	entries := make([]*pb.CacheEntry, len(actionKeys))
	for i, k := range actionKeys {
		e, ok, err := tc.actions.Probe(ctx, k)
		if err != nil || !ok {
			return nil, false
		}
		entries[i] = e
	}
	return entries, true
}
