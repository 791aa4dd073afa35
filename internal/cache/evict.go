package cache

import (
	"time"

	"github.com/distr1/builder/internal/hash"
	"github.com/distr1/builder/pb"
	"gonum.org/v1/gonum/floats"
)

// Eviction score weights: age dominates, then inverse size, then
// inverse hit count. All three terms raise the score, so older,
// smaller and less-reused entries are evicted first (see
// evictionScore).
const (
	alphaAge      = 1.0
	betaInvSize   = 1_000_000.0 // scale so 1/size is comparable to age in seconds
	gammaInvHits  = 3600.0      // scale so 1/hit_count is comparable to age in seconds
)

type scoredEntry struct {
	key   hash.Digest
	entry *pb.CacheEntry
	score float64
}

// evict orders entries by descending eviction score (highest score =
// most evictable) and removes entries until every policy budget is
// satisfied: age, total bytes, and entry count.
func (ac *ActionCache) evict() error {
	now := time.Now()
	var all []scoredEntry
	var totalBytes int64

	for _, s := range ac.shards {
		for _, k := range s.keys() {
			e, ok := s.get(k)
			if !ok {
				continue
			}
			size := entrySize(e)
			totalBytes += size
			all = append(all, scoredEntry{key: k, entry: e, score: evictionScore(now, e, size)})
		}
	}

	scores := make([]float64, len(all))
	for i, se := range all {
		scores[i] = se.score
	}
	order := make([]int, len(all))
	for i := range order {
		order[i] = i
	}
	// Sort order descending by score using gonum/floats' argsort helper
	// (ascending), then walk it in reverse.
	floats.Argsort(scores, order)

	maxAgeCutoff := now.Add(-ac.policy.MaxAge)
	entryCount := len(all)

	var toEvict []hash.Digest
	for i := len(order) - 1; i >= 0; i-- {
		idx := order[i]
		se := all[idx]

		overAge := ac.policy.MaxAge > 0 && time.Unix(se.entry.GetLastAccessUnix(), 0).Before(maxAgeCutoff)
		overBytes := ac.policy.MaxBytes > 0 && totalBytes > ac.policy.MaxBytes
		overCount := ac.policy.MaxEntries > 0 && entryCount > ac.policy.MaxEntries

		if !overAge && !overBytes && !overCount {
			break
		}

		for _, o := range se.entry.GetOutputs() {
			if d, err := hash.ParseDigest(o.GetContentHash()); err == nil {
				toEvict = append(toEvict, d)
			}
		}
		if err := ac.shardFor(se.key).delete(se.key); err != nil {
			return err
		}
		totalBytes -= entrySize(se.entry)
		entryCount--
	}

	if err := ac.archiveEvicted(toEvict); err != nil {
		ac.log.WithError(err).Warn("archiving evicted blobs failed (non-fatal)")
	}
	for _, d := range toEvict {
		_ = ac.blobs.Remove(d)
	}
	return nil
}

// evictionScore computes S = α·(now−last_access) + β·(1/size) +
// γ·(1/hit_count), as specified in spec.md §4.3. Higher means more
// evictable: older, smaller (less space reclaimed per eviction, so
// weighted up slightly to break ties toward bulk cleanup), and
// less-reused entries score higher.
func evictionScore(now time.Time, e *pb.CacheEntry, size int64) float64 {
	age := now.Sub(time.Unix(e.GetLastAccessUnix(), 0)).Seconds()
	if age < 0 {
		age = 0
	}
	invSize := 0.0
	if size > 0 {
		invSize = betaInvSize / float64(size)
	}
	hits := e.GetHitCount()
	invHits := gammaInvHits
	if hits > 0 {
		invHits = gammaInvHits / float64(hits)
	}
	return alphaAge*age + invSize + invHits
}
