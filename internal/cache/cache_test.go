package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/distr1/builder/internal/hash"
	"github.com/distr1/builder/pb"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newTestCache(t *testing.T) *ActionCache {
	t.Helper()
	dir := t.TempDir()
	ac, err := New(context.Background(), dir, nil, Policy{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ac.Close)
	return ac
}

func mkEntry(outputs map[string][]byte) (*pb.CacheEntry, map[hash.Digest][]byte) {
	blobs := make(map[hash.Digest][]byte)
	var records []*pb.OutputRecord
	for path, content := range outputs {
		d := hash.HashBytes(content)
		blobs[d] = content
		records = append(records, &pb.OutputRecord{
			RelativePath: path,
			ContentHash:  d.String(),
			Size:         int64(len(content)),
			Mode:         0644,
		})
	}
	return &pb.CacheEntry{Outputs: records, Success: true}, blobs
}

// TestCacheRoundTrip: property 3 — insert then probe yields outputs that
// re-hash to the recorded digests.
func TestCacheRoundTrip(t *testing.T) {
	ac := newTestCache(t)
	key := hash.HashBytes([]byte("action-key-1"))
	entry, blobs := mkEntry(map[string][]byte{"out/bin": []byte("hello world")})

	if err := ac.Insert(context.Background(), key, entry, blobs); err != nil {
		t.Fatal(err)
	}

	got, ok, err := ac.Probe(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got.GetOutputs()) != 1 {
		t.Fatalf("expected 1 output, got %d", len(got.GetOutputs()))
	}
	want := entry.GetOutputs()[0]
	if diff := cmp.Diff(want, got.GetOutputs()[0], cmpopts.IgnoreUnexported(pb.OutputRecord{})); diff != "" {
		t.Fatalf("output record mismatch (-want +got):\n%s", diff)
	}
	d, err := hash.ParseDigest(got.GetOutputs()[0].GetContentHash())
	if err != nil {
		t.Fatal(err)
	}
	raw, err := ac.blobs.Get(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "hello world" {
		t.Fatalf("got %q, want %q", raw, "hello world")
	}
}

func TestCacheProbeMissReturnsNoError(t *testing.T) {
	ac := newTestCache(t)
	_, ok, err := ac.Probe(context.Background(), hash.HashBytes([]byte("nonexistent")))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestCacheMaterializeWritesOutput(t *testing.T) {
	ac := newTestCache(t)
	key := hash.HashBytes([]byte("action-key-2"))
	entry, blobs := mkEntry(map[string][]byte{"bin/tool": []byte("binary-contents")})
	if err := ac.Insert(context.Background(), key, entry, blobs); err != nil {
		t.Fatal(err)
	}

	workspace := t.TempDir()
	if err := ac.Materialize(entry, workspace); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(workspace, "bin/tool"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "binary-contents" {
		t.Fatalf("got %q", got)
	}
}

// TestCacheCorruptionRecovery: S6 — tampering with a blob after a
// successful insert causes the next probe to detect the mismatch, evict
// the entry, and report a miss; a subsequent insert restores a hit.
func TestCacheCorruptionRecovery(t *testing.T) {
	ac := newTestCache(t)
	key := hash.HashBytes([]byte("action-key-3"))
	content := []byte("original content")
	entry, blobs := mkEntry(map[string][]byte{"out/artifact": content})
	if err := ac.Insert(context.Background(), key, entry, blobs); err != nil {
		t.Fatal(err)
	}

	d := hash.HashBytes(content)
	if err := os.WriteFile(ac.blobs.path(d), []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}

	// Force the sampled verification path deterministically by calling
	// Verify directly (Probe's sampling is probabilistic).
	if err := ac.Verify(key); err == nil {
		t.Fatal("expected corruption to be detected by Verify")
	}
	ac.invalidate(key, "test-forced")

	if _, ok, _ := ac.Probe(context.Background(), key); ok {
		t.Fatal("expected miss after invalidation")
	}

	entry2, blobs2 := mkEntry(map[string][]byte{"out/artifact": content})
	if err := ac.Insert(context.Background(), key, entry2, blobs2); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := ac.Probe(context.Background(), key); err != nil || !ok {
		t.Fatalf("expected hit after re-insert, ok=%v err=%v", ok, err)
	}
}

func TestSweepRemovesOrphanBlobs(t *testing.T) {
	ac := newTestCache(t)
	orphan := hash.HashBytes([]byte("never referenced"))
	if err := ac.blobs.Put(orphan, []byte("never referenced")); err != nil {
		t.Fatal(err)
	}
	if err := ac.Sweep(); err != nil {
		t.Fatal(err)
	}
	if ac.blobs.Has(orphan) {
		t.Fatal("expected orphan blob to be swept")
	}
}

func TestTargetCacheNullBuild(t *testing.T) {
	ac := newTestCache(t)
	tc := NewTargetCache(ac)

	keyA := hash.HashBytes([]byte("action-A"))
	keyB := hash.HashBytes([]byte("action-B"))
	entryA, blobsA := mkEntry(map[string][]byte{"a.out": []byte("a")})
	entryB, blobsB := mkEntry(map[string][]byte{"b.out": []byte("b")})
	if err := ac.Insert(context.Background(), keyA, entryA, blobsA); err != nil {
		t.Fatal(err)
	}
	if err := ac.Insert(context.Background(), keyB, entryB, blobsB); err != nil {
		t.Fatal(err)
	}

	entries, ok := tc.ProbeAll(context.Background(), []hash.Digest{keyA, keyB})
	if !ok {
		t.Fatal("expected target-level hit when every action key hits")
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestTargetCacheFallsThroughOnPartialMiss(t *testing.T) {
	ac := newTestCache(t)
	tc := NewTargetCache(ac)
	keyA := hash.HashBytes([]byte("action-A"))
	missing := hash.HashBytes([]byte("never-inserted"))
	entryA, blobsA := mkEntry(map[string][]byte{"a.out": []byte("a")})
	if err := ac.Insert(context.Background(), keyA, entryA, blobsA); err != nil {
		t.Fatal(err)
	}
	if _, ok := tc.ProbeAll(context.Background(), []hash.Digest{keyA, missing}); ok {
		t.Fatal("expected fall-through on partial miss")
	}
}
