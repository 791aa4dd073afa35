package hash

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashBytesDeterministic(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	if a != b {
		t.Fatalf("HashBytes not deterministic: %v != %v", a, b)
	}
	c := HashBytes([]byte("world"))
	if a == c {
		t.Fatalf("HashBytes collided on different input")
	}
}

func TestHashCompositeLabelPreventsSecondPreimage(t *testing.T) {
	d := HashBytes([]byte("x"))
	a := HashComposite(LabeledDigest{Label: "foo", Digest: d})
	b := HashComposite(LabeledDigest{Label: "bar", Digest: d})
	if a == b {
		t.Fatalf("HashComposite ignored the label: %v == %v", a, b)
	}
}

func TestHashCompositeOrderSensitive(t *testing.T) {
	d1 := HashBytes([]byte("1"))
	d2 := HashBytes([]byte("2"))
	a := HashComposite(LabeledDigest{Label: "a", Digest: d1}, LabeledDigest{Label: "b", Digest: d2})
	b := HashComposite(LabeledDigest{Label: "b", Digest: d2}, LabeledDigest{Label: "a", Digest: d1})
	if a == b {
		t.Fatalf("HashComposite should be order sensitive over what it is given")
	}
}

func TestParseDigestRoundTrip(t *testing.T) {
	d := HashBytes([]byte("roundtrip"))
	got, err := ParseDigest(d.String())
	if err != nil {
		t.Fatal(err)
	}
	if got != d {
		t.Fatalf("ParseDigest(%s) = %v, want %v", d, got, d)
	}
}

func TestParseDigestInvalid(t *testing.T) {
	if _, err := ParseDigest("not-hex"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
	if _, err := ParseDigest("aa"); err == nil {
		t.Fatal("expected error for short digest")
	}
}

func TestHasherMemoizesUntilMetadataChanges(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(fn, []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}

	h := NewHasher(0)
	d1, err := h.HashFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := h.HashFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Fatalf("expected memoized digest to match: %v != %v", d1, d2)
	}
	if h.Len() != 1 {
		t.Fatalf("expected 1 memo entry, got %d", h.Len())
	}

	// Changing content changes mtime/size, invalidating the memo entry.
	if err := os.WriteFile(fn, []byte("version 2, longer"), 0644); err != nil {
		t.Fatal(err)
	}
	d3, err := h.HashFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	if d3 == d1 {
		t.Fatalf("expected digest to change after content changed")
	}
}

func TestHasherHashFileNotFound(t *testing.T) {
	h := NewHasher(0)
	if _, err := h.HashFile("/nonexistent/path/for/test"); err == nil {
		t.Fatal("expected error")
	}
}

func TestHasherLRUEviction(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 4; i++ {
		fn := filepath.Join(dir, string(rune('a'+i)))
		if err := os.WriteFile(fn, []byte{byte(i)}, 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, fn)
	}

	h := NewHasher(2)
	for _, p := range paths[:2] {
		if _, err := h.HashFile(p); err != nil {
			t.Fatal(err)
		}
	}
	if h.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", h.Len())
	}
	// Adding a third entry evicts the least-recently-used (paths[0]).
	if _, err := h.HashFile(paths[2]); err != nil {
		t.Fatal(err)
	}
	if h.Len() != 2 {
		t.Fatalf("expected memo to stay bounded at 2, got %d", h.Len())
	}
}
