// Package hash implements the content hasher (component A): deterministic,
// collision-resistant digests over bytes, files, and composite keys.
package hash

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"sort"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/xerrors"
)

// Size is the digest length in bytes (256 bits).
const Size = 32

// Digest is a 256-bit content hash.
type Digest [Size]byte

// String renders the digest as lowercase hex, the same encoding used for
// blob filenames on disk (spec's "blobs/<digest hex>" layout).
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the zero digest (never a valid content hash).
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest decodes a hex-encoded digest, as read back from an index
// record or blob filename.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, xerrors.Errorf("hash: invalid digest %q: %w", s, err)
	}
	if len(b) != Size {
		return d, xerrors.Errorf("hash: invalid digest %q: want %d bytes, got %d", s, Size, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// HashBytes returns the digest of b.
func HashBytes(b []byte) Digest {
	return blake2b.Sum256(b)
}

// HashReader streams r through the hash function without buffering its
// entire contents, for large files.
func HashReader(r io.Reader) (Digest, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return Digest{}, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// HashFile hashes the file at path in one shot, with no memoization. Callers
// on a hot path (e.g. the action runner computing input hashes for many
// files across many actions) should use a *Hasher's memoized HashFile
// instead.
func HashFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Digest{}, xerrors.Errorf("hash: %w: %v", ErrFileNotFound, err)
		}
		return Digest{}, xerrors.Errorf("hash: %w: %v", ErrIO, err)
	}
	defer f.Close()
	d, err := HashReader(f)
	if err != nil {
		return Digest{}, xerrors.Errorf("hash: %w: %v", ErrIO, err)
	}
	return d, nil
}

// LabeledDigest is one element of a composite hash: a label (preventing
// second-preimage attacks across different composition call sites) paired
// with the digest of the labeled part.
type LabeledDigest struct {
	Label  string
	Digest Digest
}

// HashComposite combines an ordered sequence of labeled digests into a
// single digest. Callers are responsible for presenting parts in canonical
// (e.g. sorted) order when the spec calls for set semantics; HashComposite
// itself is order-preserving over whatever it is given.
func HashComposite(parts ...LabeledDigest) Digest {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 with a nil key never errors; guard anyway per
		// project convention of never ignoring error returns.
		panic(err)
	}
	for _, p := range parts {
		io.WriteString(h, p.Label)
		h.Write([]byte{0})
		h.Write(p.Digest[:])
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// SortedDigests returns parts sorted by Label, then by Digest for equal
// labels, for callers that need canonical ordering before composing a
// hash over set-semantics input (spec invariant: "hash derivation uses
// canonical sort to yield a stable byte stream").
func SortedDigests(parts []LabeledDigest) []LabeledDigest {
	out := make([]LabeledDigest, len(parts))
	copy(out, parts)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return bytes.Compare(out[i].Digest[:], out[j].Digest[:]) < 0
	})
	return out
}
