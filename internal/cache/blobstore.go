package cache

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/distr1/builder/internal/hash"
	"github.com/google/renameio"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/xerrors"
)

// blobStore is the content-addressed plane of the cache: digest → bytes,
// stored zstd-compressed under blobs/<first-2-hex>/<digest>. Grounded on
// distri's internal/squashfs writer (content-addressed, single-writer
// immutable files) adapted from a filesystem-image format to a flat
// blob layout, and on distri's use of renameio for atomic on-disk writes
// elsewhere in the repo.
type blobStore struct {
	root string

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newBlobStore(root string) (*blobStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs"), 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(root, "tmp"), 0755); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &blobStore{root: root, encoder: enc, decoder: dec}, nil
}

func (bs *blobStore) path(d hash.Digest) string {
	hex := d.String()
	return filepath.Join(bs.root, "blobs", hex[:2], hex)
}

// Has reports whether a blob for d is present on disk.
func (bs *blobStore) Has(d hash.Digest) bool {
	_, err := os.Stat(bs.path(d))
	return err == nil
}

// Put writes raw bytes under their digest, compressed, atomically via
// rename-into-place (renameio), matching the "write blobs first, then
// the index entry" insert discipline of §4.3.
func (bs *blobStore) Put(d hash.Digest, raw []byte) error {
	dst := bs.path(d)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return xerrors.Errorf("blobstore: mkdir: %w", err)
	}
	if bs.Verify(d) == nil {
		return nil // already present and intact; blobs are content-addressed
	}
	t, err := renameio.TempFile(filepath.Join(bs.root, "tmp"), dst)
	if err != nil {
		return xerrors.Errorf("blobstore: TempFile: %w", err)
	}
	defer t.Cleanup()

	compressed := bs.encoder.EncodeAll(raw, nil)
	if _, err := t.Write(compressed); err != nil {
		return xerrors.Errorf("blobstore: write: %w", err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return xerrors.Errorf("blobstore: commit: %w", err)
	}
	return nil
}

// Get reads and decompresses the blob for d, verifying it re-hashes to d
// (integrity check per invariant 3: every referenced output blob exists
// and re-hashes to its recorded digest).
func (bs *blobStore) Get(d hash.Digest) ([]byte, error) {
	compressed, err := os.ReadFile(bs.path(d))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobMissing
		}
		return nil, xerrors.Errorf("blobstore: read: %w", err)
	}
	raw, err := bs.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, xerrors.Errorf("blobstore: decode %s: %w", d, err)
	}
	if got := hash.HashBytes(raw); got != d {
		return nil, xerrors.Errorf("%w: blob %s re-hashes to %s", ErrBlobCorrupt, d, got)
	}
	return raw, nil
}

// Verify reads, decompresses and re-hashes the blob for d through Get,
// discarding the bytes; used by ActionCache.Verify, by Probe's sampled
// check, and by Put to decide whether an existing blob can be kept.
func (bs *blobStore) Verify(d hash.Digest) error {
	_, err := bs.Get(d)
	return err
}

// Remove deletes the blob for d. Used by the sweep to collect orphans
// and by eviction to drop the blobs of evicted entries.
func (bs *blobStore) Remove(d hash.Digest) error {
	err := os.Remove(bs.path(d))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Walk visits every blob digest currently on disk, used by the sweep to
// find orphans (blobs with no referencing index entry).
func (bs *blobStore) Walk(fn func(hash.Digest)) error {
	blobs := filepath.Join(bs.root, "blobs")
	entries, err := os.ReadDir(blobs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, shard := range entries {
		if !shard.IsDir() {
			continue
		}
		shardDir := filepath.Join(blobs, shard.Name())
		files, err := os.ReadDir(shardDir)
		if err != nil {
			return err
		}
		for _, f := range files {
			d, err := hash.ParseDigest(f.Name())
			if err != nil {
				continue // not one of ours; ignore
			}
			fn(d)
		}
	}
	return nil
}

// CopyTo writes the decompressed content of d to w. The whole blob is
// read and verified in memory through Get before anything is written.
func (bs *blobStore) CopyTo(d hash.Digest, w io.Writer) error {
	raw, err := bs.Get(d)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, bytes.NewReader(raw))
	return err
}

var (
	ErrBlobMissing = xerrors.New("cache: referenced blob missing")
	ErrBlobCorrupt = xerrors.New("cache: blob failed integrity verification")
)
