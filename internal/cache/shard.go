package cache

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/distr1/builder/internal/hash"
	"github.com/distr1/builder/pb"
	"github.com/google/renameio"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"
)

// numShards partitions the index to keep per-key write serialization
// cheap: writes to unrelated keys never contend, matching §5's "reads
// lock-free; writes serialized per-key" discipline, grounded on distri's
// internal/batch/batch.go use of a keyed mutex for its in-flight map
// adapted here to a fixed-size shard table instead of a single map.
const numShards = 256

// shard owns one slice of the ActionKey space: an in-memory index backed
// by one on-disk record file, guarded by its own mutex so unrelated
// shards never block each other.
type shard struct {
	mu      sync.RWMutex
	entries map[hash.Digest]*pb.CacheEntry
	path    string // index/<shard-hex>.idx

	// probeSF collapses duplicate concurrent probes for the same key
	// within this shard, so a stampede on one hot key never serializes
	// against traffic in unrelated shards.
	probeSF singleflight.Group
}

func shardIndex(key hash.Digest) int {
	return int(key[0])
}

func newShard(root string, i int) (*shard, error) {
	path := filepath.Join(root, "index", shardFilename(i))
	s := &shard{entries: make(map[hash.Digest]*pb.CacheEntry), path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func shardFilename(i int) string {
	const hexdigits = "0123456789abcdef"
	return string([]byte{hexdigits[i/16], hexdigits[i%16]}) + ".idx"
}

// recordMagic identifies the shard index file format, per §6's persistent
// state layout ("magic header {4-byte ident, schema_version}").
var recordMagic = [4]byte{'B', 'C', 'I', 'X'}

const currentSchemaVersion = 1

func (s *shard) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Errorf("shard: open %s: %w", s.path, err)
	}
	defer f.Close()

	var header [8]byte
	if _, err := f.Read(header[:]); err != nil {
		return nil // empty or truncated header: treat as empty shard
	}
	if header[0] != recordMagic[0] || header[1] != recordMagic[1] || header[2] != recordMagic[2] || header[3] != recordMagic[3] {
		return xerrors.Errorf("shard: %s: bad magic", s.path)
	}

	for {
		var lenBuf [4]byte
		n, err := f.Read(lenBuf[:])
		if n == 0 || err != nil {
			break
		}
		length := int(lenBuf[0])<<24 | int(lenBuf[1])<<16 | int(lenBuf[2])<<8 | int(lenBuf[3])
		if length <= hash.Size {
			break
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(f, buf); err != nil {
			break // truncated tail record; ignore rather than fail the whole shard
		}
		var key hash.Digest
		copy(key[:], buf[:hash.Size])
		var entry pb.CacheEntry
		if err := unmarshalCacheEntry(buf[hash.Size:], &entry); err != nil {
			continue // corrupt record; skip it, sweep will reconcile blobs
		}
		s.entries[key] = &entry
	}
	return nil
}

// persist rewrites the whole shard file atomically. Rewriting wholesale
// (rather than appending) keeps load() simple and bounds shard file size
// to live entries only; shards are small (≈1/256th of the working set).
func (s *shard) persist() error {
	tmpDir := filepath.Join(filepath.Dir(filepath.Dir(s.path)), "tmp")
	t, err := renameio.TempFile(tmpDir, s.path)
	if err != nil {
		return xerrors.Errorf("shard: TempFile: %w", err)
	}
	defer t.Cleanup()

	if _, err := t.Write(recordMagic[:]); err != nil {
		return err
	}
	if _, err := t.Write([]byte{0, 0, 0, currentSchemaVersion}); err != nil {
		return err
	}
	for key, entry := range s.entries {
		b, err := marshalCacheEntry(entry)
		if err != nil {
			return err
		}
		rec := make([]byte, 0, 4+hash.Size+len(b))
		length := hash.Size + len(b)
		rec = append(rec, byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
		rec = append(rec, key[:]...)
		rec = append(rec, b...)
		if _, err := t.Write(rec); err != nil {
			return err
		}
	}
	return t.CloseAtomicallyReplace()
}

func (s *shard) get(key hash.Digest) (*pb.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

func (s *shard) set(key hash.Digest, entry *pb.CacheEntry) error {
	s.mu.Lock()
	s.entries[key] = entry
	err := s.persist()
	s.mu.Unlock()
	return err
}

func (s *shard) delete(key hash.Digest) error {
	s.mu.Lock()
	delete(s.entries, key)
	err := s.persist()
	s.mu.Unlock()
	return err
}

func (s *shard) keys() []hash.Digest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]hash.Digest, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	return out
}

func (s *shard) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
