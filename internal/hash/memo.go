package hash

import (
	"container/list"
	"os"
	"sync"
	"time"

	"golang.org/x/xerrors"
)

// fileKey is the filesystem metadata fast-path check: if size, mtime, and
// inode are unchanged since the last hash, the memoized digest is reused
// without re-reading file contents (spec.md §4.1).
type fileKey struct {
	size  int64
	mtime time.Time
	inode uint64
}

type memoEntry struct {
	path string
	key  fileKey
	dig  Digest
	elem *list.Element
}

// Hasher is a thread-safe, metadata-memoized file hasher bounded by an LRU
// eviction policy, as required by spec.md §4.1. The zero value is not
// usable; construct with NewHasher.
type Hasher struct {
	maxEntries int

	mu    sync.RWMutex
	byPath map[string]*memoEntry
	lru    *list.List // front = most recently used
}

// NewHasher returns a Hasher bounded to at most maxEntries memoized files.
// A non-positive maxEntries means unbounded.
func NewHasher(maxEntries int) *Hasher {
	return &Hasher{
		maxEntries: maxEntries,
		byPath:     make(map[string]*memoEntry),
		lru:        list.New(),
	}
}

func statKey(fi os.FileInfo) fileKey {
	return fileKey{
		size:  fi.Size(),
		mtime: fi.ModTime(),
		inode: inodeOf(fi),
	}
}

// HashFile returns the content digest of path, consulting the metadata
// memo first. On a metadata match the cached digest is returned without
// reading the file; on a mismatch (or first sight) the file is re-hashed
// and the memo updated.
func (h *Hasher) HashFile(path string) (Digest, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Digest{}, xerrors.Errorf("hash: %w: %v", ErrFileNotFound, err)
		}
		return Digest{}, xerrors.Errorf("hash: %w: %v", ErrIO, err)
	}
	key := statKey(fi)

	h.mu.RLock()
	if e, ok := h.byPath[path]; ok && e.key == key {
		d := e.dig
		h.mu.RUnlock()
		h.touch(path)
		return d, nil
	}
	h.mu.RUnlock()

	d, err := HashFile(path)
	if err != nil {
		return Digest{}, err
	}

	if err := h.store(path, key, d); err != nil {
		return Digest{}, err
	}
	return d, nil
}

func (h *Hasher) touch(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.byPath[path]; ok {
		h.lru.MoveToFront(e.elem)
	}
}

func (h *Hasher) store(path string, key fileKey, d Digest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.byPath[path]; ok {
		e.key = key
		e.dig = d
		h.lru.MoveToFront(e.elem)
		return nil
	}

	if h.maxEntries > 0 && len(h.byPath) >= h.maxEntries {
		if !h.evictLocked() {
			return xerrors.Errorf("hash: %w: floor=%d", ErrHashCapacityExceeded, h.maxEntries)
		}
	}

	e := &memoEntry{path: path, key: key, dig: d}
	e.elem = h.lru.PushFront(e)
	h.byPath[path] = e
	return nil
}

// evictLocked removes the least-recently-used entry. h.mu must be held for
// writing. Returns false if there is nothing left to evict.
func (h *Hasher) evictLocked() bool {
	back := h.lru.Back()
	if back == nil {
		return false
	}
	e := back.Value.(*memoEntry)
	h.lru.Remove(back)
	delete(h.byPath, e.path)
	return true
}

// Len returns the number of memoized entries, for tests and diagnostics.
func (h *Hasher) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byPath)
}

// Forget drops the memoized digest for path, if any. Used when a caller
// knows a file changed out of band (e.g. sandbox teardown rewriting an
// output in place).
func (h *Hasher) Forget(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.byPath[path]; ok {
		h.lru.Remove(e.elem)
		delete(h.byPath, path)
	}
}
