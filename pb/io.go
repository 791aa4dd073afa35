package pb

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/golang/protobuf/proto"
)

var bufPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

func readTextproto(path string, m proto.Message) error {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	defer bufPool.Put(b)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(b, f); err != nil {
		return err
	}
	return proto.UnmarshalText(b.String(), m)
}

// ReadTargetFile reads a Target from its textproto representation, as
// produced by the DSL layer normalization step.
func ReadTargetFile(path string) (*Target, error) {
	var t Target
	if err := readTextproto(path, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ReadCacheEntryFile reads a CacheEntry sidecar file, e.g. when debugging
// the on-disk index out of band.
func ReadCacheEntryFile(path string) (*CacheEntry, error) {
	var e CacheEntry
	if err := readTextproto(path, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// WriteTextproto renders m as human-readable textproto. Used for the
// cache index's debug dump and for test fixtures.
func WriteTextproto(m proto.Message) (string, error) {
	return proto.MarshalTextString(m), nil
}
