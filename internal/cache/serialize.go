package cache

import (
	"github.com/distr1/builder/pb"
	"github.com/golang/protobuf/proto"
)

// marshalCacheEntry/unmarshalCacheEntry wrap the legacy proto.Marshal
// bridge, matching the teacher's own reliance on
// github.com/golang/protobuf/proto for wire encoding (see pb/io.go).
func marshalCacheEntry(e *pb.CacheEntry) ([]byte, error) {
	return proto.Marshal(e)
}

func unmarshalCacheEntry(b []byte, e *pb.CacheEntry) error {
	return proto.Unmarshal(b, e)
}
