// Package remote implements the optional remote cache transport
// (spec.md §4.3, §6): a gRPC service fronting another builder's local
// action cache, so a probe/insert/blob-fetch can consult shared compute.
// Grounded on distri's cmd/distri/builder.go remote-build gRPC server
// (grpc.NewServer, streaming Store/Build RPCs, status/codes error
// mapping) and cmd/distri/build.go's grpc.DialContext client pattern.
package remote

import (
	"bytes"
	"context"
	"io"

	"github.com/distr1/builder/internal/hash"
	"github.com/distr1/builder/pb"
	legacyproto "github.com/golang/protobuf/proto"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
)

// Client adapts a RemoteCacheClient into cache.RemoteTransport.
type Client struct {
	rc RemoteCacheClient
}

// Dial connects to a remote cache server at addr. Mirrors
// grpc.DialContext(ctx, remote, grpc.WithInsecure(), grpc.WithBlock())
// from cmd/distri/build.go; a future iteration should add transport
// credentials once remote caches cross a trust boundary.
func Dial(ctx context.Context, addr string) (*Client, *grpc.ClientConn, error) {
	conn, err := grpc.DialContext(ctx, addr, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return nil, nil, xerrors.Errorf("remote cache: dial %s: %w", addr, err)
	}
	return &Client{rc: NewRemoteCacheClient(conn)}, conn, nil
}

func (c *Client) Probe(ctx context.Context, key hash.Digest) (*pb.CacheEntry, bool, error) {
	resp, err := c.rc.Probe(ctx, &ProbeRequest{ActionKey: key.String()})
	if err != nil {
		return nil, false, err
	}
	if !resp.GetFound() {
		return nil, false, nil
	}
	var entry pb.CacheEntry
	if err := legacyproto.Unmarshal(resp.GetEntry(), &entry); err != nil {
		return nil, false, xerrors.Errorf("remote cache: decoding entry: %w", err)
	}
	return &entry, true, nil
}

func (c *Client) Insert(ctx context.Context, key hash.Digest, entry *pb.CacheEntry) error {
	b, err := legacyproto.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = c.rc.Insert(ctx, &InsertRequest{ActionKey: key.String(), Entry: b})
	return err
}

const blobChunkSize = 1 << 20 // 1 MiB

func (c *Client) GetBlob(ctx context.Context, digest hash.Digest) ([]byte, error) {
	stream, err := c.rc.GetBlob(ctx, &GetBlobRequest{Digest: digest.String()})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		buf.Write(chunk.GetChunk())
	}
	return buf.Bytes(), nil
}

// PutBlob uploads raw bytes under digest, used by the server side when
// proxying an insert, or by a peer builder pushing directly.
func (c *Client) PutBlob(ctx context.Context, digest hash.Digest, raw []byte) error {
	stream, err := c.rc.PutBlob(ctx)
	if err != nil {
		return err
	}
	first := true
	for off := 0; off < len(raw) || first; off += blobChunkSize {
		end := off + blobChunkSize
		if end > len(raw) {
			end = len(raw)
		}
		chunk := &BlobChunk{Chunk: raw[off:end]}
		if first {
			chunk.Digest = digest.String()
			first = false
		}
		if err := stream.Send(chunk); err != nil {
			return err
		}
		if end == len(raw) {
			break
		}
	}
	_, err = stream.CloseAndRecv()
	return err
}
