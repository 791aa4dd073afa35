package remote

import (
	"context"
	"io"

	"github.com/distr1/builder/internal/hash"
	"github.com/distr1/builder/pb"
	legacyproto "github.com/golang/protobuf/proto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Backend is the local storage a Server fronts: another builder's
// ActionCache, accessed through this narrow interface so the remote
// package does not import the cache package; the cache package in turn
// reaches a Client only through its own RemoteTransport interface.
type Backend interface {
	Probe(ctx context.Context, key hash.Digest) (*pb.CacheEntry, bool, error)
	Insert(ctx context.Context, key hash.Digest, entry *pb.CacheEntry, blobs map[hash.Digest][]byte) error
	GetBlobBytes(digest hash.Digest) ([]byte, error)
	PutBlobBytes(digest hash.Digest, raw []byte) error
}

// Server implements RemoteCacheServer over a Backend.
type Server struct {
	UnimplementedRemoteCacheServer
	backend Backend
}

func NewServer(backend Backend) *Server {
	return &Server{backend: backend}
}

func (s *Server) Probe(ctx context.Context, req *ProbeRequest) (*ProbeResponse, error) {
	key, err := hash.ParseDigest(req.GetActionKey())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	entry, ok, err := s.backend.Probe(ctx, key)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	if !ok {
		return &ProbeResponse{Found: false}, nil
	}
	b, err := legacyproto.Marshal(entry)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	return &ProbeResponse{Found: true, Entry: b}, nil
}

func (s *Server) Insert(ctx context.Context, req *InsertRequest) (*InsertResponse, error) {
	key, err := hash.ParseDigest(req.GetActionKey())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	var entry pb.CacheEntry
	if err := legacyproto.Unmarshal(req.GetEntry(), &entry); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	// Blobs for a remote-originated insert are expected to have arrived
	// via prior PutBlob calls; Insert here only commits the index entry.
	if err := s.backend.Insert(ctx, key, &entry, nil); err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	return &InsertResponse{}, nil
}

func (s *Server) GetBlob(req *GetBlobRequest, stream RemoteCache_GetBlobServer) error {
	digest, err := hash.ParseDigest(req.GetDigest())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "%v", err)
	}
	raw, err := s.backend.GetBlobBytes(digest)
	if err != nil {
		return status.Errorf(codes.NotFound, "%v", err)
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
	return nil
}

func (s *Server) PutBlob(stream RemoteCache_PutBlobServer) error {
	var digest hash.Digest
	var raw []byte
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if chunk.GetDigest() != "" {
			d, err := hash.ParseDigest(chunk.GetDigest())
			if err != nil {
				return status.Errorf(codes.InvalidArgument, "%v", err)
			}
			digest = d
		}
		raw = append(raw, chunk.GetChunk()...)
	}
	if got := hash.HashBytes(raw); got != digest {
		return status.Errorf(codes.DataLoss, "uploaded blob re-hashes to %s, want %s", got, digest)
	}
	if err := s.backend.PutBlobBytes(digest, raw); err != nil {
		return status.Errorf(codes.Internal, "%v", err)
	}
	return stream.SendAndClose(&PutBlobResponse{Digest: digest.String()})
}
