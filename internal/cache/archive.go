package cache

import (
	"archive/tar"
	"os"
	"path/filepath"
	"time"

	"github.com/distr1/builder/internal/hash"
	"github.com/klauspost/pgzip"
)

// archiveEvicted writes a tar.gz record of the blobs Sweep is about to
// remove, so an operator can recover recently-evicted outputs without
// re-running the build. Uses pgzip rather than compress/gzip so a sweep
// over a large number of evicted blobs compresses on multiple cores
// instead of serializing behind a single gzip stream, matching distri's
// own use of klauspost/pgzip for bulk archive writes.
func (ac *ActionCache) archiveEvicted(evicted []hash.Digest) error {
	if len(evicted) == 0 {
		return nil
	}
	archiveDir := filepath.Join(ac.root, "evicted")
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return err
	}
	name := filepath.Join(archiveDir, "sweep-"+time.Now().UTC().Format("20060102-150405")+".tar.gz")
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()

	gw, err := pgzip.NewWriterLevel(f, pgzip.DefaultCompression)
	if err != nil {
		return err
	}
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, d := range evicted {
		raw, err := ac.blobs.Get(d)
		if err != nil {
			continue // already gone or corrupt; nothing to archive
		}
		hdr := &tar.Header{Name: d.String(), Mode: 0444, Size: int64(len(raw))}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(raw); err != nil {
			return err
		}
	}
	return nil
}
