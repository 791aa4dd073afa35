package sandbox

import (
	"io"
	"os"
	"path/filepath"

	"github.com/cavaliercoder/go-cpio"
	"golang.org/x/xerrors"
)

// extractToolImage unpacks the cpio archive at imagePath into
// root/tools (files keep the archive's permission bits; directories are
// created 0755), so a sandboxed action can exec a pinned
// toolchain binary without depending on anything installed on the host.
// Grounded on distri's cmd/distri/initrd.go cpio writer/reader pattern,
// here run in reverse (read, not write) since a toolchain snapshot is
// consumed once per sandbox rather than built once per initrd.
func extractToolImage(root, imagePath string) error {
	f, err := os.Open(imagePath)
	if err != nil {
		return xerrors.Errorf("sandbox: opening tool image %s: %w", imagePath, err)
	}
	defer f.Close()

	dst := filepath.Join(root, toolsPrefix)
	if err := os.MkdirAll(dst, 0755); err != nil {
		return xerrors.Errorf("sandbox: preparing tools dir: %w", err)
	}

	r := cpio.NewReader(f)
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Errorf("sandbox: reading tool image %s: %w", imagePath, err)
		}
		target := filepath.Join(dst, hdr.Name)
		mode := os.FileMode(hdr.Mode.Perm())
		switch {
		case hdr.Mode&cpio.ModeDir != 0:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case hdr.Mode&cpio.ModeSymlink != 0:
			link, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := os.Symlink(string(link), target); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, r); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}
