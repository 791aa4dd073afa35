package sandbox

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestSpecValidateRejectsOverlappingMounts(t *testing.T) {
	spec := Spec{
		Inputs:  []Mount{{HostPath: "/src", SandboxPath: "shared"}},
		Outputs: []Mount{{HostPath: "/dst", SandboxPath: "shared"}},
	}
	if err := spec.Validate(); err != ErrOverlappingMounts {
		t.Fatalf("got %v, want ErrOverlappingMounts", err)
	}
}

func TestSpecValidateAllowsDisjointMounts(t *testing.T) {
	spec := Spec{
		Inputs:  []Mount{{HostPath: "/src", SandboxPath: "in"}},
		Outputs: []Mount{{HostPath: "/dst", SandboxPath: "out"}},
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBoundedWriterTruncates(t *testing.T) {
	var buf bytes.Buffer
	bw := boundedWriter{buf: &buf, limit: 8}
	n, err := bw.Write([]byte("0123456789"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Fatalf("Write should report the full length written to the stream, got %d", n)
	}
	if got := buf.Len(); got != 8 {
		t.Fatalf("expected capture bounded to 8 bytes, got %d", got)
	}
}

func TestCollectOutputsMissingDeclaredOutputIsFatal(t *testing.T) {
	root := t.TempDir()
	sb := &Sandbox{
		root: root,
		spec: Spec{DeclaredOutputs: []string{"out/missing.bin"}},
	}
	if _, err := sb.CollectOutputs(); err == nil {
		t.Fatal("expected fatal error for missing declared output")
	} else if serr, ok := err.(*Error); !ok || serr.Kind != ErrorMissingDeclaredOutput {
		t.Fatalf("expected *Error{Kind: ErrorMissingDeclaredOutput}, got %#v", err)
	}
}

func TestScanUndeclaredOutputsFindsExtraFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "out"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "out", "artifact.bin"), []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "out", "stray.tmp"), []byte("oops"), 0644); err != nil {
		t.Fatal(err)
	}

	sb := &Sandbox{
		root: root,
		spec: Spec{
			Outputs:         []Mount{{SandboxPath: "out"}},
			DeclaredOutputs: []string{"out/artifact.bin"},
		},
	}
	violations, err := sb.ScanUndeclaredOutputs()
	if err != nil {
		t.Fatal(err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected exactly one violation, got %#v", violations)
	}
	if violations[0].Kind != ViolationUndeclaredOutputWritten || violations[0].Path != "out/stray.tmp" {
		t.Fatalf("unexpected violation: %#v", violations[0])
	}
}

func TestScanUndeclaredOutputsCleanTreeIsEmpty(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "out"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "out", "artifact.bin"), []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	sb := &Sandbox{
		root: root,
		spec: Spec{
			Outputs:         []Mount{{SandboxPath: "out"}},
			DeclaredOutputs: []string{"out/artifact.bin"},
		},
	}
	violations, err := sb.ScanUndeclaredOutputs()
	if err != nil {
		t.Fatal(err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %#v", violations)
	}
}

func TestCollectOutputsHashesPresentDeclaredOutputs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "out"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "out", "artifact.bin"), []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}
	sb := &Sandbox{
		root: root,
		spec: Spec{DeclaredOutputs: []string{"out/artifact.bin"}},
	}
	outs, err := sb.CollectOutputs()
	if err != nil {
		t.Fatal(err)
	}
	info, ok := outs["out/artifact.bin"]
	if !ok {
		t.Fatal("expected out/artifact.bin in result")
	}
	if info.Size != int64(len("payload")) {
		t.Fatalf("got size %d, want %d", info.Size, len("payload"))
	}
	if info.Digest.IsZero() {
		t.Fatal("expected non-zero digest")
	}
}

func TestTeardownIdempotent(t *testing.T) {
	root := t.TempDir()
	sb := &Sandbox{root: root, prepared: true}
	if err := sb.Teardown(); err != nil {
		t.Fatal(err)
	}
	if err := sb.Teardown(); err != nil {
		t.Fatalf("second Teardown should be a no-op, got %v", err)
	}
}
