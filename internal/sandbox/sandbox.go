// Package sandbox implements the hermetic execution contract (component
// B): a scoped execution environment that enforces I/O boundaries and
// lets the caller detect determinism violations, per spec.md §4.2.
package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/distr1/builder/internal/hash"
	"golang.org/x/xerrors"
)

// NetworkPolicy controls what network access, if any, a sandboxed action
// gets.
type NetworkPolicy int

const (
	Hermetic NetworkPolicy = iota // no network
	Loopback                      // loopback only
	AllowList                     // an explicit allow-list of destinations
)

// Mount is one read-only input, writable output, or scratch-temp path
// exposed inside the sandbox.
type Mount struct {
	// HostPath is the path outside the sandbox.
	HostPath string
	// SandboxPath is where it appears inside the sandbox. Relative to the
	// sandbox root.
	SandboxPath string
}

// ResourceLimits bounds what a sandboxed process may consume.
type ResourceLimits struct {
	CPUTime  time.Duration
	WallTime time.Duration
	MemoryBytes uint64
	MaxOpenFDs  uint64
}

// Spec describes a sandbox to be prepared: its I/O boundary (I, O, T in
// spec.md §4.2 notation), network policy, environment, and resource
// limits.
type Spec struct {
	Inputs  []Mount // I
	Outputs []Mount // O
	// Temp is a single scratch directory (T); always created fresh and
	// purged on teardown.
	Temp string

	Network NetworkPolicy
	Env     map[string]string
	Limits  ResourceLimits

	// DeclaredOutputs is the subset of paths under Outputs' sandbox paths
	// that must exist after Run for the action to be considered
	// successful; anything else written under O is a hermeticity
	// violation (spec.md §4.2 invariant 4).
	DeclaredOutputs []string

	// ToolImage, if set, is the path to a cpio archive of a pinned
	// toolchain snapshot (compiler, linker, and their runtime libraries)
	// that gets extracted under the sandbox's "tools/" prefix
	// before Run. Lets a LanguageHandler pin its ToolVersions to an
	// immutable snapshot rather than whatever happens to be on $PATH,
	// satisfying spec.md §3's tool_versions hermeticity requirement at
	// the filesystem level, not just the hash level.
	ToolImage string
}

// toolsPrefix is the sandbox-relative directory ToolImage is extracted
// into.
const toolsPrefix = "tools"

// ErrOverlappingMounts is returned by Prepare when I ∩ O ≠ ∅, violating
// spec.md §4.2 invariant 1.
var ErrOverlappingMounts = xerrors.New("sandbox: input and output sets overlap")

// Violation describes a hermeticity violation observed during or after
// execution — used both for fatal SandboxErrors and for non-fatal
// warnings (undeclared-file-written), per spec.md §4.2's failure
// semantics.
type Violation struct {
	Kind    ViolationKind
	Path    string
	Message string
}

type ViolationKind int

const (
	ViolationUndeclaredInputAccess ViolationKind = iota
	ViolationUndeclaredOutputWritten
	ViolationMissingDeclaredOutput
	ViolationDeterminismWarning
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationUndeclaredInputAccess:
		return "undeclared_input_access"
	case ViolationUndeclaredOutputWritten:
		return "undeclared_output_written"
	case ViolationMissingDeclaredOutput:
		return "missing_declared_output"
	case ViolationDeterminismWarning:
		return "determinism_warning"
	default:
		return "unknown"
	}
}

// Error is returned for the fatal sandbox error kinds from spec.md §7:
// LimitExceeded, UndeclaredInputAccess, UndeclaredOutputWritten. Limit
// exceeded is retryable by policy; the others are fatal per-action.
type Error struct {
	Kind      ErrorKind
	Retryable bool
	Err       error
}

type ErrorKind int

const (
	ErrorLimitExceeded ErrorKind = iota
	ErrorUndeclaredInputAccess
	ErrorUndeclaredOutputWritten
	ErrorMissingDeclaredOutput
	ErrorDeterminismWarning
	ErrorBestEffort
)

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// ExecResult is what Run returns: exit status, resource usage, and
// bounded captured output.
type ExecResult struct {
	ExitCode     int
	UserTime     time.Duration
	SysTime      time.Duration
	MaxRSSBytes  int64
	Stdout       []byte
	Stderr       []byte
	BestEffort   bool // platform fallback was used instead of real isolation
}

// maxCaptured bounds stdout/stderr capture, per spec.md's "bounded"
// execution_metadata requirement.
const maxCaptured = 1 << 20 // 1 MiB

// OutputInfo is what CollectOutputs reports for each declared output.
type OutputInfo struct {
	Digest hash.Digest
	Size   int64
	Mode   os.FileMode
}

// Sandbox is a prepared, scoped execution context. Construct with
// Prepare; always call Teardown, typically via defer immediately after a
// successful Prepare, so it runs on every exit path including panics
// (spec.md §9's RAII-equivalent guard pattern).
type Sandbox struct {
	spec     Spec
	root     string // sandbox root on the host filesystem
	prepared bool
	tornDown bool
}

// Factory constructs sandboxes; exists so the runner and scheduler depend
// on an interface rather than a concrete platform implementation,
// matching spec.md §9's "wrap global state/platform specifics behind an
// interface" guidance.
type Factory interface {
	Prepare(ctx context.Context, spec Spec) (*Sandbox, error)
}

// Validate checks the static invariants Prepare must enforce before doing
// any filesystem work: I ∩ O = ∅.
func (s Spec) Validate() error {
	outputs := make(map[string]bool, len(s.Outputs))
	for _, o := range s.Outputs {
		outputs[filepath.Clean(o.SandboxPath)] = true
	}
	for _, in := range s.Inputs {
		if outputs[filepath.Clean(in.SandboxPath)] {
			return ErrOverlappingMounts
		}
	}
	return nil
}

// OutputPath resolves rel (one of spec.DeclaredOutputs) to its absolute
// path on the host filesystem, so callers can read the raw bytes for
// cache insertion before Teardown removes the sandbox root.
func (sb *Sandbox) OutputPath(rel string) string {
	return filepath.Join(sb.root, rel)
}

// CollectOutputs hashes every declared output and returns its digest,
// size, and mode. A missing declared output is a fatal error per spec.md
// §4.2's failure semantics ("declared-but-missing output → fatal").
func (sb *Sandbox) CollectOutputs() (map[string]OutputInfo, error) {
	out := make(map[string]OutputInfo, len(sb.spec.DeclaredOutputs))
	for _, rel := range sb.spec.DeclaredOutputs {
		abs := filepath.Join(sb.root, rel)
		fi, err := os.Stat(abs)
		if err != nil {
			return nil, &Error{
				Kind: ErrorMissingDeclaredOutput,
				Err:  xerrors.Errorf("sandbox: declared output %q missing: %w", rel, err),
			}
		}
		d, err := hash.HashFile(abs)
		if err != nil {
			return nil, xerrors.Errorf("sandbox: hashing output %q: %w", rel, err)
		}
		out[rel] = OutputInfo{Digest: d, Size: fi.Size(), Mode: fi.Mode()}
	}
	return out, nil
}

// ScanUndeclaredOutputs walks every mount in spec.Outputs (O) and reports
// a ViolationUndeclaredOutputWritten for each regular file present that
// is not one of DeclaredOutputs, per spec.md §4.2 invariant 4. Non-fatal:
// the runner surfaces these as warnings via EventSink.SandboxViolation
// rather than failing the action, matching the Violation/Error split
// above.
func (sb *Sandbox) ScanUndeclaredOutputs() ([]Violation, error) {
	declared := make(map[string]bool, len(sb.spec.DeclaredOutputs))
	for _, rel := range sb.spec.DeclaredOutputs {
		declared[filepath.Clean(rel)] = true
	}

	var violations []Violation
	for _, m := range sb.spec.Outputs {
		base := filepath.Join(sb.root, m.SandboxPath)
		err := filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(sb.root, path)
			if err != nil {
				return err
			}
			rel = filepath.Clean(rel)
			if declared[rel] {
				return nil
			}
			violations = append(violations, Violation{
				Kind:    ViolationUndeclaredOutputWritten,
				Path:    rel,
				Message: "file written under an output mount that was not declared",
			})
			return nil
		})
		if err != nil {
			return nil, xerrors.Errorf("sandbox: scanning output mount %s: %w", m.SandboxPath, err)
		}
	}
	return violations, nil
}
