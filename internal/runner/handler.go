package runner

import (
	"context"

	"github.com/distr1/builder/pb"
)

// LanguageHandler is the per-language plug-in the core consults to turn a
// Target into one or more ActionSpecs and to report the tool versions that
// feed ActionKey computation. Per-language implementations live outside
// the execution core (spec.md §1's "deliberately out of scope" list); the
// core only ever sees this interface.
type LanguageHandler interface {
	// BuildSpecs returns the action(s) needed to build target.
	BuildSpecs(ctx context.Context, target *pb.Target) ([]*pb.ActionSpec, error)

	// ToolVersions reports the compiler/linker/interpreter versions this
	// handler depends on, folded into every ActionKey it produces.
	ToolVersions(ctx context.Context) (map[string]string, error)

	// Discover is consulted after a successful action execution for
	// handlers whose targets can extend the graph dynamically (e.g. a
	// C++ compile discovering transitively-included headers). Handlers
	// that never discover new work return (nil, nil).
	Discover(ctx context.Context, target *pb.Target, spec *pb.ActionSpec) (*pb.DiscoveryMetadata, error)
}
