// Package env captures details about the build environment that are
// resolved once at process start, ahead of any per-build configuration
// layering (see internal/config for the rest).
package env

import "os"

// WorkspaceRoot is the root directory of the monorepo workspace being
// built, e.g. where the top-level build-description file lives.
var WorkspaceRoot = findWorkspaceRoot()

func findWorkspaceRoot() string {
	if v := os.Getenv("BUILDER_WORKSPACE_ROOT"); v != "" {
		return v
	}

	// TODO: walk up from cwd looking for the dominating workspace marker.

	return os.ExpandEnv("$HOME/workspace") // default
}
