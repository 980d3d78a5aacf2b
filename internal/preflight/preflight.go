package preflight

import (
	"context"
	"fmt"

	"vhxdl/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	// Optional results do not block a run when they fail.
	Optional bool
	Detail   string
}

// RunAll executes the local checks for cfg: destination and state
// directories, then external binaries.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Destination directory", cfg.Paths.DestDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		detail := status.Detail
		if status.Available {
			detail = status.Path
			if status.Version != "" {
				detail = fmt.Sprintf("%s (%s)", status.Path, status.Version)
			}
		} else if status.Optional {
			detail += "; a managed build will be installed"
		}
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Optional: status.Optional,
			Detail:   detail,
		})
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
