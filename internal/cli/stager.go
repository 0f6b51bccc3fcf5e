package cli

import (
	"context"
	"fmt"
)

// PackageStager is the narrow seam the `pypi` subcommand delegates to for
// fetching and unpacking a remote package (spec §6: "A remote-package mode
// (external collaborator) stages a downloaded archive into a temporary
// directory, then delegates to the directory scan"). Wiring a real registry
// client is the external package-fetcher's job (spec §1 Non-goals); this
// repo ships only notConfiguredStager so the subcommand fails loudly and
// specifically instead of silently doing nothing.
type PackageStager interface {
	Stage(ctx context.Context, name, version string) (dir string, cleanup func(), err error)
}

type notConfiguredStager struct{}

func (notConfiguredStager) Stage(ctx context.Context, name, version string) (string, func(), error) {
	return "", func() {}, fmt.Errorf("pypi staging is not configured in this build: no PackageStager wired for %q", name)
}
