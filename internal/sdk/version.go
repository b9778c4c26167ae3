// Package sdk carries build-time version metadata, set via -ldflags by the
// release build (grounded on the teacher's internal/sdk).
package sdk

var (
	// GitCommit is set at build time via -ldflags.
	GitCommit = "dev" //nolint:gochecknoglobals

	// Version of the program.
	Version = "0.1.0" //nolint:gochecknoglobals
)
