// Package decoder implements the uniform per-mode decoder lifecycle (spec
// §4.3): idle/starting/running/stopping/crashed, built on top of the
// arbiter, supervisor, tool resolver, and each mode's own store and bus.
package decoder

import (
	"context"
	"io"

	"github.com/valentinerf/valentine-rf/internal/arbiter"
	"github.com/valentinerf/valentine-rf/internal/bus"
)

// ToolRequirement names one external binary a mode needs, e.g. "dump1090"
// or "dump978-fa".
type ToolRequirement struct {
	Name string
}

// Mode is the static, mode-specific behavior the runtime drives. Concrete
// modes (adsb, uat, wifi, …) implement this once per decoder; everything
// about the state machine, device claiming, and process spawning is shared.
type Mode interface {
	// ID is the mode id used in routes and as the arbiter owner id, e.g.
	// "adsb".
	ID() string

	// RequiredTools lists the external binaries this mode needs, in
	// pipeline order (a single element for a non-piped mode).
	RequiredTools() []ToolRequirement

	// RequiredDevices lists the device kinds this mode must claim, e.g.
	// ["rtlsdr"]. Device indices come from params.
	RequiredDevices() []string

	// ValidateParams checks a start request's params against this mode's
	// field rules (spec §4.7). Must return an *rferr.Error with Kind
	// INVALID_INPUT naming the first offending field.
	ValidateParams(params map[string]any) error

	// BuildArgv constructs one argv per pipeline stage (len 1 for a
	// non-piped mode) from validated params, resolved tool paths (aligned
	// with RequiredTools), and claimed devices (aligned with
	// RequiredDevices). Never shells out to a string; every element is a
	// literal argv token.
	BuildArgv(toolPaths []string, devices []arbiter.Device, params map[string]any) ([][]string, error)

	// ParseStream consumes r to EOF, normalizing and merging records into
	// this mode's store and publishing them to its bus. onMessage is
	// called once per successfully parsed record (a file-polling mode that
	// re-reads the same records on every poll, such as wifi, calls it only
	// for records whose merged value changed); onMalformed once per record
	// that failed to parse (spec §4.3 parser task contract). Returns when r
	// reaches EOF or ctx is cancelled.
	ParseStream(ctx context.Context, r io.Reader, onMessage, onMalformed func()) error

	// Bus returns this mode's publish/subscribe bus.
	Bus() *bus.Bus
}
