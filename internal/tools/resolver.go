// Package tools resolves the external decoder binaries (dump1090,
// dump978-fa, rtl_433, multimon-ng, airodump-ng, …) against an ordered
// search path, per spec §4.3 step 3: "Resolve tool binary paths from an
// ordered search list; reject with TOOL_MISSING if any required tool is
// absent."
package tools

import (
	"os"
	"path/filepath"
)

// Resolver locates named binaries in a configured, ordered search path
// before falling back to the process's PATH.
type Resolver struct {
	searchPath []string
}

// New builds a Resolver that checks searchPath directories, in order,
// before falling back to the standard PATH lookup.
func New(searchPath []string) *Resolver {
	return &Resolver{searchPath: searchPath}
}

// Resolve returns the absolute path to name, or ok=false if it could not be
// found anywhere in the search path or PATH.
func (r *Resolver) Resolve(name string) (path string, ok bool) {
	for _, dir := range r.searchPath {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && isExecutable(info.Mode()) {
			return candidate, true
		}
	}
	if found, err := lookPath(name); err == nil {
		return found, true
	}
	return "", false
}

// Present reports whether every name in names resolves, without building
// the full path list. Used by GET /<mode>/tools (spec §4.6).
func (r *Resolver) Present(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, name := range names {
		_, ok := r.Resolve(name)
		out[name] = ok
	}
	return out
}

func isExecutable(mode os.FileMode) bool {
	return mode&0o111 != 0
}
