package tools_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valentinerf/valentine-rf/internal/tools"
)

func TestResolveFindsBinaryInSearchPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit semantics differ on windows")
	}
	dir := t.TempDir()
	binPath := filepath.Join(dir, "dump1090-fake")
	require.NoError(t, os.WriteFile(binPath, []byte("#!/bin/sh\n"), 0o755))

	r := tools.New([]string{dir})
	path, ok := r.Resolve("dump1090-fake")
	assert.True(t, ok)
	assert.Equal(t, binPath, path)
}

func TestResolveMissingReturnsFalse(t *testing.T) {
	r := tools.New([]string{t.TempDir()})
	_, ok := r.Resolve("definitely-not-a-real-tool-xyz")
	assert.False(t, ok)
}

func TestPresentReportsPerTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "present-tool"), []byte("#!/bin/sh\n"), 0o755))

	r := tools.New([]string{dir})
	result := r.Present([]string{"present-tool", "missing-tool"})
	assert.True(t, result["present-tool"])
	assert.False(t, result["missing-tool"])
}
