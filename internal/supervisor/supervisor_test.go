package supervisor_test

import (
	"bufio"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valentinerf/valentine-rf/internal/supervisor"
	"github.com/valentinerf/valentine-rf/internal/testutils/retry"
)

func TestSpawnCapturesStdout(t *testing.T) {
	t.Parallel()
	s := supervisor.New(nil)
	ctx := context.Background()

	h, err := s.Spawn(ctx, []string{"sh", "-c", "echo hello; echo world"}, nil, supervisor.CaptureStdout)
	require.NoError(t, err)

	scanner := bufio.NewScanner(h.Stdout())
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Equal(t, []string{"hello", "world"}, lines)

	exited, waitErr := h.WaitFastFail(time.Second)
	assert.True(t, exited)
	assert.NoError(t, waitErr)
}

func TestSpawnFastFailCapturesStderrTail(t *testing.T) {
	t.Parallel()
	s := supervisor.New(nil)
	ctx := context.Background()

	h, err := s.Spawn(ctx, []string{"sh", "-c", "echo boom 1>&2; exit 7"}, nil, supervisor.CaptureStderr)
	require.NoError(t, err)

	exited, waitErr := h.WaitFastFail(2 * time.Second)
	assert.True(t, exited)
	assert.Error(t, waitErr)
	assert.Contains(t, h.StderrTail(), "boom")
}

func TestSpawnUncapturedStreamsNeverBlockTheChild(t *testing.T) {
	t.Parallel()
	s := supervisor.New(nil)
	ctx := context.Background()

	// Writes 200,000 bytes (more than one pipe buffer) to an uncaptured
	// stdout; if it were a blocking pipe
	// with nobody draining it, this would hang past the fast-fail window.
	h, err := s.Spawn(ctx, []string{"sh", "-c", "yes | head -c 200000"}, nil, supervisor.CaptureNone)
	require.NoError(t, err)

	exited, _ := h.WaitFastFail(2 * time.Second)
	assert.True(t, exited)
}

func TestSpawnPipelineConnectsStages(t *testing.T) {
	t.Parallel()
	s := supervisor.New(nil)
	ctx := context.Background()

	handles, err := s.SpawnPipeline(ctx, [][]string{
		{"sh", "-c", "printf 'a\\nb\\nc\\n'"},
		{"sh", "-c", "tr a-z A-Z"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, handles, 2)

	last := handles[len(handles)-1]
	scanner := bufio.NewScanner(last.Stdout())
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Equal(t, []string{"A", "B", "C"}, lines)
}

func TestTerminateStopsRunningProcess(t *testing.T) {
	t.Parallel()
	s := supervisor.New(nil)
	ctx := context.Background()

	h, err := s.Spawn(ctx, []string{"sleep", "30"}, nil, supervisor.CaptureNone)
	require.NoError(t, err)
	assert.Equal(t, supervisor.StatusRunning, s.Poll(h))

	s.Terminate(h, 500*time.Millisecond)

	// SIGTERM delivery and process reaping are scheduler-dependent under
	// load, so give this a couple of attempts rather than flaking CI.
	retry.Retry(t, 3, 200*time.Millisecond, func(r *retry.R) {
		exited, _ := h.WaitFastFail(time.Second)
		if !exited {
			r.Errorf("process had not exited on attempt %d", r.Attempt)
		}
	})
}

func TestTerminateAllStopsEveryHandle(t *testing.T) {
	t.Parallel()
	s := supervisor.New(nil)
	ctx := context.Background()

	_, err := s.Spawn(ctx, []string{"sleep", "30"}, nil, supervisor.CaptureNone)
	require.NoError(t, err)
	_, err = s.Spawn(ctx, []string{"sleep", "30"}, nil, supervisor.CaptureNone)
	require.NoError(t, err)

	n := s.TerminateAll(500 * time.Millisecond)
	assert.Equal(t, 2, n)
}

func TestPollReportsMissingForNilHandle(t *testing.T) {
	t.Parallel()
	s := supervisor.New(nil)
	assert.Equal(t, supervisor.StatusMissing, s.Poll(nil))
}
