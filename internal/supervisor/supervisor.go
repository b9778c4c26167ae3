// Package supervisor spawns, tracks, and terminates the external decoder
// processes (spec §4.2), including multi-process pipelines
// (dump978-fa | uat2json). Grounded on the teacher's process-lifecycle style
// (internal/dmr/servers instance bookkeeping) and on the reader-goroutine
// discipline shown in the pack's jangala-dev-devicecode-go HAL uart worker
// (every captured pipe gets a dedicated drain goroutine, never a dangling
// buffer).
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Capture selects which of a child's output streams are captured for
// parsing versus routed to the discard sink.
type Capture int

const (
	CaptureNone Capture = iota
	CaptureStdout
	CaptureStderr
	CaptureBoth
)

const (
	defaultFastFailWindow = 2 * time.Second
	defaultGrace          = 2 * time.Second
	stderrTailLimit       = 500 // bytes, per spec §4.2.4
)

// Handle is a supervised child process (or one stage of a pipeline).
type Handle struct {
	ID         uint64
	Argv       []string
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     io.ReadCloser
	stderrTail *tailBuffer
	done       chan struct{}

	mu      sync.Mutex
	exited  bool
	exitErr error
}

// Done returns a channel closed once the process has been reaped, so
// callers can detect an unexpected exit without polling (spec §4.3 "on
// parser error or EOF before stop, emit status=crashed").
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitErr returns the error Wait() returned, valid only after Done() has
// fired.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Stdout returns the captured stdout stream, or nil if stdout wasn't
// captured.
func (h *Handle) Stdout() io.Reader { return h.stdout }

// Stderr returns the captured stderr stream, or nil if stderr wasn't
// captured.
func (h *Handle) Stderr() io.Reader { return h.stderr }

// StderrTail returns up to the last stderrTailLimit bytes seen on stderr,
// used for FAST_FAIL_EXIT / SPAWN_FAILED error messages (spec §4.2.4).
func (h *Handle) StderrTail() string {
	if h.stderrTail == nil {
		return ""
	}
	return h.stderrTail.String()
}

// Status is the non-blocking poll result for a Handle.
type Status int

const (
	StatusRunning Status = iota
	StatusExited
	StatusMissing
)

// tailBuffer keeps only the last N bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if t.buf.Len() > t.limit {
		trimmed := t.buf.Bytes()[t.buf.Len()-t.limit:]
		t.buf.Reset()
		t.buf.Write(trimmed)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

// Supervisor owns the process-wide registry of supervised handles so a
// shutdown hook can terminate orphans (spec §4.2 "Registry").
type Supervisor struct {
	log *slog.Logger

	mu       sync.Mutex
	handles  []*Handle
	byID     map[uint64]*Handle
	nextID   uint64
}

// New builds a Supervisor.
func New(log *slog.Logger) *Supervisor {
	return &Supervisor{
		log:  log,
		byID: make(map[uint64]*Handle),
	}
}

// Spawn starts a single child process in its own process group. Stdin is
// always closed; captured streams are readable from the returned Handle.
// An uncaptured stdout is routed to io.Discard and an uncaptured stderr only
// feeds the stderr tail buffer, so the child can never block on a full pipe
// buffer with nobody reading (spec §4.2.1). Captured stderr also feeds the
// tail buffer as it arrives, whether or not the caller reads it yet.
func (s *Supervisor) Spawn(ctx context.Context, argv []string, env []string, capture Capture) (*Handle, error) {
	if len(argv) == 0 {
		return nil, errors.New("supervisor: empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	cmd.Env = env
	cmd.SysProcAttr = processGroupAttr()

	h := &Handle{Argv: argv, done: make(chan struct{})}
	h.stderrTail = newTailBuffer(stderrTailLimit)

	if capture == CaptureStdout || capture == CaptureBoth {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		h.stdout = pipe
	} else {
		cmd.Stdout = io.Discard
	}

	if capture == CaptureStderr || capture == CaptureBoth {
		pipe, err := cmd.StderrPipe()
		if err != nil {
			return nil, err
		}
		pr, pw := io.Pipe()
		h.stderr = pr
		go func() {
			// The tail is written before the caller's pipe, so it holds
			// the child's stderr even if nobody has read the stream yet.
			_, copyErr := io.Copy(io.MultiWriter(h.stderrTail, pw), pipe)
			pw.CloseWithError(copyErr)
		}()
	} else {
		cmd.Stderr = h.stderrTail
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	h.cmd = cmd

	s.register(h)
	go s.reap(h)

	return h, nil
}

// SpawnPipeline starts N processes, connecting stdout(i) to stdin(i+1). The
// parent closes its own copy of each intermediate stdout immediately after
// the downstream process inherits it, so SIGPIPE/EOF propagates correctly
// when an upstream stage exits (spec §4.2.2).
func (s *Supervisor) SpawnPipeline(ctx context.Context, argvs [][]string, env []string) ([]*Handle, error) {
	if len(argvs) == 0 {
		return nil, errors.New("supervisor: empty pipeline")
	}

	cmds := make([]*exec.Cmd, len(argvs))
	handles := make([]*Handle, len(argvs))
	for i, argv := range argvs {
		if len(argv) == 0 {
			return nil, errors.New("supervisor: empty argv in pipeline")
		}
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
		cmd.Env = env
		cmd.SysProcAttr = processGroupAttr()
		cmds[i] = cmd
		handles[i] = &Handle{Argv: argv, stderrTail: newTailBuffer(stderrTailLimit), done: make(chan struct{})}
		cmd.Stderr = handles[i].stderrTail
	}

	// Wire stdout(i) -> stdin(i+1) for all but the last stage.
	for i := 0; i < len(cmds)-1; i++ {
		pipe, err := cmds[i].StdoutPipe()
		if err != nil {
			return nil, err
		}
		cmds[i+1].Stdin = pipe
	}
	// The last stage's stdout is the pipeline's captured output.
	last := cmds[len(cmds)-1]
	pipe, err := last.StdoutPipe()
	if err != nil {
		return nil, err
	}
	handles[len(handles)-1].stdout = pipe

	// Start downstream-first is unnecessary with os/exec's pipe semantics
	// (the pipe fds are already dup'd into the child at Start time), but we
	// must start every stage before any of them can be considered "up".
	for i, cmd := range cmds {
		if err := cmd.Start(); err != nil {
			// best-effort: kill anything already started
			for j := 0; j < i; j++ {
				_ = cmds[j].Process.Kill()
			}
			return nil, err
		}
		handles[i].cmd = cmd
	}

	for _, h := range handles {
		s.register(h)
		go s.reap(h)
	}

	return handles, nil
}

// Terminate sends a graceful termination signal to the process group, waits
// up to grace, then sends SIGKILL to the group if still alive. The handle is
// reaped and unregistered.
func (s *Supervisor) Terminate(h *Handle, grace time.Duration) {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return
	}
	if grace <= 0 {
		grace = defaultGrace
	}

	pgid := -h.cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)

	select {
	case <-h.done:
	case <-time.After(grace):
		_ = syscall.Kill(pgid, syscall.SIGKILL)
		<-h.done
	}

	s.unregister(h)
}

// TerminateAll terminates every supervised handle in reverse spawn order
// (downstream before upstream for pipelines), per spec §4.2.
func (s *Supervisor) TerminateAll(grace time.Duration) int {
	s.mu.Lock()
	handles := make([]*Handle, len(s.handles))
	copy(handles, s.handles)
	s.mu.Unlock()

	count := 0
	for i := len(handles) - 1; i >= 0; i-- {
		s.Terminate(handles[i], grace)
		count++
	}
	return count
}

// Poll returns the non-blocking status of a handle.
func (s *Supervisor) Poll(h *Handle) Status {
	if h == nil {
		return StatusMissing
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return StatusExited
	}
	return StatusRunning
}

// WaitFastFail blocks for up to window, returning true if the child had
// already exited by then (spec §4.2.4 "fast-fail detection").
func (h *Handle) WaitFastFail(window time.Duration) (exited bool, err error) {
	if window <= 0 {
		window = defaultFastFailWindow
	}
	deadline := time.After(window)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			return false, nil
		case <-ticker.C:
			h.mu.Lock()
			if h.exited {
				err := h.exitErr
				h.mu.Unlock()
				return true, err
			}
			h.mu.Unlock()
		}
	}
}

func (s *Supervisor) register(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h.ID = s.nextID
	s.handles = append(s.handles, h)
	s.byID[h.ID] = h
}

func (s *Supervisor) unregister(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, h.ID)
	for i, cur := range s.handles {
		if cur == h {
			s.handles = append(s.handles[:i], s.handles[i+1:]...)
			break
		}
	}
}

func (s *Supervisor) reap(h *Handle) {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.exited = true
	h.exitErr = err
	h.mu.Unlock()
	close(h.done)
	if s.log != nil {
		s.log.Debug("supervised process exited", "argv", h.Argv, "error", err)
	}
}

// DrainToDiscard pumps a reader to io.Discard, used when a caller needs a
// stream consumed but not parsed (keeps the "no orphaned pipes" invariant
// even for streams the decoder runtime doesn't care about).
func DrainToDiscard(ctx context.Context, r io.Reader) {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := io.Copy(io.Discard, r)
		return err
	})
	_ = g.Wait()
}
