package decoder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valentinerf/valentine-rf/internal/arbiter"
	"github.com/valentinerf/valentine-rf/internal/bus"
	"github.com/valentinerf/valentine-rf/internal/metrics"
	"github.com/valentinerf/valentine-rf/internal/rferr"
	"github.com/valentinerf/valentine-rf/internal/supervisor"
	"github.com/valentinerf/valentine-rf/internal/tools"
	"github.com/valentinerf/valentine-rf/internal/validate"
)

const (
	defaultFastFailWindow = 2 * time.Second
	defaultStopGrace      = 2 * time.Second
)

// StartResult is the success payload of a start request (spec §4.3).
type StartResult struct {
	Status  string   `json:"status"`
	Devices []string `json:"devices"`
}

// Status is the side-effect-free status payload (spec §4.3 "status
// contract").
type Status struct {
	Running          bool       `json:"running"`
	ActiveDevices    []string   `json:"active_devices"`
	MessagesReceived uint64     `json:"messages_received"`
	MalformedCount   uint64     `json:"malformed_count"`
	LastError        string     `json:"last_error,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	State            string     `json:"state"`
}

// Runtime drives one mode's singleton instance through the lifecycle state
// machine, delegating device ownership to the arbiter and process lifetime
// to the supervisor.
type Runtime struct {
	mode       Mode
	arbiter    *arbiter.Arbiter
	supervisor *supervisor.Supervisor
	resolver   *tools.Resolver
	metrics    *metrics.Metrics
	log        *slog.Logger

	mu               sync.Mutex
	state            State
	devices          []arbiter.DeviceID
	handles          []*supervisor.Handle
	startedAt        time.Time
	messagesReceived atomic.Uint64
	malformedCount   atomic.Uint64
	lastError        string
	cancel           context.CancelFunc
}

// NewRuntime builds a Runtime for one mode. m may be nil to skip metrics
// instrumentation (tests commonly do this).
func NewRuntime(mode Mode, arb *arbiter.Arbiter, sup *supervisor.Supervisor, resolver *tools.Resolver, m *metrics.Metrics, log *slog.Logger) *Runtime {
	return &Runtime{
		mode:       mode,
		arbiter:    arb,
		supervisor: sup,
		resolver:   resolver,
		metrics:    m,
		log:        log,
		state:      StateIdle,
	}
}

// ID returns the mode id this runtime drives.
func (r *Runtime) ID() string { return r.mode.ID() }

// Bus returns this mode's publish/subscribe bus, so the HTTP layer can
// subscribe without needing to know anything else about the mode.
func (r *Runtime) Bus() *bus.Bus { return r.mode.Bus() }

// Start implements spec §4.3's start(mode, params) contract.
func (r *Runtime) Start(ctx context.Context, params map[string]any) (StartResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return StartResult{}, rferr.New(rferr.AlreadyRunning, fmt.Sprintf("mode %q is already %s", r.mode.ID(), r.state))
	}

	if err := r.mode.ValidateParams(params); err != nil {
		return StartResult{}, err
	}

	toolPaths := make([]string, 0, len(r.mode.RequiredTools()))
	for _, req := range r.mode.RequiredTools() {
		path, ok := r.resolver.Resolve(req.Name)
		if !ok {
			return StartResult{}, rferr.New(rferr.ToolMissing, fmt.Sprintf("required tool %q not found", req.Name))
		}
		toolPaths = append(toolPaths, path)
	}

	deviceKinds := r.mode.RequiredDevices()
	claimed := make([]arbiter.DeviceID, 0, len(deviceKinds))
	devices := make([]arbiter.Device, 0, len(deviceKinds))
	releaseClaimed := func() {
		for _, d := range claimed {
			r.arbiter.Release(d, r.mode.ID())
		}
	}
	for _, kind := range deviceKinds {
		idx, err := deviceIndexForKind(params, kind, len(deviceKinds))
		if err != nil {
			releaseClaimed()
			return StartResult{}, err
		}
		id := arbiter.DeviceID{Kind: kind, Index: idx}
		ok, owner := r.arbiter.Claim(id, r.mode.ID())
		if !ok {
			releaseClaimed()
			return StartResult{}, rferr.New(rferr.DeviceBusy, fmt.Sprintf("device %s is claimed by %q", id, owner))
		}
		claimed = append(claimed, id)
		devices = append(devices, arbiter.Device{ID: id})
	}

	argvs, err := r.mode.BuildArgv(toolPaths, devices, params)
	if err != nil {
		releaseClaimed()
		return StartResult{}, err
	}
	if len(argvs) == 0 {
		releaseClaimed()
		return StartResult{}, rferr.New(rferr.Internal, "mode produced no argv")
	}

	r.state = StateStarting

	var handles []*supervisor.Handle
	if len(argvs) == 1 {
		h, spawnErr := r.supervisor.Spawn(ctx, argvs[0], nil, supervisor.CaptureBoth)
		if spawnErr != nil {
			releaseClaimed()
			r.state = StateIdle
			return StartResult{}, rferr.Wrap(rferr.SpawnFailed, "failed to spawn decoder process", spawnErr)
		}
		handles = []*supervisor.Handle{h}
	} else {
		hs, spawnErr := r.supervisor.SpawnPipeline(ctx, argvs, nil)
		if spawnErr != nil {
			releaseClaimed()
			r.state = StateIdle
			return StartResult{}, rferr.Wrap(rferr.SpawnFailed, "failed to spawn decoder pipeline", spawnErr)
		}
		handles = hs
	}

	last := handles[len(handles)-1]
	exited, waitErr := last.WaitFastFail(defaultFastFailWindow)
	if exited {
		tail := last.StderrTail()
		for _, h := range handles {
			r.supervisor.Terminate(h, defaultStopGrace)
		}
		releaseClaimed()
		r.state = StateCrashed
		r.lastError = fmt.Sprintf("exited during startup: %v; stderr: %s", waitErr, tail)
		return StartResult{}, rferr.New(rferr.FastFailExit, r.lastError)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.devices = claimed
	r.handles = handles
	r.startedAt = time.Now()
	r.messagesReceived.Store(0)
	r.malformedCount.Store(0)
	r.lastError = ""
	r.state = StateRunning

	for _, h := range handles {
		if h.Stdout() != nil {
			go r.runParser(runCtx, h)
		}
		if h.Stderr() != nil {
			go supervisor.DrainToDiscard(runCtx, h.Stderr())
		}
	}
	go r.watchForCrash(runCtx, last)

	deviceIDs := make([]string, len(claimed))
	for i, d := range claimed {
		deviceIDs[i] = d.String()
	}
	r.mode.Bus().Publish(bus.Event{Type: "status", Data: map[string]any{"status": "started", "devices": deviceIDs}})
	if r.metrics != nil {
		r.metrics.ActiveDecoders.Inc()
	}

	return StartResult{Status: "started", Devices: deviceIDs}, nil
}

// Stop implements spec §4.3's stop(mode) contract. Idempotent.
func (r *Runtime) Stop() (StartResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateIdle {
		return StartResult{Status: "stopped"}, nil
	}

	r.state = StateStopping
	if r.cancel != nil {
		r.cancel()
	}
	for _, h := range r.handles {
		r.supervisor.Terminate(h, defaultStopGrace)
	}
	for _, d := range r.devices {
		r.arbiter.Release(d, r.mode.ID())
	}
	r.devices = nil
	r.handles = nil
	r.state = StateIdle

	r.mode.Bus().Publish(bus.Event{Type: "status", Data: map[string]any{"status": "stopped"}})
	if r.metrics != nil {
		r.metrics.ActiveDecoders.Dec()
	}
	return StartResult{Status: "stopped"}, nil
}

// GetStatus implements spec §4.3's status(mode) contract, side-effect free.
func (r *Runtime) GetStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	deviceIDs := make([]string, len(r.devices))
	for i, d := range r.devices {
		deviceIDs[i] = d.String()
	}

	var startedAt *time.Time
	if r.state == StateRunning {
		t := r.startedAt
		startedAt = &t
	}

	return Status{
		Running:          r.state == StateRunning,
		ActiveDevices:    deviceIDs,
		MessagesReceived: r.messagesReceived.Load(),
		MalformedCount:   r.malformedCount.Load(),
		LastError:        r.lastError,
		StartedAt:        startedAt,
		State:            r.state.String(),
	}
}

// IsHealthy reports whether this mode's process tree is alive whenever the
// mode claims to be running (spec §4.6 /health contract).
func (r *Runtime) IsHealthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRunning {
		return true
	}
	for _, h := range r.handles {
		if r.supervisor.Poll(h) != supervisor.StatusRunning {
			return false
		}
	}
	return true
}

// ToolAvailability reports whether each of this mode's required external
// binaries is present (spec §4.6 GET /<mode>/tools).
func (r *Runtime) ToolAvailability() map[string]bool {
	names := make([]string, 0, len(r.mode.RequiredTools()))
	for _, req := range r.mode.RequiredTools() {
		names = append(names, req.Name)
	}
	return r.resolver.Present(names)
}

// LiveProcessCount returns how many supervised handles this mode currently
// has (0 if idle).
func (r *Runtime) LiveProcessCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *Runtime) runParser(ctx context.Context, h *supervisor.Handle) {
	err := r.mode.ParseStream(ctx, h.Stdout(), func() {
		r.messagesReceived.Add(1)
		if r.metrics != nil {
			r.metrics.MessagesReceivedTotal.WithLabelValues(r.mode.ID()).Inc()
		}
	}, func() {
		r.malformedCount.Add(1)
		if r.metrics != nil {
			r.metrics.MalformedRecordsTotal.WithLabelValues(r.mode.ID()).Inc()
		}
	})
	if err != nil && r.log != nil {
		r.log.Debug("parser exited with error", "mode", r.mode.ID(), "error", err)
	}
}

// watchForCrash observes the last pipeline stage's exit. If it exits while
// the mode still believes it's running (i.e. nobody called Stop), this is an
// unrequested crash: spec §4.3 "on parser error or EOF before stop, emit
// status=crashed; transition state to crashed; release devices."
func (r *Runtime) watchForCrash(ctx context.Context, last *supervisor.Handle) {
	select {
	case <-ctx.Done():
		return
	case <-last.Done():
	}

	r.mu.Lock()
	if r.state != StateRunning {
		r.mu.Unlock()
		return
	}
	tail := last.StderrTail()
	r.lastError = fmt.Sprintf("process exited unexpectedly: %v; stderr: %s", last.ExitErr(), tail)
	r.state = StateCrashed
	for _, h := range r.handles {
		r.supervisor.Terminate(h, defaultStopGrace)
	}
	for _, d := range r.devices {
		r.arbiter.Release(d, r.mode.ID())
	}
	r.devices = nil
	r.handles = nil
	r.mu.Unlock()

	r.mode.Bus().Publish(bus.Event{Type: "status", Data: map[string]any{"status": "crashed", "message": r.lastError}})
	if r.metrics != nil {
		r.metrics.DecoderCrashesTotal.WithLabelValues(r.mode.ID()).Inc()
		r.metrics.ActiveDecoders.Dec()
	}
}

// deviceIndexForKind extracts the device index for kind from params. A
// single-device mode reads the "device" key; a multi-device mode reads
// "device_<kind>".
func deviceIndexForKind(params map[string]any, kind string, totalKinds int) (int, error) {
	key := "device"
	if totalKinds > 1 {
		key = "device_" + kind
	}
	raw, present := params[key]
	if !present {
		return 0, rferr.InvalidField(key, "device index is required")
	}
	var idx int
	switch v := raw.(type) {
	case int:
		idx = v
	case float64:
		idx = int(v)
	default:
		return 0, rferr.InvalidField(key, "device index must be a number")
	}
	if err := validate.DeviceIndex(key, idx); err != nil {
		return 0, err
	}
	return idx, nil
}
