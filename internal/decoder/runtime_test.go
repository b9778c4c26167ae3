package decoder_test

import (
	"bufio"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valentinerf/valentine-rf/internal/arbiter"
	"github.com/valentinerf/valentine-rf/internal/bus"
	"github.com/valentinerf/valentine-rf/internal/decoder"
	"github.com/valentinerf/valentine-rf/internal/rferr"
	"github.com/valentinerf/valentine-rf/internal/supervisor"
	"github.com/valentinerf/valentine-rf/internal/tools"
)

// fakeMode is a minimal Mode used to exercise the runtime's state machine
// without depending on any real external tool.
type fakeMode struct {
	id       string
	b        *bus.Bus
	received []string
}

func (m *fakeMode) ID() string { return m.id }
func (m *fakeMode) RequiredTools() []decoder.ToolRequirement {
	return []decoder.ToolRequirement{{Name: "sh"}}
}
func (m *fakeMode) RequiredDevices() []string { return []string{"rtlsdr"} }
func (m *fakeMode) ValidateParams(params map[string]any) error {
	if _, ok := params["device"]; !ok {
		return rferr.InvalidField("device", "required")
	}
	return nil
}
func (m *fakeMode) BuildArgv(toolPaths []string, devices []arbiter.Device, params map[string]any) ([][]string, error) {
	return [][]string{{toolPaths[0], "-c", "echo ok; sleep 5"}}, nil
}
func (m *fakeMode) ParseStream(ctx context.Context, r io.Reader, onMessage, onMalformed func()) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.received = append(m.received, scanner.Text())
		onMessage()
	}
	return scanner.Err()
}
func (m *fakeMode) Bus() *bus.Bus { return m.b }

func newTestRuntime(id string) *decoder.Runtime {
	mode := &fakeMode{id: id, b: bus.New()}
	arb := arbiter.New(nil)
	sup := supervisor.New(nil)
	resolver := tools.New(nil)
	return decoder.NewRuntime(mode, arb, sup, resolver, nil, nil)
}

func TestStartTransitionsToRunningAndParsesOutput(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime("adsb")

	res, err := rt.Start(context.Background(), map[string]any{"device": 0})
	require.NoError(t, err)
	assert.Equal(t, "started", res.Status)
	assert.Equal(t, []string{"rtlsdr:0"}, res.Devices)

	time.Sleep(100 * time.Millisecond)
	status := rt.GetStatus()
	assert.True(t, status.Running)
	assert.Equal(t, uint64(1), status.MessagesReceived)

	_, err = rt.Stop()
	require.NoError(t, err)
	assert.False(t, rt.GetStatus().Running)
}

func TestStartRejectsWhenAlreadyRunning(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime("adsb")

	_, err := rt.Start(context.Background(), map[string]any{"device": 0})
	require.NoError(t, err)
	defer rt.Stop() //nolint:errcheck

	_, err = rt.Start(context.Background(), map[string]any{"device": 0})
	require.Error(t, err)
	var rfErr *rferr.Error
	require.ErrorAs(t, err, &rfErr)
	assert.Equal(t, rferr.AlreadyRunning, rfErr.Kind)
}

func TestStartRejectsInvalidParams(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime("adsb")

	_, err := rt.Start(context.Background(), map[string]any{})
	require.Error(t, err)
	var rfErr *rferr.Error
	require.ErrorAs(t, err, &rfErr)
	assert.Equal(t, rferr.InvalidInput, rfErr.Kind)
}

func TestStopIsIdempotentOnIdleMode(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime("adsb")

	res, err := rt.Stop()
	require.NoError(t, err)
	assert.Equal(t, "stopped", res.Status)
}

func TestSecondModeIsRefusedTheSameDevice(t *testing.T) {
	t.Parallel()
	arb := arbiter.New(nil)
	sup := supervisor.New(nil)
	resolver := tools.New(nil)

	rt1 := decoder.NewRuntime(&fakeMode{id: "adsb", b: bus.New()}, arb, sup, resolver, nil, nil)
	rt2 := decoder.NewRuntime(&fakeMode{id: "uat", b: bus.New()}, arb, sup, resolver, nil, nil)

	_, err := rt1.Start(context.Background(), map[string]any{"device": 0})
	require.NoError(t, err)
	defer rt1.Stop() //nolint:errcheck

	_, err = rt2.Start(context.Background(), map[string]any{"device": 0})
	require.Error(t, err)
	var rfErr *rferr.Error
	require.ErrorAs(t, err, &rfErr)
	assert.Equal(t, rferr.DeviceBusy, rfErr.Kind)
}
