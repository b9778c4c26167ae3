package arbiter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valentinerf/valentine-rf/internal/arbiter"
)

func TestCommandEnumeratorMergesSuccessfulProbes(t *testing.T) {
	t.Parallel()
	probes := []arbiter.Probe{
		{Kind: "rtlsdr", Command: []string{"lsusb"}, Parse: func(string) []arbiter.Device {
			return []arbiter.Device{{ID: arbiter.DeviceID{Kind: "rtlsdr", Index: 0}, Label: "dongle"}}
		}},
		{Kind: "wifi-nic", Command: []string{"iw", "dev"}, Parse: func(string) []arbiter.Device {
			return []arbiter.Device{{ID: arbiter.DeviceID{Kind: "wifi-nic", Index: 0}, Label: "wlan0"}}
		}},
	}
	e := arbiter.NewCommandEnumerator(probes).WithRunner(func(context.Context, []string) (string, error) {
		return "irrelevant output", nil
	})

	devices, advisory := e.Enumerate()
	assert.Empty(t, advisory)
	assert.Len(t, devices, 2)
}

func TestCommandEnumeratorNeverFailsHardOnAProbeError(t *testing.T) {
	t.Parallel()
	probes := []arbiter.Probe{
		{Kind: "rtlsdr", Command: []string{"lsusb"}, Parse: func(string) []arbiter.Device {
			return []arbiter.Device{{ID: arbiter.DeviceID{Kind: "rtlsdr", Index: 0}}}
		}},
		{Kind: "hci", Command: []string{"hcitool", "dev"}, Parse: func(string) []arbiter.Device { return nil }},
	}
	e := arbiter.NewCommandEnumerator(probes).WithRunner(func(_ context.Context, argv []string) (string, error) {
		if argv[0] == "hcitool" {
			return "", errors.New("hcitool: command not found")
		}
		return "ok", nil
	})

	devices, advisory := e.Enumerate()
	assert.Len(t, devices, 1)
	assert.Contains(t, advisory, "hci")
}

func TestParseLsusbRTLSDRCountsMatchingLines(t *testing.T) {
	t.Parallel()
	output := "Bus 001 Device 002: ID 0bda:2838 Realtek Semiconductor Corp. RTL2838 DVB-T\n" +
		"Bus 001 Device 003: ID 1d6b:0002 Linux Foundation 2.0 root hub\n"
	devices := arbiter.DefaultProbes()[0].Parse(output)
	assert.Len(t, devices, 1)
	assert.Equal(t, arbiter.DeviceID{Kind: "rtlsdr", Index: 0}, devices[0].ID)
}

func TestParseHcitoolDevExtractsIndices(t *testing.T) {
	t.Parallel()
	output := "Devices:\n\thci0\tAA:BB:CC:DD:EE:FF\n"
	devices := arbiter.DefaultProbes()[1].Parse(output)
	assert.Len(t, devices, 1)
	assert.Equal(t, arbiter.DeviceID{Kind: "hci", Index: 0}, devices[0].ID)
}

func TestParseIwDevExtractsInterfaceNames(t *testing.T) {
	t.Parallel()
	output := "phy#0\n\tInterface wlan0\n\t\ttype managed\n"
	devices := arbiter.DefaultProbes()[2].Parse(output)
	assert.Len(t, devices, 1)
	assert.Equal(t, "wlan0", devices[0].Label)
}
