package arbiter

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	probeTimeout        = 2 * time.Second
	maxConcurrentProbes = 4
)

// Probe discovers every attached instance of one device kind by running an
// external inventory command and parsing its output. Probes never touch the
// device itself (no open/claim), only list what the OS already sees.
type Probe struct {
	Kind    string
	Command []string
	Parse   func(output string) []Device
}

// CommandEnumerator runs a fixed set of probes concurrently, one per device
// kind (lsusb for SDR dongles, hcitool for Bluetooth adapters, iw for WiFi
// NICs). golang.org/x/sync/semaphore bounds how many probes run at once so a
// slow probe can't starve the others or blow up the process's fd/proc count
// on a host with many device kinds configured.
type CommandEnumerator struct {
	probes []Probe
	sem    *semaphore.Weighted
	runner func(ctx context.Context, argv []string) (string, error)
}

// NewCommandEnumerator builds an enumerator over probes.
func NewCommandEnumerator(probes []Probe) *CommandEnumerator {
	return &CommandEnumerator{
		probes: probes,
		sem:    semaphore.NewWeighted(maxConcurrentProbes),
		runner: runProbeCommand,
	}
}

// WithRunner overrides how probe commands are executed, for tests that want
// to avoid depending on lsusb/hcitool/iw actually being installed.
func (e *CommandEnumerator) WithRunner(runner func(ctx context.Context, argv []string) (string, error)) *CommandEnumerator {
	e.runner = runner
	return e
}

func runProbeCommand(ctx context.Context, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty probe command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.Output()
	return string(out), err
}

// Enumerate runs every probe and merges the results. Per spec §4.1 this
// never fails hard: a probe that errors (tool missing, permission denied)
// just contributes nothing plus an advisory note.
func (e *CommandEnumerator) Enumerate() ([]Device, string) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	type result struct {
		devices []Device
		err     error
	}
	results := make([]result, len(e.probes))
	var wg sync.WaitGroup
	for i, p := range e.probes {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			results[i] = result{err: err}
			continue
		}
		wg.Add(1)
		go func(i int, p Probe) {
			defer wg.Done()
			defer e.sem.Release(1)
			out, err := e.runner(ctx, p.Command)
			if err != nil {
				results[i] = result{err: err}
				return
			}
			results[i] = result{devices: p.Parse(out)}
		}(i, p)
	}
	wg.Wait()

	var all []Device
	var failures []string
	for i, r := range results {
		if r.err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", e.probes[i].Kind, r.err))
			continue
		}
		all = append(all, r.devices...)
	}
	if len(failures) == 0 {
		return all, ""
	}
	return all, strings.Join(failures, "; ")
}

// DefaultProbes returns the stock probe set for the device kinds the
// concrete decoder modes claim (spec §4.1/§6): rtlsdr dongles via lsusb,
// Bluetooth adapters via hcitool, and WiFi NICs via iw.
func DefaultProbes() []Probe {
	return []Probe{
		{Kind: "rtlsdr", Command: []string{"lsusb"}, Parse: parseLsusbRTLSDR},
		{Kind: "hci", Command: []string{"hcitool", "dev"}, Parse: parseHcitoolDev},
		{Kind: "wifi-nic", Command: []string{"iw", "dev"}, Parse: parseIwDev},
	}
}

// parseLsusbRTLSDR counts RTL2832/RTL2838-based dongles from lsusb output,
// one line per device, e.g.:
// Bus 001 Device 004: ID 0bda:2838 Realtek Semiconductor Corp. RTL2838 DVB-T
func parseLsusbRTLSDR(output string) []Device {
	var out []Device
	idx := 0
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "0bda:2838") && !strings.Contains(line, "0bda:2832") {
			continue
		}
		out = append(out, Device{
			ID:    DeviceID{Kind: "rtlsdr", Index: idx},
			Label: strings.TrimSpace(line),
		})
		idx++
	}
	return out
}

// parseHcitoolDev parses `hcitool dev` output, e.g.:
//
//	Devices:
//		hci0	AA:BB:CC:DD:EE:FF
func parseHcitoolDev(output string) []Device {
	var out []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "hci") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		idxStr := strings.TrimPrefix(fields[0], "hci")
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			continue
		}
		label := fields[0]
		if len(fields) > 1 {
			label = fields[0] + " " + fields[1]
		}
		out = append(out, Device{ID: DeviceID{Kind: "hci", Index: idx}, Label: label})
	}
	return out
}

// parseIwDev parses `iw dev` output, extracting each "Interface <name>"
// block's interface name as the device label; the index is assigned in
// discovery order since WiFi NIC device indices are this core's own
// bookkeeping convention, not a kernel-assigned number.
func parseIwDev(output string) []Device {
	var out []Device
	idx := 0
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Interface ") {
			continue
		}
		name := strings.TrimPrefix(line, "Interface ")
		out = append(out, Device{ID: DeviceID{Kind: "wifi-nic", Index: idx}, Label: name})
		idx++
	}
	return out
}
