// Package modes wires the concrete decoder modes (adsb, uat, wifi, sensor,
// pager, …) on top of the generic decoder.Mode contract. Each mode owns its
// canonical record type, its Store, and the parser for its tool's wire
// dialect — the core treats every one of these as an opaque stream (spec §6
// "External subprocess interface").
package modes

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valentinerf/valentine-rf/internal/arbiter"
	"github.com/valentinerf/valentine-rf/internal/bus"
	"github.com/valentinerf/valentine-rf/internal/decoder"
	"github.com/valentinerf/valentine-rf/internal/rferr"
	"github.com/valentinerf/valentine-rf/internal/store"
	"github.com/valentinerf/valentine-rf/internal/supervisor"
	"github.com/valentinerf/valentine-rf/internal/validate"
)

// Aircraft is the canonical ADS-B/UAT record shape (spec §4.4).
type Aircraft struct {
	ICAO            string
	Callsign        string
	Registration    string
	TypeCode        string
	AltitudeFt      *int
	SpeedKt         *int
	HeadingDeg      *int
	VerticalRateFpm *int
	Squawk          string
	Lat             *float64
	Lon             *float64
	Source          string // "1090" | "uat"
	Seen            time.Time `hash:"ignore"`
}

// LastSeen implements store.Record.
func (a Aircraft) LastSeen() time.Time { return a.Seen }

const aircraftTTL = 5 * time.Minute

// MergeAircraft overlays partial onto existing: new non-zero fields win,
// omitted fields are carried over (spec §4.4 "merge by field").
func MergeAircraft(existing, partial Aircraft, now time.Time) Aircraft {
	merged := existing
	if merged.ICAO == "" {
		merged.ICAO = partial.ICAO
	}
	if partial.Callsign != "" {
		merged.Callsign = partial.Callsign
	}
	if partial.Registration != "" {
		merged.Registration = partial.Registration
	}
	if partial.TypeCode != "" {
		merged.TypeCode = partial.TypeCode
	}
	if partial.AltitudeFt != nil {
		merged.AltitudeFt = partial.AltitudeFt
	}
	if partial.SpeedKt != nil {
		merged.SpeedKt = partial.SpeedKt
	}
	if partial.HeadingDeg != nil {
		merged.HeadingDeg = partial.HeadingDeg
	}
	if partial.VerticalRateFpm != nil {
		merged.VerticalRateFpm = partial.VerticalRateFpm
	}
	if partial.Squawk != "" {
		merged.Squawk = partial.Squawk
	}
	if partial.Lat != nil {
		merged.Lat = partial.Lat
	}
	if partial.Lon != nil {
		merged.Lon = partial.Lon
	}
	if partial.Source != "" {
		merged.Source = partial.Source
	}
	merged.Seen = now
	return merged
}

// AdsbMode drives dump1090, which exposes a local SBS-over-TCP port whose
// messages are comma-separated (spec §6). dump1090's own stdout/stderr
// carry only human-readable logs, so the parser dials the SBS port directly
// instead of reading the captured pipe; the pipe is still drained so the
// process can never block on it (spec §4.2 "no orphaned pipes").
type AdsbMode struct {
	Store *store.Store[Aircraft]
	bus   *bus.Bus

	mu   sync.Mutex
	port int
}

// NewAdsbMode builds the ADS-B mode with its own store and bus.
func NewAdsbMode() *AdsbMode {
	return &AdsbMode{
		Store: store.New[Aircraft](aircraftTTL, MergeAircraft),
		bus:   bus.New(),
	}
}

func (m *AdsbMode) ID() string { return "adsb" }

func (m *AdsbMode) RequiredTools() []decoder.ToolRequirement {
	return []decoder.ToolRequirement{{Name: "dump1090"}}
}

func (m *AdsbMode) RequiredDevices() []string { return []string{"rtlsdr"} }

func (m *AdsbMode) ValidateParams(params map[string]any) error {
	if v, ok := params["gain"]; ok {
		s, ok := v.(string)
		if !ok {
			return rferr.InvalidField("gain", "gain must be a string")
		}
		if err := validate.Gain("gain", s); err != nil {
			return err
		}
	}
	if v, ok := params["ppm"]; ok {
		i, ok := v.(int)
		if !ok {
			if f, ok2 := v.(float64); ok2 {
				i = int(f)
			} else {
				return rferr.InvalidField("ppm", "ppm must be an integer")
			}
		}
		if err := validate.PPM("ppm", i); err != nil {
			return err
		}
	}
	return nil
}

func (m *AdsbMode) BuildArgv(toolPaths []string, devices []arbiter.Device, params map[string]any) ([][]string, error) {
	if len(devices) != 1 {
		return nil, rferr.New(rferr.Internal, "adsb requires exactly one device")
	}
	m.mu.Lock()
	m.port = 30003 + devices[0].ID.Index
	port := m.port
	m.mu.Unlock()

	argv := []string{
		toolPaths[0],
		"--device-index", strconv.Itoa(devices[0].ID.Index),
		"--net",
		"--net-sbs-port", strconv.Itoa(port),
		"--quiet",
	}
	if gain, ok := params["gain"].(string); ok {
		argv = append(argv, "--gain", gain)
	}
	return [][]string{argv}, nil
}

func (m *AdsbMode) Bus() *bus.Bus { return m.bus }

func (m *AdsbMode) ParseStream(ctx context.Context, r io.Reader, onMessage, onMalformed func()) error {
	if r != nil {
		go supervisor.DrainToDiscard(ctx, r)
	}

	m.mu.Lock()
	port := m.port
	m.mu.Unlock()

	var conn net.Conn
	dialDeadline := time.Now().Add(5 * time.Second)
	for {
		var err error
		conn, err = net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			break
		}
		if time.Now().After(dialDeadline) {
			return fmt.Errorf("could not connect to SBS port %d: %w", port, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		rec, ok := parseSBSLine(scanner.Text())
		if !ok {
			onMalformed()
			continue
		}
		merged, changed := m.Store.UpsertChanged(rec.ICAO, rec, time.Now())
		if changed {
			m.bus.Publish(bus.Event{Type: "aircraft", Data: merged})
		}
		onMessage()
	}
	return scanner.Err()
}

// parseSBSLine parses one BaseStation/SBS-1 CSV line, e.g.:
// MSG,3,1,1,A12345,1,2026-02-21,12:34:56.000,2026-02-21,12:34:56.000,N12345,3500,,,40.1234,-74.5678,,,,,,0
func parseSBSLine(line string) (Aircraft, bool) {
	reader := csv.NewReader(strings.NewReader(line))
	fields, err := reader.Read()
	if err != nil || len(fields) < 16 || fields[0] != "MSG" {
		return Aircraft{}, false
	}
	icao := strings.TrimSpace(fields[4])
	if icao == "" {
		return Aircraft{}, false
	}
	rec := Aircraft{ICAO: icao, Source: "1090"}
	if cs := strings.TrimSpace(fields[10]); cs != "" {
		rec.Callsign = cs
	}
	if alt := strings.TrimSpace(fields[11]); alt != "" {
		if v, err := strconv.Atoi(alt); err == nil {
			rec.AltitudeFt = &v
		}
	}
	if lat := strings.TrimSpace(fields[14]); lat != "" {
		if v, err := strconv.ParseFloat(lat, 64); err == nil {
			rec.Lat = &v
		}
	}
	if lon := strings.TrimSpace(fields[15]); lon != "" {
		if v, err := strconv.ParseFloat(lon, 64); err == nil {
			rec.Lon = &v
		}
	}
	return rec, true
}
