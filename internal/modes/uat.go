package modes

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/valentinerf/valentine-rf/internal/arbiter"
	"github.com/valentinerf/valentine-rf/internal/bus"
	"github.com/valentinerf/valentine-rf/internal/decoder"
	"github.com/valentinerf/valentine-rf/internal/rferr"
	"github.com/valentinerf/valentine-rf/internal/store"
)

// uatJSONRecord is the subset of uat2json's per-message shape this mode
// cares about.
type uatJSONRecord struct {
	Address      string   `json:"address"`
	Callsign     string   `json:"callsign"`
	AltitudeFt   *int     `json:"altitude"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
	GroundSpeed  *int     `json:"ground_speed"`
	TrackHeading *int     `json:"track"`
	Squawk       string   `json:"squawk"`
}

// UatMode drives the dump978-fa | uat2json pipeline (spec §2 "pipelined
// pairs"), publishing into the *same* aircraft store and bus the ADS-B mode
// uses, tagged source="uat" (spec §3/§4.4: "1090 ES and UAT both publish
// into the ADS-B store").
type UatMode struct {
	Store *store.Store[Aircraft]
	bus   *bus.Bus
}

// NewUatMode builds the UAT mode sharing adsb's store and bus.
func NewUatMode(adsb *AdsbMode) *UatMode {
	return &UatMode{Store: adsb.Store, bus: adsb.bus}
}

func (m *UatMode) ID() string { return "uat" }

func (m *UatMode) RequiredTools() []decoder.ToolRequirement {
	return []decoder.ToolRequirement{{Name: "dump978-fa"}, {Name: "uat2json"}}
}

func (m *UatMode) RequiredDevices() []string { return []string{"rtlsdr"} }

func (m *UatMode) ValidateParams(params map[string]any) error {
	return nil
}

func (m *UatMode) BuildArgv(toolPaths []string, devices []arbiter.Device, params map[string]any) ([][]string, error) {
	if len(devices) != 1 {
		return nil, rferr.New(rferr.Internal, "uat requires exactly one device")
	}
	if len(toolPaths) != 2 {
		return nil, rferr.New(rferr.Internal, "uat requires dump978-fa and uat2json")
	}
	dump978 := []string{
		toolPaths[0],
		"--sdr", "driver=rtlsdr,serial=" + deviceSerial(devices[0]),
		"--raw",
	}
	uat2json := []string{toolPaths[1]}
	return [][]string{dump978, uat2json}, nil
}

func (m *UatMode) Bus() *bus.Bus { return m.bus }

func (m *UatMode) ParseStream(ctx context.Context, r io.Reader, onMessage, onMalformed func()) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var raw uatJSONRecord
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil || raw.Address == "" {
			onMalformed()
			continue
		}
		rec := Aircraft{
			ICAO:            raw.Address,
			Callsign:        raw.Callsign,
			AltitudeFt:      raw.AltitudeFt,
			Lat:             raw.Lat,
			Lon:             raw.Lon,
			SpeedKt:         raw.GroundSpeed,
			HeadingDeg:      raw.TrackHeading,
			Squawk:          raw.Squawk,
			Source:          "uat",
		}
		merged, changed := m.Store.UpsertChanged(rec.ICAO, rec, time.Now())
		if changed {
			m.bus.Publish(bus.Event{Type: "aircraft", Data: merged})
		}
		onMessage()
	}
	return scanner.Err()
}

func deviceSerial(d arbiter.Device) string {
	if d.Label != "" {
		return d.Label
	}
	return "0"
}
