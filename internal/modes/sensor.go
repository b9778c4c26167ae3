package modes

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/valentinerf/valentine-rf/internal/arbiter"
	"github.com/valentinerf/valentine-rf/internal/bus"
	"github.com/valentinerf/valentine-rf/internal/decoder"
	"github.com/valentinerf/valentine-rf/internal/rferr"
	"github.com/valentinerf/valentine-rf/internal/store"
	"github.com/valentinerf/valentine-rf/internal/validate"
)

// SensorReading is the canonical record for rtl_433-decoded ISM-band
// telemetry (weather stations, TPMS, utility meters, …), keyed by the
// tool's own model+id pair since rtl_433 multiplexes many device types on
// one frequency.
type SensorReading struct {
	Key         string
	Model       string
	TemperatureC *float64
	HumidityPct  *float64
	BatteryOK    *bool
	Channel      string
	Raw          map[string]any
	Seen         time.Time `hash:"ignore"`
}

func (s SensorReading) LastSeen() time.Time { return s.Seen }

const sensorTTL = 5 * time.Minute

// MergeSensorReading overlays partial onto existing, same field-overlay
// rule as the aircraft store.
func MergeSensorReading(existing, partial SensorReading, now time.Time) SensorReading {
	merged := existing
	if merged.Key == "" {
		merged.Key = partial.Key
	}
	if partial.Model != "" {
		merged.Model = partial.Model
	}
	if partial.TemperatureC != nil {
		merged.TemperatureC = partial.TemperatureC
	}
	if partial.HumidityPct != nil {
		merged.HumidityPct = partial.HumidityPct
	}
	if partial.BatteryOK != nil {
		merged.BatteryOK = partial.BatteryOK
	}
	if partial.Channel != "" {
		merged.Channel = partial.Channel
	}
	if partial.Raw != nil {
		merged.Raw = partial.Raw
	}
	merged.Seen = now
	return merged
}

// SensorMode drives rtl_433, which emits one JSON object per line on
// stdout (spec §6).
type SensorMode struct {
	Store *store.Store[SensorReading]
	bus   *bus.Bus
}

func NewSensorMode() *SensorMode {
	return &SensorMode{
		Store: store.New[SensorReading](sensorTTL, MergeSensorReading),
		bus:   bus.New(),
	}
}

func (m *SensorMode) ID() string { return "sensor" }

func (m *SensorMode) RequiredTools() []decoder.ToolRequirement {
	return []decoder.ToolRequirement{{Name: "rtl_433"}}
}

func (m *SensorMode) RequiredDevices() []string { return []string{"rtlsdr"} }

func (m *SensorMode) ValidateParams(params map[string]any) error {
	if v, ok := params["freq_hz"]; ok {
		f, ok := toInt64(v)
		if !ok {
			return rferr.InvalidField("freq_hz", "freq_hz must be an integer")
		}
		if err := validate.FrequencyHz("freq_hz", f, 300000000, 1000000000); err != nil {
			return err
		}
	}
	return nil
}

func (m *SensorMode) BuildArgv(toolPaths []string, devices []arbiter.Device, params map[string]any) ([][]string, error) {
	if len(devices) != 1 {
		return nil, rferr.New(rferr.Internal, "sensor requires exactly one device")
	}
	argv := []string{
		toolPaths[0],
		"-d", strconv.Itoa(devices[0].ID.Index),
		"-F", "json",
	}
	if f, ok := toInt64(params["freq_hz"]); ok {
		argv = append(argv, "-f", strconv.FormatInt(f, 10))
	}
	return [][]string{argv}, nil
}

func (m *SensorMode) Bus() *bus.Bus { return m.bus }

func (m *SensorMode) ParseStream(ctx context.Context, r io.Reader, onMessage, onMalformed func()) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var raw map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			onMalformed()
			continue
		}
		rec, ok := normalizeSensorReading(raw)
		if !ok {
			onMalformed()
			continue
		}
		merged, changed := m.Store.UpsertChanged(rec.Key, rec, time.Now())
		if changed {
			m.bus.Publish(bus.Event{Type: "sensor", Data: merged})
		}
		onMessage()
	}
	return scanner.Err()
}

func normalizeSensorReading(raw map[string]any) (SensorReading, bool) {
	model, _ := raw["model"].(string)
	if model == "" {
		return SensorReading{}, false
	}
	id := fmtAny(raw["id"])
	channel := fmtAny(raw["channel"])
	key := model + ":" + id
	if channel != "" {
		key += ":" + channel
	}

	rec := SensorReading{Key: key, Model: model, Channel: channel, Raw: raw}
	if v, ok := raw["temperature_C"].(float64); ok {
		rec.TemperatureC = &v
	}
	if v, ok := raw["humidity"].(float64); ok {
		rec.HumidityPct = &v
	}
	if v, ok := raw["battery_ok"].(float64); ok {
		b := v != 0
		rec.BatteryOK = &b
	}
	return rec, true
}

func fmtAny(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}
