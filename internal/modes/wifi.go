package modes

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/valentinerf/valentine-rf/internal/arbiter"
	"github.com/valentinerf/valentine-rf/internal/bus"
	"github.com/valentinerf/valentine-rf/internal/decoder"
	"github.com/valentinerf/valentine-rf/internal/rferr"
	"github.com/valentinerf/valentine-rf/internal/store"
	"github.com/valentinerf/valentine-rf/internal/supervisor"
	"github.com/valentinerf/valentine-rf/internal/validate"
)

// WifiAP is the canonical record for an observed 802.11 access point.
type WifiAP struct {
	BSSID    string
	ESSID    string
	Channel  string
	Power    *int
	Privacy  string
	Seen     time.Time `hash:"ignore"`
}

func (w WifiAP) LastSeen() time.Time { return w.Seen }

const wifiTTL = 10 * time.Minute

func MergeWifiAP(existing, partial WifiAP, now time.Time) WifiAP {
	merged := existing
	if merged.BSSID == "" {
		merged.BSSID = partial.BSSID
	}
	if partial.ESSID != "" {
		merged.ESSID = partial.ESSID
	}
	if partial.Channel != "" {
		merged.Channel = partial.Channel
	}
	if partial.Power != nil {
		merged.Power = partial.Power
	}
	if partial.Privacy != "" {
		merged.Privacy = partial.Privacy
	}
	merged.Seen = now
	return merged
}

// WifiMode drives airodump-ng, which writes rotating CSV files into a
// working directory rather than emitting anything useful on stdout (spec
// §6). The parser polls the newest CSV snapshot instead of reading a pipe.
type WifiMode struct {
	Store   *store.Store[WifiAP]
	bus     *bus.Bus
	workDir string

	// captureDir is the directory actually scanned for rotated CSVs. It is
	// set by BuildArgv (workDir itself, or workDir/capture_subdir once
	// validated) before ParseStream starts polling, and read by ParseStream
	// alone afterward, so no lock is needed between the two.
	captureDir string
}

// NewWifiMode builds the WiFi mode. workDir must be an allow-listed root
// the process can write rotating capture files into (spec §6 "environment
// and persisted state").
func NewWifiMode(workDir string) *WifiMode {
	return &WifiMode{
		Store:   store.New[WifiAP](wifiTTL, MergeWifiAP),
		bus:     bus.New(),
		workDir: workDir,
	}
}

func (m *WifiMode) ID() string { return "wifi" }

func (m *WifiMode) RequiredTools() []decoder.ToolRequirement {
	return []decoder.ToolRequirement{{Name: "airodump-ng"}}
}

func (m *WifiMode) RequiredDevices() []string { return []string{"wifi-nic"} }

func (m *WifiMode) ValidateParams(params map[string]any) error {
	iface, ok := params["interface"].(string)
	if !ok {
		return rferr.InvalidField("interface", "interface is required")
	}
	if err := validate.InterfaceName("interface", iface); err != nil {
		return err
	}
	if subdir, ok := params["capture_subdir"].(string); ok && subdir != "" {
		if err := validate.FilePath("capture_subdir", subdir, m.workDir); err != nil {
			return err
		}
	}
	return nil
}

func (m *WifiMode) BuildArgv(toolPaths []string, devices []arbiter.Device, params map[string]any) ([][]string, error) {
	iface, _ := params["interface"].(string)

	m.captureDir = m.workDir
	if subdir, ok := params["capture_subdir"].(string); ok && subdir != "" {
		m.captureDir = filepath.Join(m.workDir, subdir)
	}
	if err := os.MkdirAll(m.captureDir, 0o755); err != nil {
		return nil, rferr.Wrap(rferr.Internal, "failed to create capture directory", err)
	}

	prefix := filepath.Join(m.captureDir, "wifi-capture")
	argv := []string{
		toolPaths[0],
		"--write", prefix,
		"--output-format", "csv",
		iface,
	}
	return [][]string{argv}, nil
}

func (m *WifiMode) Bus() *bus.Bus { return m.bus }

func (m *WifiMode) ParseStream(ctx context.Context, r io.Reader, onMessage, onMalformed func()) error {
	if r != nil {
		go supervisor.DrainToDiscard(ctx, r)
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			dir := m.captureDir
			if dir == "" {
				dir = m.workDir
			}
			path, err := latestCaptureCSV(dir)
			if err != nil {
				continue
			}
			recs, err := parseAirodumpCSV(path)
			if err != nil {
				onMalformed()
				continue
			}
			for _, rec := range recs {
				merged, changed := m.Store.UpsertChanged(rec.BSSID, rec, time.Now())
				if !changed {
					continue
				}
				m.bus.Publish(bus.Event{Type: "ap", Data: merged})
				onMessage()
			}
		}
	}
}

// latestCaptureCSV finds the most recently modified "wifi-capture-*.csv" in
// dir, matching airodump-ng's rotating-file naming. Operators sometimes
// archive rotated captures with xz to save space once airodump-ng moves on
// to the next file; a ".csv.xz" sibling is picked up the same way.
func latestCaptureCSV(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var best string
	var bestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "wifi-capture") {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".csv") && !strings.HasSuffix(e.Name(), ".csv.xz") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(bestMod) {
			bestMod = info.ModTime()
			best = filepath.Join(dir, e.Name())
		}
	}
	if best == "" {
		return "", fmt.Errorf("no capture CSV found in %s", dir)
	}
	return best, nil
}

// parseAirodumpCSV reads the access-point section of an airodump-ng CSV
// dump (the file also contains a client section, separated by a blank
// line, which this ignores). A ".xz" suffix is transparently decompressed.
func parseAirodumpCSV(path string) ([]WifiAP, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var src io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".xz") {
		xzReader, err := xz.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("opening xz capture %s: %w", path, err)
		}
		src = xzReader
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var out []WifiAP
	now := time.Now()
	rowNum := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, nil //nolint:nilerr
		}
		rowNum++
		if rowNum <= 1 || len(fields) < 14 {
			continue // header row or client section
		}
		bssid := strings.TrimSpace(fields[0])
		if bssid == "" || bssid == "BSSID" {
			break // reached the client-section header
		}
		rec := WifiAP{BSSID: bssid, Seen: now}
		rec.Channel = strings.TrimSpace(fields[3])
		rec.Privacy = strings.TrimSpace(fields[5])
		if power, err := strconv.Atoi(strings.TrimSpace(fields[8])); err == nil {
			rec.Power = &power
		}
		rec.ESSID = strings.TrimSpace(fields[13])
		out = append(out, rec)
	}
	return out, nil
}
