// Package validate implements the centralized field validators of spec
// §4.7. Every mode declares the fields it accepts; validation always runs
// before any device claim or process spawn, and no validated value is ever
// concatenated into a shell string — callers pass validated values straight
// into argv slices.
package validate

import (
	"net"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/valentinerf/valentine-rf/internal/rferr"
)

var (
	ifaceNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,14}$`)
	hciRe       = regexp.MustCompile(`^hci([0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])$`)
)

// DeviceIndex validates a 0..63 SDR/device index.
func DeviceIndex(field string, v int) error {
	if v < 0 || v > 63 {
		return rferr.InvalidField(field, "device index must be between 0 and 63")
	}
	return nil
}

// Gain validates a gain string: a number in [0, 60] or the literal "auto".
func Gain(field, v string) error {
	if v == "auto" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return rferr.InvalidField(field, "gain must be a number in [0, 60] or \"auto\"")
	}
	if f < 0 || f > 60 {
		return rferr.InvalidField(field, "gain must be in [0, 60]")
	}
	return nil
}

// PPM validates a frequency-correction value in [-200, 200].
func PPM(field string, v int) error {
	if v < -200 || v > 200 {
		return rferr.InvalidField(field, "ppm must be between -200 and 200")
	}
	return nil
}

// FrequencyHz validates a positive frequency within the given inclusive
// band. Callers pass the tool-specific permitted band.
func FrequencyHz(field string, v, min, max int64) error {
	if v <= 0 {
		return rferr.InvalidField(field, "frequency must be positive")
	}
	if v < min || v > max {
		return rferr.InvalidField(field, "frequency out of the permitted band for this tool")
	}
	return nil
}

// InterfaceName validates a network interface name like "wlan0".
func InterfaceName(field, v string) error {
	if !ifaceNameRe.MatchString(v) {
		return rferr.InvalidField(field, "interface name must match [A-Za-z][A-Za-z0-9_-]{0,14}")
	}
	return nil
}

// BluetoothInterface validates an hciN interface name, N in 0..255.
func BluetoothInterface(field, v string) error {
	if !hciRe.MatchString(v) {
		return rferr.InvalidField(field, "bluetooth interface must match hci0..hci255")
	}
	return nil
}

// MACAddress validates a canonical colon-hex MAC address.
func MACAddress(field, v string) error {
	if _, err := net.ParseMAC(v); err != nil || !strings.Contains(v, ":") {
		return rferr.InvalidField(field, "MAC address must be canonical colon-hex")
	}
	return nil
}

// Hostname validates a DNS-safe hostname label, max 253 chars.
func Hostname(field, v string) error {
	if v == "" || len(v) > 253 {
		return rferr.InvalidField(field, "hostname must be 1-253 characters")
	}
	for _, label := range strings.Split(v, ".") {
		if !isDNSLabel(label) {
			return rferr.InvalidField(field, "hostname must consist of DNS-safe labels")
		}
	}
	return nil
}

func isDNSLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	for i, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' && i != 0 && i != len(label)-1:
		default:
			return false
		}
	}
	return true
}

// FilePath validates that v resolves to a path under root (spec §4.7 "must
// resolve under an allow-listed root"). Symlink-aware callers should resolve
// before calling; this performs a lexical containment check on the cleaned,
// absolute form.
func FilePath(field, v, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return rferr.InvalidField(field, "allow-listed root is not resolvable")
	}
	absPath, err := filepath.Abs(filepath.Join(root, v))
	if err != nil {
		return rferr.InvalidField(field, "path is not resolvable")
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return rferr.InvalidField(field, "path must resolve under the allow-listed root")
	}
	return nil
}
