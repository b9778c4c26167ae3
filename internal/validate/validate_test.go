package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valentinerf/valentine-rf/internal/validate"
)

func TestDeviceIndex(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validate.DeviceIndex("device", 0))
	assert.NoError(t, validate.DeviceIndex("device", 63))
	assert.Error(t, validate.DeviceIndex("device", -1))
	assert.Error(t, validate.DeviceIndex("device", 64))
}

func TestGain(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validate.Gain("gain", "auto"))
	assert.NoError(t, validate.Gain("gain", "40"))
	assert.NoError(t, validate.Gain("gain", "0"))
	assert.NoError(t, validate.Gain("gain", "60"))
	assert.Error(t, validate.Gain("gain", "61"))
	assert.Error(t, validate.Gain("gain", "nonsense"))
}

func TestPPM(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validate.PPM("ppm", -200))
	assert.NoError(t, validate.PPM("ppm", 200))
	assert.Error(t, validate.PPM("ppm", -201))
	assert.Error(t, validate.PPM("ppm", 201))
}

func TestFrequencyHz(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validate.FrequencyHz("freq", 1090000000, 1000000000, 1200000000))
	assert.Error(t, validate.FrequencyHz("freq", 0, 1000000000, 1200000000))
	assert.Error(t, validate.FrequencyHz("freq", 999999999, 1000000000, 1200000000))
}

func TestInterfaceName(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validate.InterfaceName("iface", "wlan0"))
	assert.Error(t, validate.InterfaceName("iface", "0wlan"))
	assert.Error(t, validate.InterfaceName("iface", "wlan;rm -rf"))
	assert.Error(t, validate.InterfaceName("iface", ""))
}

func TestBluetoothInterface(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validate.BluetoothInterface("hci", "hci0"))
	assert.NoError(t, validate.BluetoothInterface("hci", "hci255"))
	assert.Error(t, validate.BluetoothInterface("hci", "hci256"))
	assert.Error(t, validate.BluetoothInterface("hci", "wlan0"))
}

func TestMACAddress(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validate.MACAddress("mac", "aa:bb:cc:dd:ee:ff"))
	assert.Error(t, validate.MACAddress("mac", "not-a-mac"))
	assert.Error(t, validate.MACAddress("mac", "aabbccddeeff"))
}

func TestHostname(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validate.Hostname("host", "localhost"))
	assert.NoError(t, validate.Hostname("host", "rtl-tcp.lan"))
	assert.Error(t, validate.Hostname("host", ""))
	assert.Error(t, validate.Hostname("host", "-bad.example"))
	assert.Error(t, validate.Hostname("host", "has space.example"))
}

func TestFilePathMustStayUnderRoot(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validate.FilePath("path", "captures/run1.csv", "/var/lib/valentine"))
	assert.Error(t, validate.FilePath("path", "../../etc/passwd", "/var/lib/valentine"))
}

func TestShellMetacharactersNeverBypassValidation(t *testing.T) {
	t.Parallel()
	hostile := []string{";", "&", "`", "$(whoami)", "\n"}
	for _, v := range hostile {
		assert.Error(t, validate.InterfaceName("iface", v))
		assert.Error(t, validate.Hostname("host", v))
	}
}
