package modes

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAirodumpCSV = "BSSID, First time seen, Last time seen, channel, Speed, Privacy, Cipher, Authentication, Power, # beacons, # IV, LAN IP, ID-length, ESSID, Key\n" +
	"AA:BB:CC:DD:EE:FF, 2026-02-21 12:00:00, 2026-02-21 12:05:00, 6, 54, WPA2, CCMP, PSK, -45, 120, 0, 0.0.0.0, 8, TestNet, \n" +
	"\n" +
	"Station MAC, First time seen, Last time seen, Power, # packets, BSSID, Probed ESSIDs\n" +
	"11:22:33:44:55:66, 2026-02-21 12:00:00, 2026-02-21 12:05:00, -50, 10, AA:BB:CC:DD:EE:FF, \n"

func TestParseAirodumpCSVExtractsAccessPoints(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "wifi-capture-01.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleAirodumpCSV), 0o644))

	recs, err := parseAirodumpCSV(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", recs[0].BSSID)
	assert.Equal(t, "TestNet", recs[0].ESSID)
	assert.Equal(t, "6", recs[0].Channel)
	require.NotNil(t, recs[0].Power)
	assert.Equal(t, -45, *recs[0].Power)
}

func TestLatestCaptureCSVPicksNewestFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	older := filepath.Join(dir, "wifi-capture-01.csv")
	newer := filepath.Join(dir, "wifi-capture-02.csv")
	require.NoError(t, os.WriteFile(older, []byte(sampleAirodumpCSV), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte(sampleAirodumpCSV), 0o644))
	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, base, base))
	require.NoError(t, os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)))

	found, err := latestCaptureCSV(dir)
	require.NoError(t, err)
	assert.Equal(t, newer, found)
}
