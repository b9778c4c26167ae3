package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSensorReading(t *testing.T) {
	t.Parallel()
	raw := map[string]any{
		"model":         "Acurite-Tower",
		"id":            float64(1234),
		"channel":       "A",
		"temperature_C": 21.5,
		"humidity":      float64(55),
		"battery_ok":    float64(1),
	}
	rec, ok := normalizeSensorReading(raw)
	require.True(t, ok)
	assert.Equal(t, "Acurite-Tower:1234:A", rec.Key)
	require.NotNil(t, rec.TemperatureC)
	assert.InDelta(t, 21.5, *rec.TemperatureC, 0.001)
	require.NotNil(t, rec.BatteryOK)
	assert.True(t, *rec.BatteryOK)
}

func TestNormalizeSensorReadingRejectsMissingModel(t *testing.T) {
	t.Parallel()
	_, ok := normalizeSensorReading(map[string]any{"id": "1"})
	assert.False(t, ok)
}
