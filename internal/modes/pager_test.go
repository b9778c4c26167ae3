package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMultimonLine(t *testing.T) {
	t.Parallel()
	line := "POCSAG512: Address: 1234567  Function: 3  Alpha:   Hello world"
	rec, ok := parseMultimonLine(line)
	require.True(t, ok)
	assert.Equal(t, "POCSAG512", rec.Protocol)
	assert.Equal(t, "1234567", rec.Address)
	assert.Equal(t, "3", rec.Function)
}

func TestParseMultimonLineRejectsUnrecognized(t *testing.T) {
	t.Parallel()
	_, ok := parseMultimonLine("some unrelated log line")
	assert.False(t, ok)
}
