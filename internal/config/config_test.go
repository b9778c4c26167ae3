package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valentinerf/valentine-rf/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()
	cfg, err := config.Default()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestHTTPValidateRejectsBadPort(t *testing.T) {
	t.Parallel()
	h := config.HTTP{ListenAddr: "0.0.0.0", Port: 0}
	assert.ErrorIs(t, h.Validate(), config.ErrInvalidHTTPPort)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	t.Parallel()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.LogLevel = "nonsense"
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidLogLevel)
}
