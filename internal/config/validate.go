package config

import "errors"

var (
	// ErrInvalidHTTPPort indicates that the provided HTTP port is not valid.
	ErrInvalidHTTPPort = errors.New("invalid HTTP port provided")
	// ErrInvalidHTTPHost indicates that the provided HTTP listen address is not valid.
	ErrInvalidHTTPHost = errors.New("invalid HTTP listen address provided")
	// ErrInvalidMetricsPort indicates that the provided metrics port is not valid.
	ErrInvalidMetricsPort = errors.New("invalid metrics server port provided")
	// ErrInvalidMetricsBindAddress indicates that the provided metrics bind address is not valid.
	ErrInvalidMetricsBindAddress = errors.New("invalid metrics server bind address provided")
	// ErrInvalidPProfPort indicates that the provided pprof port is not valid.
	ErrInvalidPProfPort = errors.New("invalid pprof server port provided")
	// ErrInvalidPProfBindAddress indicates that the provided pprof bind address is not valid.
	ErrInvalidPProfBindAddress = errors.New("invalid pprof server bind address provided")
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrWorkDirRequired indicates that a working directory must be configured.
	ErrWorkDirRequired = errors.New("a work directory is required")
)

// Validate validates the HTTP configuration.
func (h HTTP) Validate() error {
	if h.ListenAddr == "" {
		return ErrInvalidHTTPHost
	}
	if h.Port <= 0 || h.Port > 65535 {
		return ErrInvalidHTTPPort
	}
	return nil
}

// Validate validates the metrics configuration.
func (m Metrics) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Bind == "" {
		return ErrInvalidMetricsBindAddress
	}
	if m.Port <= 0 || m.Port > 65535 {
		return ErrInvalidMetricsPort
	}
	return nil
}

// Validate validates the pprof configuration.
func (p PProf) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.Bind == "" {
		return ErrInvalidPProfBindAddress
	}
	if p.Port <= 0 || p.Port > 65535 {
		return ErrInvalidPProfPort
	}
	return nil
}

// Validate validates the full configuration by delegating to each section.
func (c Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return ErrInvalidLogLevel
	}
	if c.WorkDir == "" {
		return ErrWorkDirRequired
	}
	return nil
}
