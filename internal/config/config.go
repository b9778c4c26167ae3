// Package config holds the typed configuration for the core. Turning
// flags/environment variables into a *Config is the job of the external
// config layer (spec.md §1, §6); this package only defines the shape and
// validates it, mirroring the teacher's per-concern nested-struct approach.
package config

import (
	"time"

	"github.com/USA-RedDragon/configulator"
)

// Config is the root configuration for the core.
type Config struct {
	HTTP     HTTP     `json:"http" yaml:"http"`
	Metrics  Metrics  `json:"metrics" yaml:"metrics"`
	PProf    PProf    `json:"pprof" yaml:"pprof"`
	Tools    Tools    `json:"tools" yaml:"tools"`
	Devices  Devices  `json:"devices" yaml:"devices"`
	LogLevel LogLevel `json:"log_level" yaml:"log_level" default:"info"`
	// WorkDir is the directory decoders that write files (capture CSVs,
	// recording NDJSON) are given as their working directory.
	WorkDir string `json:"work_dir" yaml:"work_dir" default:"/var/lib/valentine-rf"`
	Debug   bool   `json:"debug" yaml:"debug"`
}

// HTTP configures the control-plane listener.
type HTTP struct {
	ListenAddr     string   `json:"listen_addr" yaml:"listen_addr" default:"0.0.0.0"`
	Port           int      `json:"port" yaml:"port" default:"8080"`
	CORSHosts      []string `json:"cors_hosts" yaml:"cors_hosts"`
	TrustedProxies []string `json:"trusted_proxies" yaml:"trusted_proxies"`
	// KeepAliveInterval is how often SSE streams emit a synthetic keep-alive
	// record (spec §4.5).
	KeepAliveInterval time.Duration `json:"keep_alive_interval" yaml:"keep_alive_interval" default:"15s"`
}

// Metrics configures the Prometheus metrics listener.
type Metrics struct {
	Enabled bool   `json:"enabled" yaml:"enabled" default:"true"`
	Bind    string `json:"bind" yaml:"bind" default:"127.0.0.1"`
	Port    int    `json:"port" yaml:"port" default:"9100"`
}

// PProf configures the diagnostic pprof listener.
type PProf struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Bind    string `json:"bind" yaml:"bind" default:"127.0.0.1"`
	Port    int    `json:"port" yaml:"port" default:"6060"`
}

// Tools configures where the core looks for external decoder binaries.
type Tools struct {
	// SearchPath is an ordered list of directories searched for each mode's
	// required binaries, in addition to $PATH.
	SearchPath []string `json:"search_path" yaml:"search_path"`
}

// Devices configures hardware enumeration behavior.
type Devices struct {
	// EnumerateOnStart runs an extra best-effort hardware scan when the app
	// starts running. The periodic device rescan job already scans once when
	// it is registered, whatever this is set to.
	EnumerateOnStart bool `json:"enumerate_on_start" yaml:"enumerate_on_start" default:"true"`
}

// LogLevel is the minimum level logged by the process.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Load builds a Config from the environment via configulator, applying
// struct-tag defaults and then validating the result.
func Load() (*Config, error) {
	cfg, err := configulator.New[Config]().Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config populated purely from struct-tag defaults, used
// by tests that don't want to touch the environment.
func Default() (*Config, error) {
	cfg, err := configulator.New[Config]().Default()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
