// Package app is the composition root: it owns the wiring between every
// subsystem (device arbiter, supervisor, decoder registry, stores, buses,
// HTTP surface) and the process lifecycle (startup snapshot hydration,
// shutdown snapshot persistence), grounded on the teacher's cmd/root.go
// runRoot/setupShutdownHandlers split between "build the object graph" and
// "run it until told to stop."
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/valentinerf/valentine-rf/internal/arbiter"
	"github.com/valentinerf/valentine-rf/internal/bus"
	"github.com/valentinerf/valentine-rf/internal/config"
	"github.com/valentinerf/valentine-rf/internal/decoder"
	"github.com/valentinerf/valentine-rf/internal/httpapi"
	"github.com/valentinerf/valentine-rf/internal/logging"
	"github.com/valentinerf/valentine-rf/internal/metrics"
	"github.com/valentinerf/valentine-rf/internal/modes"
	pprofsrv "github.com/valentinerf/valentine-rf/internal/pprof"
	"github.com/valentinerf/valentine-rf/internal/store"
	"github.com/valentinerf/valentine-rf/internal/supervisor"
	"github.com/valentinerf/valentine-rf/internal/tools"
)

// evictionInterval is how often the evictor sweeps each store for expired
// entries (spec §4.4: "every 60s is sufficient" - decoupled from any one
// store's TTL).
const evictionInterval = 60 * time.Second

// snapshotMaxAge bounds how stale a persisted snapshot may be before it's
// discarded on load rather than hydrated (spec's warm-start supplement:
// a snapshot from last week is noise, not state).
const snapshotMaxAge = 10 * time.Minute

// App owns every long-lived subsystem and the HTTP listener built on top of
// them.
type App struct {
	cfg *config.Config
	log *slog.Logger

	scheduler gocron.Scheduler
	devices   *arbiter.DeviceCache
	registry  *decoder.Registry
	metrics   *metrics.Metrics
	metricsrv *metrics.Server

	adsb   *modes.AdsbMode
	uat    *modes.UatMode
	sensor *modes.SensorMode
	pager  *modes.PagerMode
	wifi   *modes.WifiMode

	httpServer *http.Server
}

// New builds the full object graph from cfg but starts nothing yet.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("building scheduler: %w", err)
	}

	enumerator := arbiter.NewCommandEnumerator(arbiter.DefaultProbes())
	arb := arbiter.New(enumerator)
	devices := arbiter.NewDeviceCache(arb)

	sup := supervisor.New(logging.Named(log, "supervisor"))
	resolver := tools.New(cfg.Tools.SearchPath)
	m := metrics.New()

	registry := decoder.NewRegistry(arb, sup, resolver, m, logging.Named(log, "decoder"))

	adsbMode := modes.NewAdsbMode()
	uatMode := modes.NewUatMode(adsbMode)
	sensorMode := modes.NewSensorMode()
	pagerMode := modes.NewPagerMode()
	wifiMode := modes.NewWifiMode(cfg.WorkDir)

	registry.Register(adsbMode)
	registry.Register(uatMode)
	registry.Register(sensorMode)
	registry.Register(pagerMode)
	registry.Register(wifiMode)

	a := &App{
		cfg:       cfg,
		log:       log,
		scheduler: scheduler,
		devices:   devices,
		registry:  registry,
		metrics:   m,
		metricsrv: metrics.NewServer(&cfg.Metrics),
		adsb:      adsbMode,
		uat:       uatMode,
		sensor:    sensorMode,
		pager:     pagerMode,
		wifi:      wifiMode,
	}

	a.instrumentBuses()
	if err := a.registerEvictors(); err != nil {
		return nil, fmt.Errorf("registering evictors: %w", err)
	}
	if err := a.registerKeepAlives(); err != nil {
		return nil, fmt.Errorf("registering keep-alives: %w", err)
	}
	if err := arbiter.StartPeriodicRescan(scheduler, devices, arbiter.DefaultRescanInterval, logging.Named(log, "arbiter")); err != nil {
		return nil, fmt.Errorf("registering device rescan: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(cfg.WorkDir, "snapshots"), 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	srv := httpapi.NewServer(registry, devices, logging.Named(log, "httpapi"))
	router := srv.CreateRouter(&cfg.HTTP, cfg.Debug)
	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.ListenAddr, cfg.HTTP.Port),
		Handler: router,
	}

	return a, nil
}

// busesByMode returns every mode's bus, keyed by mode id, for the two loops
// (instrumentation, keep-alives) that walk them identically.
func (a *App) busesByMode() map[string]*bus.Bus {
	return map[string]*bus.Bus{
		a.adsb.ID():   a.adsb.Bus(),
		a.uat.ID():    a.uat.Bus(),
		a.sensor.ID(): a.sensor.Bus(),
		a.pager.ID():  a.pager.Bus(),
		a.wifi.ID():   a.wifi.Bus(),
	}
}

func (a *App) instrumentBuses() {
	obs := metrics.NewBusObserver(a.metrics)
	for id, b := range a.busesByMode() {
		// uat shares adsb's bus; instrumenting it twice under distinct
		// labels would double-count, so skip the second registration.
		if id == a.uat.ID() && a.uat.Bus() == a.adsb.Bus() {
			continue
		}
		b.Instrument(id, obs)
	}
}

func (a *App) registerKeepAlives() error {
	seen := make(map[*bus.Bus]bool)
	for id, b := range a.busesByMode() {
		if seen[b] {
			continue
		}
		seen[b] = true
		if err := bus.StartKeepAlive(a.scheduler, id, b, a.cfg.HTTP.KeepAliveInterval, logging.Named(a.log, "bus")); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) registerEvictors() error {
	evictor := store.NewEvictor(a.scheduler, logging.Named(a.log, "store"), metrics.NewStoreObserver(a.metrics))
	if err := evictor.Register(a.adsb.ID(), evictionInterval, a.adsb.Store); err != nil {
		return err
	}
	if err := evictor.Register(a.sensor.ID(), evictionInterval, a.sensor.Store); err != nil {
		return err
	}
	if err := evictor.Register(a.pager.ID(), evictionInterval, a.pager.Store); err != nil {
		return err
	}
	if err := evictor.Register(a.wifi.ID(), evictionInterval, a.wifi.Store); err != nil {
		return err
	}
	return nil
}

// snapshotPath returns where a given store's warm-start file lives.
func (a *App) snapshotPath(name string) string {
	return filepath.Join(a.cfg.WorkDir, "snapshots", name+".msgp")
}

// LoadSnapshots hydrates every store from its last clean-shutdown snapshot,
// discarding anything older than snapshotMaxAge (spec's warm-start
// supplement).
func (a *App) LoadSnapshots() {
	now := time.Now()
	type load struct {
		name string
		fn   func() (int, error)
	}
	loads := []load{
		{"adsb", func() (int, error) {
			return a.adsb.Store.LoadSnapshot(a.snapshotPath("adsb"), modes.AircraftFromMap, modes.AircraftKey, snapshotMaxAge, now)
		}},
		{"sensor", func() (int, error) {
			return a.sensor.Store.LoadSnapshot(a.snapshotPath("sensor"), modes.SensorReadingFromMap, modes.SensorReadingKey, snapshotMaxAge, now)
		}},
		{"pager", func() (int, error) {
			return a.pager.Store.LoadSnapshot(a.snapshotPath("pager"), modes.PagerMessageFromMap, modes.PagerMessageKey, snapshotMaxAge, now)
		}},
		{"wifi", func() (int, error) {
			return a.wifi.Store.LoadSnapshot(a.snapshotPath("wifi"), modes.WifiAPFromMap, modes.WifiAPKey, snapshotMaxAge, now)
		}},
	}
	for _, l := range loads {
		n, err := l.fn()
		if err != nil {
			a.log.Warn("snapshot load failed, starting cold", "store", l.name, "error", err)
			continue
		}
		if n > 0 {
			a.log.Info("hydrated store from snapshot", "store", l.name, "entries", n)
		}
	}
}

// SaveSnapshots persists every store to disk, best-effort, for the next
// clean startup to hydrate from.
func (a *App) SaveSnapshots() {
	type save struct {
		name string
		fn   func() error
	}
	saves := []save{
		{"adsb", func() error { return a.adsb.Store.SaveSnapshot(a.snapshotPath("adsb"), modes.AircraftToMap) }},
		{"sensor", func() error { return a.sensor.Store.SaveSnapshot(a.snapshotPath("sensor"), modes.SensorReadingToMap) }},
		{"pager", func() error { return a.pager.Store.SaveSnapshot(a.snapshotPath("pager"), modes.PagerMessageToMap) }},
		{"wifi", func() error { return a.wifi.Store.SaveSnapshot(a.snapshotPath("wifi"), modes.WifiAPToMap) }},
	}
	for _, s := range saves {
		if err := s.fn(); err != nil {
			a.log.Warn("snapshot save failed", "store", s.name, "error", err)
		}
	}
}

// Run starts every background subsystem and blocks serving HTTP until ctx is
// canceled or the listener fails, then calls shutdown.
func (a *App) Run(ctx context.Context) error {
	a.LoadSnapshots()

	if a.cfg.Devices.EnumerateOnStart {
		a.devices.Refresh()
	}

	a.scheduler.Start()

	if a.cfg.Metrics.Enabled {
		go func() {
			if err := a.metricsrv.Start(); err != nil {
				a.log.Error("metrics server exited", "error", err)
			}
		}()
	}

	if a.cfg.PProf.Enabled {
		go func() {
			if err := pprofsrv.Run(&a.cfg.PProf, logging.Named(a.log, "pprof")); err != nil {
				a.log.Error("pprof server exited", "error", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("http listener starting", "addr", a.httpServer.Addr)
		err := a.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			a.shutdown()
			return err
		}
	}

	return a.shutdown()
}

// shutdown stops any live decoders, the HTTP listener, the scheduled jobs and
// the metrics listener, in that order, then persists a snapshot for the next
// warm start. The pprof listener is not stopped here; it ends with the
// process.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopped := a.registry.KillAll(shutdownCtx)
	if stopped > 0 {
		a.log.Info("stopped running decoders for shutdown", "count", stopped)
	}

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http server did not shut down cleanly", "error", err)
	}

	if err := a.scheduler.StopJobs(); err != nil {
		a.log.Warn("scheduler did not stop cleanly", "error", err)
	}

	if a.cfg.Metrics.Enabled {
		if err := a.metricsrv.Stop(shutdownCtx); err != nil {
			a.log.Warn("metrics server did not shut down cleanly", "error", err)
		}
	}

	a.SaveSnapshots()

	return nil
}
