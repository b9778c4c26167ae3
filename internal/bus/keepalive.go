package bus

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// DefaultKeepAlive is the interval between synthetic keep-alive events, so
// intermediate proxies don't tear idle SSE connections (spec §4.5).
const DefaultKeepAlive = 15 * time.Second

// StartKeepAlive schedules a periodic "keepalive" event on bus as a job on
// scheduler; the job runs until the scheduler's jobs are stopped, and is
// skipped on ticks when the bus has no subscribers.
func StartKeepAlive(scheduler gocron.Scheduler, name string, bus *Bus, interval time.Duration, log *slog.Logger) error {
	if interval <= 0 {
		interval = DefaultKeepAlive
	}
	_, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if bus.SubscriberCount() == 0 {
				return
			}
			bus.Publish(Event{Type: "keepalive", Data: map[string]any{"ts": time.Now().UTC()}})
		}),
		gocron.WithName("keepalive-"+name),
	)
	if err != nil && log != nil {
		log.Error("failed to schedule keepalive job", "bus", name, "error", err)
	}
	return err
}
