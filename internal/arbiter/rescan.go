package arbiter

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// DefaultRescanInterval is how often the device cache is refreshed in the
// background, independent of an operator's manual POST /devices/rescan.
const DefaultRescanInterval = 5 * time.Minute

// StartPeriodicRescan schedules cache.Refresh on interval, grounded on the
// teacher's scheduleDailyUpdate pattern (cmd/root.go): an immediate refresh
// at startup plus a recurring scheduled one.
func StartPeriodicRescan(scheduler gocron.Scheduler, cache *DeviceCache, interval time.Duration, log *slog.Logger) error {
	cache.Refresh()

	_, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			cache.Refresh()
			if log != nil {
				log.Debug("device enumeration refreshed")
			}
		}),
		gocron.WithName("device-rescan"),
	)
	if err != nil {
		return fmt.Errorf("scheduling device rescan job: %w", err)
	}
	return nil
}
