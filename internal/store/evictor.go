package store

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Evictable is the type-erased view of a Store that the scheduler needs;
// generic Store[T] values satisfy it without the evictor needing to know T.
type Evictable interface {
	EvictExpired(now time.Time) int
	Len() int
}

// Observer receives store-level instrumentation. Optional, mirroring
// bus.Observer: the generic store package never imports the metrics
// registry directly.
type Observer interface {
	Evicted(name string, n int)
	Entries(name string, n int)
}

// Evictor runs a single periodic eviction task per store (spec §4.4: "called
// periodically by a single eviction task per store, every 60s is
// sufficient"), using the same scheduler the teacher's background jobs run
// on.
type Evictor struct {
	scheduler gocron.Scheduler
	log       *slog.Logger
	observer  Observer
}

// NewEvictor builds an Evictor bound to an already-created scheduler. obs
// may be nil to skip instrumentation.
func NewEvictor(scheduler gocron.Scheduler, log *slog.Logger, obs Observer) *Evictor {
	return &Evictor{scheduler: scheduler, log: log, observer: obs}
}

// Register schedules periodic eviction for store under name, every interval.
func (e *Evictor) Register(name string, interval time.Duration, s Evictable) error {
	_, err := e.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n := s.EvictExpired(time.Now())
			if n > 0 && e.log != nil {
				e.log.Debug("evicted expired store entries", "store", name, "count", n)
			}
			if e.observer != nil {
				if n > 0 {
					e.observer.Evicted(name, n)
				}
				e.observer.Entries(name, s.Len())
			}
		}),
		gocron.WithName("evict-"+name),
	)
	return err
}
