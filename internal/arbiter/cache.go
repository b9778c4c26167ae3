package arbiter

import (
	"sync"
	"time"
)

// DeviceCache holds the result of the last hardware enumeration so the
// HTTP surface can serve GET /devices instantly instead of re-running
// external probe commands on every request. Grounded on the teacher's
// repeaterdb/userdb scheduled-refresh-plus-manual-trigger pattern, applied
// to hardware enumeration instead of call-sign databases.
type DeviceCache struct {
	enumerator Enumerator

	mu        sync.RWMutex
	devices   []Device
	advisory  string
	refreshed time.Time
}

// NewDeviceCache builds an empty cache; call Refresh at least once (the
// composition root does this both at startup and on a schedule).
func NewDeviceCache(enumerator Enumerator) *DeviceCache {
	return &DeviceCache{enumerator: enumerator}
}

// Refresh re-runs enumeration and replaces the cached snapshot.
func (c *DeviceCache) Refresh() {
	devices, advisory := c.enumerator.Enumerate()
	c.mu.Lock()
	c.devices = devices
	c.advisory = advisory
	c.refreshed = time.Now()
	c.mu.Unlock()
}

// Snapshot returns the last cached enumeration result.
func (c *DeviceCache) Snapshot() (devices []Device, advisory string, refreshedAt time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Device, len(c.devices))
	copy(out, c.devices)
	return out, c.advisory, c.refreshed
}
