package modes

import "time"

func fixedTime() time.Time {
	return time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
}
