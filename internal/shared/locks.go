package shared

import (
	"fmt"
	"time"
)

// LifecycleLockKey builds the redis key guarding one lifecycle sweep per day.
func LifecycleLockKey(day time.Time) string {
	return fmt.Sprintf("academic:lifecycle:%s:lock", day.Format(time.DateOnly))
}
