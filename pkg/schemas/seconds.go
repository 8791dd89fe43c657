package schemas

import (
	"strconv"
	"time"
)

// FormatSeconds renders d as seconds with millisecond precision, the form
// the engine expects for offsets and durations ("1.500").
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
