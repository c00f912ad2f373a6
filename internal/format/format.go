// Package format holds small, dependency-free display helpers shared by
// the velocity table, huddle log, and dashboard (spec §8 properties 3-4).
// Kept on the standard library: both functions are a few lines of integer
// arithmetic and string building, and no library in the retrieval pack
// offers a closer fit than fmt.Sprintf plus a couple of comparisons.
package format

import "fmt"

// Percent returns the rounded integer percentage of part/total, 0 when
// total is 0, always in [0, 100] for part <= total.
func Percent(part, total int) int {
	if total == 0 {
		return 0
	}
	p := (part*100 + total/2) / total
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// FormatDuration renders a millisecond count as "Nms" below one second,
// "Ns" below one minute, "Nm" for exact minutes, and "Nm Ss" otherwise.
func FormatDuration(ms int64) string {
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60_000:
		return fmt.Sprintf("%ds", ms/1000)
	case ms%60_000 == 0:
		return fmt.Sprintf("%dm", ms/60_000)
	default:
		minutes := ms / 60_000
		seconds := (ms % 60_000) / 1000
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
}
