package core

import (
	"time"

	"feed-observer/src/models"
)

// TickVolume counts the snapshots with timestamp >= nowMs - window.
// The scan walks back from the newest entry and stops at the first older one,
// so a history bound shorter than the window under-reports.
func TickVolume(history []models.MPriceSnapshot, window time.Duration, nowMs int64) int {
	cutoff := nowMs - window.Milliseconds()

	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Timestamp < cutoff {
			break
		}
		count++
	}
	return count
}
