package helpers

// Memory soft limit bounds, in MB
const (
	minMemoryLimitMB = 256
	maxMemoryLimitMB = 2048
)

// RecommendedMemoryLimitMB returns the soft memory limit handed to the runtime:
// half of the physical memory, clamped to [256, 2048] MB. Histories are bounded,
// so the process never needs more than that.
func RecommendedMemoryLimitMB() int {
	totalMB := TotalSystemMemoryMB()
	if totalMB == 0 {
		return maxMemoryLimitMB
	}

	limit := totalMB / 2
	if limit < minMemoryLimitMB {
		if totalMB < minMemoryLimitMB {
			return totalMB // Very low memory system
		}
		return minMemoryLimitMB
	}
	if limit > maxMemoryLimitMB {
		return maxMemoryLimitMB
	}
	return limit
}
