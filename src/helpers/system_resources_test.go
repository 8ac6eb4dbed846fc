package helpers

import "testing"

func TestRecommendedMemoryLimitWithinBounds(t *testing.T) {
	limit := RecommendedMemoryLimitMB()
	total := TotalSystemMemoryMB()

	if limit > maxMemoryLimitMB {
		t.Fatalf("limit %d above the cap", limit)
	}
	if total >= minMemoryLimitMB && limit < minMemoryLimitMB {
		t.Fatalf("limit %d below the floor with %d MB available", limit, total)
	}
	if total > 0 && limit > total {
		t.Fatalf("limit %d above the physical memory %d", limit, total)
	}
}
