package router

import "github.com/polyquery/metasearch/config"

// Allocate turns ordered group weights and a total result limit into
// per-group integer quotas. Each group gets the floor of its share; the
// leftover units go one at a time to groups in declaration order, wrapping
// when the remainder exceeds the group count. The quotas always sum to
// exactly limit.
func Allocate(weights []config.GroupWeight, limit int) map[string]int {
	quotas := make(map[string]int, len(weights))
	if len(weights) == 0 || limit <= 0 {
		for _, w := range weights {
			quotas[w.Group] = 0
		}
		return quotas
	}

	// Weights summing past 1 are scaled down so the floors never overshoot
	// the limit.
	var sum float64
	for _, w := range weights {
		sum += w.Weight
	}
	scale := 1.0
	if sum > 1 {
		scale = 1 / sum
	}

	allocated := 0
	for _, w := range weights {
		q := int(w.Weight * scale * float64(limit))
		quotas[w.Group] = q
		allocated += q
	}

	for i := 0; allocated < limit; i++ {
		quotas[weights[i%len(weights)].Group]++
		allocated++
	}

	return quotas
}
