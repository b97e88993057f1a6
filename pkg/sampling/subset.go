package sampling

// UniformUniqueSubset draws up to n items with distinct keys, each item
// equally likely.
//
// The draw is a partial Fisher-Yates shuffle over a copy of pool, so pool
// itself is not modified. Items whose key was already drawn are skipped. If
// the pool has fewer than n distinct keys, all of them are returned.
//
// The probability that a given item is drawn is approximately
// InclusionProbability(1/len(pool), n).
func UniformUniqueSubset[T any, K comparable](r Rand, pool []T, n int, key func(T) K) []T {
	if n <= 0 || len(pool) == 0 {
		return nil
	}

	items := make([]T, len(pool))
	copy(items, pool)

	seen := make(map[K]struct{}, min(n, len(items)))
	out := make([]T, 0, min(n, len(items)))
	for i := 0; i < len(items) && len(out) < n; i++ {
		j := i + r.IntN(len(items)-i)
		items[i], items[j] = items[j], items[i]

		k := key(items[i])
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, items[i])
	}
	return out
}

// BiasedUniqueSubset draws up to n items with distinct keys from a pool
// sorted best-first, favouring items near the front.
//
// Each draw picks index floor(len(remaining) * u^2) for a uniform u and
// removes that item, so the drawn position follows Beta(0.5, 1) over the
// remaining pool. The single-draw probability for sorted position r is
// BetaProbability(r, len(pool)).
//
// Example:
//
//	sort.Slice(pool, func(i, j int) bool { return pool[i].Weight > pool[j].Weight })
//	picked := sampling.BiasedUniqueSubset(rng, pool, 5, func(w storage.WeightedNode) storage.NodeID {
//		return w.ID
//	})
func BiasedUniqueSubset[T any, K comparable](r Rand, pool []T, n int, key func(T) K) []T {
	if n <= 0 || len(pool) == 0 {
		return nil
	}

	remaining := make([]T, len(pool))
	copy(remaining, pool)

	seen := make(map[K]struct{}, min(n, len(remaining)))
	out := make([]T, 0, min(n, len(remaining)))
	for len(out) < n && len(remaining) > 0 {
		u := r.Float64()
		idx := int(float64(len(remaining)) * u * u)
		if idx >= len(remaining) {
			idx = len(remaining) - 1
		}

		item := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		k := key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
