package storage

import (
	"math"
	"sort"
	"time"
)

// QueryOptions configures a relevance query.
//
// Period and StrictPeriod are inclusion windows measured back from Now.
// Under Period, edge values also decay with age:
//
//	effective = raw * (1 - TimeDecay) ^ (age / Period)
//
// StrictPeriod filters without decay. When both are set, an edge must fall
// inside both windows and decay uses Period.
type QueryOptions struct {
	// Count truncates the result to the top N. 0 means no limit.
	Count int
	// Period is the decaying inclusion window.
	Period time.Duration
	// StrictPeriod is the non-decaying inclusion window.
	StrictPeriod time.Duration
	// TimeDecay is the fraction of value lost per Period, in [0,1].
	TimeDecay float64
	// WeightFn derives the ranking value from an edge instead of its weight.
	WeightFn func(*Edge) float64
	// Now is the reference time for ages. Zero means the engine clock.
	Now time.Time
}

// ByTimestamp is a WeightFn that ranks edges by recency.
func ByTimestamp(e *Edge) float64 {
	return float64(e.Timestamp.UnixMilli())
}

// Related ranks a set of edges by relevance and returns their destinations.
//
// Algorithm:
//  1. raw value = WeightFn(edge), or edge.Weight
//  2. drop edges older than Period or StrictPeriod
//  3. under Period, apply exponential decay with age
//  4. stable sort descending, truncate to Count
//
// Ties keep the order of the input edges. A destination reached through
// several edges appears once per edge.
//
// Example:
//
//	// An edge half a window old with decay 0.5 keeps ~70.7% of its weight.
//	related := storage.Related(edges, storage.QueryOptions{
//		Period:    10 * time.Minute,
//		TimeDecay: 0.5,
//		Now:       time.Now(),
//	})
func Related(edges []*Edge, opts QueryOptions) []WeightedNode {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	out := make([]WeightedNode, 0, len(edges))
	for _, e := range edges {
		value := e.Weight
		if opts.WeightFn != nil {
			value = opts.WeightFn(e)
		}

		age := now.Sub(e.Timestamp)
		if opts.StrictPeriod > 0 && age > opts.StrictPeriod {
			continue
		}
		if opts.Period > 0 {
			if age > opts.Period {
				continue
			}
			if opts.TimeDecay > 0 && age > 0 {
				value *= math.Pow(1-opts.TimeDecay, float64(age)/float64(opts.Period))
			}
		}

		out = append(out, WeightedNode{ID: e.Destination, Weight: value})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight > out[j].Weight
	})

	if opts.Count > 0 && len(out) > opts.Count {
		out = out[:opts.Count]
	}
	return out
}
