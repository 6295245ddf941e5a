// Package sampling picks a bounded, evenly spread subset of frames.
package sampling

import (
	"math"
	"sort"

	"github.com/MikeSquared-Agency/lookout/internal/timeline"
)

// Sample selects at most k frames from an ascending sequence. The first and
// last frames are always kept and the result is in timestamp order.
//
// Indices are round(i*(n-1)/(k-1)) for i in [0, k) with round-half-to-even.
// Colliding indices are dropped and the selection is backfilled from the
// start of the sequence until it holds min(k, n) frames.
func Sample(frames []timeline.FrameRecord, k int) []timeline.FrameRecord {
	if k <= 0 {
		return []timeline.FrameRecord{}
	}
	n := len(frames)
	if n <= k {
		return frames
	}
	if k == 1 {
		return []timeline.FrameRecord{frames[0]}
	}

	seen := make(map[int]bool, k)
	sampled := make([]timeline.FrameRecord, 0, k)
	for i := 0; i < k; i++ {
		idx := int(math.RoundToEven(float64(i*(n-1)) / float64(k-1)))
		if seen[idx] {
			continue
		}
		seen[idx] = true
		sampled = append(sampled, frames[idx])
	}

	for i := 0; len(sampled) < k && i < n; i++ {
		if !seen[i] {
			seen[i] = true
			sampled = append(sampled, frames[i])
		}
	}

	sort.SliceStable(sampled, func(a, b int) bool {
		return sampled[a].Timestamp < sampled[b].Timestamp
	})
	return sampled
}

// Indices returns the stride indices Sample starts from, before
// deduplication and backfill. Nil when no striding is needed.
func Indices(n, k int) []int {
	if k <= 1 || n <= k {
		return nil
	}
	out := make([]int, k)
	for i := range out {
		out[i] = int(math.RoundToEven(float64(i*(n-1)) / float64(k-1)))
	}
	return out
}
