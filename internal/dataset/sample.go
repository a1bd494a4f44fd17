package dataset

import (
	"math/rand"
	"sort"
	"time"
)

// SampleOptions controls index selection for Samples and SelectIndices.
type SampleOptions struct {
	// MaxSamples bounds the selection; 0 means all rows. A value
	// larger than the row count is clamped, not an error.
	MaxSamples int

	// Random selects a seeded pseudo-random subset instead of the
	// first MaxSamples rows.
	Random bool

	// Seed makes random selection reproducible: identical
	// (rowCount, MaxSamples, *Seed) always yield the identical index
	// sequence on every platform. A nil Seed draws a fresh
	// time-derived seed and the selection is not reproducible.
	Seed *int64
}

// SelectIndices returns distinct row indices in [0, rowCount), always
// in ascending order so downstream processing stays partition-ordered
// (randomness decides which rows are selected, never their order).
//
// Random=false returns [0, min(MaxSamples, rowCount)) with no seed
// involved: deterministic and restartable.
func SelectIndices(rowCount int, opts SampleOptions) []int {
	if rowCount <= 0 {
		return nil
	}

	limit := rowCount
	if opts.MaxSamples > 0 && opts.MaxSamples < rowCount {
		limit = opts.MaxSamples
	}

	if !opts.Random {
		indices := make([]int, limit)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	var seed int64
	if opts.Seed != nil {
		seed = *opts.Seed
	} else {
		seed = time.Now().UnixNano()
	}

	// math/rand with a fixed source is specified to produce the same
	// sequence everywhere, which carries the reproducibility invariant.
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(rowCount)

	indices := make([]int, limit)
	copy(indices, perm[:limit])
	sort.Ints(indices)
	return indices
}
