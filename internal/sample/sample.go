package sample

import "math/rand/v2"

// Take draws up to n elements from items uniformly at random without
// replacement via a Fisher-Yates shuffle of a copy. If fewer than n items
// exist, all of them are returned; the caller detects a partial draw by
// comparing lengths. A nil rng falls back to the shared source.
func Take[T any](rng *rand.Rand, items []T, n int) []T {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if rng != nil {
		rng.Shuffle(len(out), swap)
	} else {
		rand.Shuffle(len(out), swap)
	}
	if n < len(out) {
		out = out[:n]
	}
	return out
}
