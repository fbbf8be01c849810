package random

import "math/rand/v2"

// Shuffle returns a copy of items in uniformly random order (Fisher–Yates).
// The input slice is left untouched.
func Shuffle[T any](items []T) []T {
	shuffled := make([]T, len(items))
	copy(shuffled, items)

	for i := len(shuffled) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return shuffled
}

// Sample returns n random items, or all of them when fewer than n exist.
func Sample[T any](items []T, n int) []T {
	shuffled := Shuffle(items)

	if n < 0 {
		n = 0
	}
	if n > len(shuffled) {
		n = len(shuffled)
	}

	return shuffled[:n]
}
