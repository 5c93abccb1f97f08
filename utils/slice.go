package utils

import (
	"cmp"
	"slices"
)

// SortedUnique returns the distinct values of in, ascending. in is not modified.
func SortedUnique[T cmp.Ordered](in []T) []T {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
