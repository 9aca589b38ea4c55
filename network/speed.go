package network

import "slices"

// medianSpeed returns the median of the desired speeds; for an even count it
// is the integer average of the two middle values. An empty set yields 0.
func medianSpeed(speeds []uint32) uint32 {
	if len(speeds) == 0 {
		return 0
	}
	sorted := slices.Clone(speeds)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return uint32((uint64(sorted[mid-1]) + uint64(sorted[mid])) / 2)
}
