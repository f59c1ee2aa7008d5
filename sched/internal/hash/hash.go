// Package hash provides the structural signature hashes used to cluster test
// cases by their recorded protocol-state traces. Signatures are only ever
// compared for equality; collisions merge two clusters and are tolerated.
package hash

import (
	"math/bits"
	"slices"
)

const (
	fnvOffset32 uint32 = 2166136261
	fnvPrime32  uint32 = 16777619

	// ShingleWidth is the number of consecutive states mixed into one shingle.
	ShingleWidth = 3

	shingleSeed  uint32 = 0x9e3779b9
	shingleMul   uint32 = 0x85ebca6b
	positionSalt uint32 = 0xc2b2ae35
)

// TraceSignature hashes the overlapping ShingleWidth-state windows of trace.
// Each shingle is mixed with rotate-and-multiply, salted with its position and
// folded into an FNV-1a running hash; the trace length is folded in last.
// Traces shorter than ShingleWidth form a single shingle.
// An empty trace always signs to 0.
func TraceSignature(trace []uint32) uint32 {
	n := len(trace)
	if n == 0 {
		return 0
	}
	width := min(ShingleWidth, n)

	h := fnvOffset32
	for pos := 0; pos+width <= n; pos++ {
		s := shingle(trace[pos : pos+width])
		h ^= s ^ (uint32(pos+1) * positionSalt)
		h *= fnvPrime32
	}
	h ^= uint32(n)
	return h
}

// shingle mixes one window of states; order inside the window matters.
func shingle(states []uint32) uint32 {
	s := shingleSeed
	for _, v := range states {
		s = bits.RotateLeft32(s, 13) ^ v
		s *= shingleMul
	}
	return s
}

// StateSetSignature hashes the sorted, deduplicated set of states in trace,
// so two traces visiting the same states in any order sign identically.
// It is kept for diagnostics; clustering uses TraceSignature.
// An empty trace always signs to 0.
func StateSetSignature(trace []uint32) uint32 {
	set := StateSet(trace)
	if len(set) == 0 {
		return 0
	}
	h := fnvOffset32
	for _, v := range set {
		h ^= v
		h *= fnvPrime32
	}
	h ^= uint32(len(set))
	return h
}

// StateSet returns the sorted, deduplicated states of trace as a new slice.
// Returns nil for an empty trace.
func StateSet(trace []uint32) []uint32 {
	if len(trace) == 0 {
		return nil
	}
	set := slices.Clone(trace)
	slices.Sort(set)
	return slices.Compact(set)
}
