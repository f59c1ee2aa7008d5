// Defines the TestCase struct that models one fuzz input in the scheduling queue.
// Tracks the backing file, per-message regions with their recorded state traces,
// the queue link and the scheduler's cached features and novelty score.

package sched

import (
	"fmt"
)

// Region is the byte range of one message sent to the server under test,
// plus the protocol states the execution engine recorded for it.
type Region struct {
	Start  int      // First byte of the message (inclusive)
	End    int      // Last byte of the message (inclusive)
	States []uint32 // Recorded state sequence; empty when the engine recorded none
}

// TestCase is one entry of the fuzzer's queue. Storage, allocation and the
// Next links are owned by the host; the scheduler only reads them, writes
// NoveltyScore and manages the feature cache.
type TestCase struct {
	ID   int    // Queue index, used for logging only
	Path string // Backing file
	Len  int    // Recorded input length in bytes

	Regions []Region  // One region per message, in send order
	Next    *TestCase // Next entry in the queue, nil at the tail

	NoveltyScore float64 // Last novelty computed by the scheduler; 0 until scored

	features FeatureCache
}

// NewTestCase creates a TestCase for the file at path with recorded length n.
// Regions are stored by reference; callers must not mutate them while the
// test case is scheduled.
//
// Panics if n is negative.
func NewTestCase(id int, path string, n int, regions []Region) *TestCase {
	if n < 0 {
		panic(fmt.Sprintf("NewTestCase: len must be >= 0, got %d", n))
	}
	return &TestCase{
		ID:      id,
		Path:    path,
		Len:     n,
		Regions: regions,
	}
}

// Features exposes the test case's cache cell.
func (tc *TestCase) Features() *FeatureCache {
	return &tc.features
}

// Link chains the given test cases in order through their Next fields and
// returns the head. nil entries are not allowed.
func Link(entries ...*TestCase) *TestCase {
	for i := 0; i+1 < len(entries); i++ {
		entries[i].Next = entries[i+1]
	}
	if len(entries) == 0 {
		return nil
	}
	entries[len(entries)-1].Next = nil
	return entries[0]
}

func (tc *TestCase) String() string {
	return fmt.Sprintf("TestCase: (ID: %d, Path: %s, Len: %d, Regions: %d, Novelty: %.3f)",
		tc.ID, tc.Path, tc.Len, len(tc.Regions), tc.NoveltyScore)
}
