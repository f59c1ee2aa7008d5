// Package sched implements the overlay seed scheduler of a stateful protocol
// fuzzer. It extracts per-message byte histograms and protocol-state
// signatures from queued test cases, clusters a bounded lookahead window by
// signature, scores each member's novelty against its cluster peers and picks
// one entry per fuzzing iteration with a layered round robin.
//
// A Scheduler is single-threaded: the fuzzing loop calls it serially.
package sched

import (
	"github.com/sirupsen/logrus"
)

// Scheduler holds all cross-call state: the lookahead window, its tail cursor
// and the selector rotation. Independent schedulers share nothing.
type Scheduler struct {
	builder  *FeatureBuilder
	selector *RoundRobinSelector
	window   *SlidingWindowQueue
	metrics  *Metrics
}

// NewScheduler creates a Scheduler from cfg.
// Panics on an out-of-range window capacity or a nil reader.
func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{
		builder:  NewFeatureBuilder(cfg.Reader, cfg.Metrics),
		selector: &RoundRobinSelector{},
		window:   NewSlidingWindowQueue(cfg.WindowCapacity),
		metrics:  cfg.Metrics,
	}
}

// Reset clears the window, the tail cursor and the rotation. Cached features
// on test cases are left alone.
func (s *Scheduler) Reset() {
	s.window.Reset()
	s.selector.Reset()
	s.metrics.observeWindow(0)
}

// PrepareEntry drops tc's cached features and zeroes its novelty before the
// host mutates or re-fuzzes it.
func (s *Scheduler) PrepareEntry(tc *TestCase) {
	if tc == nil {
		return
	}
	tc.NoveltyScore = 0
	tc.features.Invalidate()
}

// ReleaseEntry drops tc's cached features because tc is being destroyed.
func (s *Scheduler) ReleaseEntry(tc *TestCase) {
	if tc == nil || !tc.features.Built() {
		return
	}
	tc.features.Invalidate()
	tc.NoveltyScore = 0
}

// Current peeks at the entry the next window pick would start from.
func (s *Scheduler) Current() *TestCase {
	return s.window.Current()
}

// GetOrBuildFeatures returns tc's cached features, building them on first use.
func (s *Scheduler) GetOrBuildFeatures(tc *TestCase) *Features {
	return s.builder.GetOrBuild(tc)
}

// SequenceSimilarity scores two feature bundles; see the package function.
func (s *Scheduler) SequenceSimilarity(a, b *Features) float64 {
	return SequenceSimilarity(a, b)
}

// PickNext selects one of candidates. As side effects it builds missing
// features, rewrites every candidate's NoveltyScore and advances the
// rotation. nil entries are not valid picks: if the selected slot holds
// nil, the first non-nil candidate is returned instead. Returns nil only
// when candidates has no non-nil entry.
func (s *Scheduler) PickNext(candidates []*TestCase) *TestCase {
	if len(candidates) == 0 {
		return nil
	}
	idx := NewClusterIndex(s.builder, candidates)
	ScoreNovelty(idx, candidates)
	sel := s.selector.Select(idx)
	s.metrics.observeSelection(idx, sel)

	chosen := candidates[sel.Candidate]
	if chosen == nil {
		chosen = firstNonNil(candidates)
		if chosen == nil {
			logrus.Warnf("pick: all %d candidates are nil", len(candidates))
			return nil
		}
		sel.Reason += ", nil slot skipped"
	}
	logrus.Debugf("pick: test case %d (%s, cluster=%d depth=%d novelty=%.3f) from %d candidates in %d clusters",
		chosen.ID, sel.Reason, sel.Cluster, sel.Depth, chosen.NoveltyScore, len(candidates), len(idx.Clusters))
	return chosen
}

func firstNonNil(candidates []*TestCase) *TestCase {
	for _, tc := range candidates {
		if tc != nil {
			return tc
		}
	}
	return nil
}

// PickFromWindow selects the next entry for the queue whose head is start,
// drawing candidates from the lookahead window. Returns nil only for a nil
// start.
func (s *Scheduler) PickFromWindow(start *TestCase) *TestCase {
	chosen := s.window.Pick(start, s.PickNext)
	s.metrics.observeWindow(s.window.Len())
	return chosen
}

// Window exposes the lookahead window for inspection.
func (s *Scheduler) Window() *SlidingWindowQueue {
	return s.window
}
