package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// distinctSessions returns k test cases, each with its own state trace.
func distinctSessions(r memReader, k int) []*TestCase {
	cands := make([]*TestCase, k)
	for i := range cands {
		cands[i] = session(r, i, []uint32{uint32(i), uint32(i + 100), uint32(i + 200)}, "msg")
	}
	return cands
}

func TestRoundRobinSelector_EmptyIndexFallsBack(t *testing.T) {
	rr := &RoundRobinSelector{}
	sel := rr.Select(&ClusterIndex{})
	assert.Equal(t, 0, sel.Candidate)
	assert.Equal(t, -1, sel.Cluster)
	assert.Contains(t, sel.Reason, "fallback")
}

func TestRoundRobinSelector_EmptyClustersFallBack(t *testing.T) {
	rr := &RoundRobinSelector{}
	sel := rr.Select(&ClusterIndex{Clusters: []Cluster{{Signature: 1}}})
	assert.Equal(t, 0, sel.Candidate)
	assert.Equal(t, -1, sel.Depth)
}

func TestRoundRobinSelector_DepthMajorSweep(t *testing.T) {
	// GIVEN clusters of sizes 2 and 1, already ranked
	idx := &ClusterIndex{Clusters: []Cluster{
		{Signature: 1, Members: []int{0, 1}, Order: []int{1, 0}},
		{Signature: 2, Members: []int{2}, Order: []int{0}},
	}}
	rr := &RoundRobinSelector{}

	// WHEN selecting repeatedly
	var got []int
	for i := 0; i < 6; i++ {
		got = append(got, rr.Select(idx).Candidate)
	}

	// THEN every cluster's most novel member comes before any second member,
	// and the empty (depth 1, cluster 1) slot is skipped
	assert.Equal(t, []int{1, 2, 0, 1, 2, 0}, got)
}

func TestRoundRobinSelector_GridChangeReducesRotation(t *testing.T) {
	rr := &RoundRobinSelector{rotation: 7, slots: 8}
	idx := &ClusterIndex{Clusters: []Cluster{
		{Signature: 1, Members: []int{0}, Order: []int{0}},
		{Signature: 2, Members: []int{1}, Order: []int{0}},
		{Signature: 3, Members: []int{2}, Order: []int{0}},
	}}
	sel := rr.Select(idx)
	// 7 mod 3 = 1
	assert.Equal(t, 1, sel.Candidate)
	assert.Equal(t, 2, rr.Rotation())
}

func TestPickNext_EmptyReturnsNil(t *testing.T) {
	s := newTestScheduler(memReader{})
	assert.Nil(t, s.PickNext(nil))
	assert.Nil(t, s.PickNext([]*TestCase{}))
}

func TestPickNext_NeverNilForNonEmpty(t *testing.T) {
	r := memReader{}
	s := newTestScheduler(r)
	cands := []*TestCase{
		NewTestCase(0, "missing", 0, nil),
		session(r, 1, nil, "x"),
	}
	for i := 0; i < 10; i++ {
		assert.NotNil(t, s.PickNext(cands))
	}
}

func TestPickNext_NilSlotFallsBackToFirstNonNil(t *testing.T) {
	// GIVEN a batch whose leading entries are nil
	r := memReader{}
	live := session(r, 5, nil, "x")
	s := newTestScheduler(r)

	// WHEN the selector lands on a nil slot
	got := s.PickNext([]*TestCase{nil, nil, live})

	// THEN the first live candidate is returned
	assert.Same(t, live, got)
}

func TestPickNext_AllNilReturnsNil(t *testing.T) {
	s := newTestScheduler(memReader{})
	assert.Nil(t, s.PickNext([]*TestCase{nil}))
	assert.Nil(t, s.PickNext([]*TestCase{nil, nil}))
}

func TestPickNext_RoundRobinFairnessOverSingletons(t *testing.T) {
	// GIVEN k candidates, each its own cluster
	r := memReader{}
	const k = 7
	cands := distinctSessions(r, k)
	s := newTestScheduler(r)

	// WHEN picking k times
	seen := map[*TestCase]int{}
	var first *TestCase
	for i := 0; i < k; i++ {
		tc := s.PickNext(cands)
		require.NotNil(t, tc)
		if i == 0 {
			first = tc
		}
		seen[tc]++
	}

	// THEN each candidate was picked exactly once
	assert.Len(t, seen, k)
	for tc, n := range seen {
		assert.Equal(t, 1, n, "test case %d", tc.ID)
	}

	// THEN the (k+1)-th pick repeats the first
	assert.Same(t, first, s.PickNext(cands))
}

func TestPickNext_TwoPlusOneScenario(t *testing.T) {
	// GIVEN signatures [A, A, B] with equal novelty inside A
	r := memReader{}
	traceA, traceB := []uint32{1, 2, 3}, []uint32{7, 8}
	cands := []*TestCase{
		session(r, 0, traceA, "aaaa"),
		session(r, 1, traceA, "aabb"),
		session(r, 2, traceB, "zzzz"),
	}
	s := newTestScheduler(r)
	aFirst := s.GetOrBuildFeatures(cands[0]).Signature < s.GetOrBuildFeatures(cands[2]).Signature

	// WHEN picking from rotation 0
	p1 := s.PickNext(cands)
	p2 := s.PickNext(cands)
	p3 := s.PickNext(cands)
	p4 := s.PickNext(cands)

	// THEN depth 0 of each cluster in signature order, then A's second member
	if aFirst {
		assert.Same(t, cands[0], p1)
		assert.Same(t, cands[2], p2)
	} else {
		assert.Same(t, cands[2], p1)
		assert.Same(t, cands[0], p2)
	}
	assert.Same(t, cands[1], p3)
	assert.Same(t, p1, p4)
	assert.Equal(t, 1.0, cands[2].NoveltyScore)
}

func TestScheduler_ResetRestartsRotation(t *testing.T) {
	r := memReader{}
	cands := distinctSessions(r, 4)
	s := newTestScheduler(r)

	first := s.PickNext(cands)
	s.PickNext(cands)
	s.Reset()

	assert.Same(t, first, s.PickNext(cands))
}

func TestScheduler_IndependentInstances(t *testing.T) {
	r := memReader{}
	cands := distinctSessions(r, 3)
	a, b := newTestScheduler(r), newTestScheduler(r)

	pa := a.PickNext(cands)
	a.PickNext(cands)
	assert.Same(t, pa, b.PickNext(cands), "rotation is per scheduler")
}
