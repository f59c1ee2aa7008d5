package sched

import (
	"github.com/sirupsen/logrus"
)

// Selection describes the outcome of one selector call.
type Selection struct {
	Candidate int    // Index into the candidate slice
	Cluster   int    // Cluster position in signature order; -1 on fallback
	Depth     int    // Novelty rank within the cluster; -1 on fallback
	Reason    string // Human-readable explanation
}

// RoundRobinSelector picks one candidate per call from a scored ClusterIndex.
//
// Candidates occupy a slot grid of depth (novelty rank) × cluster (signature
// order). The persisted rotation walks that grid depth-major: every cluster's
// most novel member is offered before any cluster's second, and each
// successful pick moves the sweep to the next cluster. Over k singleton
// clusters this visits each candidate once per k calls.
type RoundRobinSelector struct {
	rotation int // next slot to try
	slots    int // grid size at the previous call
}

// Select returns the next candidate of idx. It never fails on a non-empty
// batch: an empty grid or a full miss falls back to candidate 0.
func (rr *RoundRobinSelector) Select(idx *ClusterIndex) Selection {
	clusters := len(idx.Clusters)
	if clusters == 0 || idx.TotalMembers() == 0 {
		logrus.Debugf("selector: empty cluster index, falling back to first candidate")
		return fallback("no-clusters")
	}

	slots := clusters * max(idx.MaxDepth(), 1)
	if rr.slots != slots {
		rr.rotation %= slots
	}
	rr.slots = slots

	for step := 0; step < slots; step++ {
		pos := rr.rotation
		rr.rotation = (rr.rotation + 1) % slots
		depth, c := pos/clusters, pos%clusters
		candidate, ok := idx.Clusters[c].AtDepth(depth)
		if !ok {
			continue
		}
		return Selection{
			Candidate: candidate,
			Cluster:   c,
			Depth:     depth,
			Reason:    "round-robin",
		}
	}

	logrus.Warnf("selector: no occupied slot in %d-slot grid, falling back to first candidate", slots)
	return fallback("miss")
}

// Reset forgets the rotation.
func (rr *RoundRobinSelector) Reset() {
	rr.rotation = 0
	rr.slots = 0
}

// Rotation returns the next slot the selector will try.
func (rr *RoundRobinSelector) Rotation() int {
	return rr.rotation
}

func fallback(reason string) Selection {
	return Selection{Candidate: 0, Cluster: -1, Depth: -1, Reason: "fallback (" + reason + ")"}
}
