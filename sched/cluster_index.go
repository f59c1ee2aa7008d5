package sched

import (
	"sort"
)

// Cluster is a group of candidates sharing one structural signature.
// Members, Scores and Order are parallel views: Members[k] is an index into
// the candidate slice, Scores[k] its novelty, and Order lists k values from
// most to least novel.
type Cluster struct {
	Signature uint32
	Members   []int
	Scores    []float64
	Order     []int
}

// Size returns the number of members.
func (c *Cluster) Size() int {
	return len(c.Members)
}

// AtDepth returns the candidate index ranked at depth (0 = most novel).
// ok is false when the cluster has no member that deep.
func (c *Cluster) AtDepth(depth int) (candidate int, ok bool) {
	if depth < 0 || depth >= len(c.Order) {
		return 0, false
	}
	return c.Members[c.Order[depth]], true
}

// ClusterIndex partitions one batch of candidates by signature. It is built
// per selection call and discarded afterwards.
type ClusterIndex struct {
	Clusters []Cluster
	Features []*Features // parallel to the candidate slice; nil for nil candidates
}

// NewClusterIndex fetches (building if needed) the features of every
// candidate, resets their novelty scores, and groups them by exact signature
// equality. Clusters are created in scan order and then sorted by signature
// ascending so the order is deterministic. nil candidates join the
// signature-0 cluster.
func NewClusterIndex(builder *FeatureBuilder, candidates []*TestCase) *ClusterIndex {
	idx := &ClusterIndex{
		Features: make([]*Features, len(candidates)),
	}
	for i, tc := range candidates {
		idx.Features[i] = builder.GetOrBuild(tc)
		if tc != nil {
			tc.NoveltyScore = 0
		}
	}

	for i, feat := range idx.Features {
		var sig uint32
		if feat != nil {
			sig = feat.Signature
		}
		idx.join(sig, i)
	}

	sort.SliceStable(idx.Clusters, func(a, b int) bool {
		return idx.Clusters[a].Signature < idx.Clusters[b].Signature
	})
	return idx
}

// join adds candidate i to the first cluster with signature sig, creating one
// if none exists.
func (idx *ClusterIndex) join(sig uint32, i int) {
	for c := range idx.Clusters {
		if idx.Clusters[c].Signature == sig {
			idx.Clusters[c].Members = append(idx.Clusters[c].Members, i)
			return
		}
	}
	idx.Clusters = append(idx.Clusters, Cluster{Signature: sig, Members: []int{i}})
}

// TotalMembers returns the number of candidates across all clusters.
func (idx *ClusterIndex) TotalMembers() int {
	total := 0
	for c := range idx.Clusters {
		total += idx.Clusters[c].Size()
	}
	return total
}

// MaxDepth returns the size of the largest cluster.
func (idx *ClusterIndex) MaxDepth() int {
	depth := 0
	for c := range idx.Clusters {
		depth = max(depth, idx.Clusters[c].Size())
	}
	return depth
}
