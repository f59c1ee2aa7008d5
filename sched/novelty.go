package sched

import (
	"sort"

	"github.com/baiqidi/overlay-sched/sched/internal/util"
)

// ScoreNovelty fills Scores and Order for every cluster of idx and writes each
// candidate's novelty to its NoveltyScore.
//
// A singleton has nothing to be compared against and scores 1. Otherwise a
// member scores 1 minus its mean SequenceSimilarity to the other members of
// its cluster. Order ranks members by novelty descending; ties keep scan order.
func ScoreNovelty(idx *ClusterIndex, candidates []*TestCase) {
	for c := range idx.Clusters {
		cl := &idx.Clusters[c]
		m := cl.Size()
		cl.Scores = make([]float64, m)
		cl.Order = make([]int, m)
		for k := range cl.Order {
			cl.Order[k] = k
		}

		if m == 1 {
			cl.Scores[0] = 1
		} else {
			sims := make([]float64, 0, m-1)
			for k := 0; k < m; k++ {
				sims = sims[:0]
				fk := idx.Features[cl.Members[k]]
				for j := 0; j < m; j++ {
					if j == k {
						continue
					}
					sims = append(sims, SequenceSimilarity(fk, idx.Features[cl.Members[j]]))
				}
				cl.Scores[k] = 1 - util.Mean(sims)
			}
			sort.SliceStable(cl.Order, func(a, b int) bool {
				return cl.Scores[cl.Order[a]] > cl.Scores[cl.Order[b]]
			})
		}

		for k, member := range cl.Members {
			if tc := candidates[member]; tc != nil {
				tc.NoveltyScore = cl.Scores[k]
			}
		}
	}
}
