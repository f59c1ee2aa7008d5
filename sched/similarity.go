package sched

import (
	"github.com/baiqidi/overlay-sched/sched/internal/util"
)

// unitTolerance is the rounding slack of a 256-term dot product of unit
// vectors. Results this close to 1 are reported as exactly 1.
const unitTolerance = 1e-12

// HistogramSimilarity returns the cosine similarity of two unit-normalized
// histograms: their dot product, bounded to [0, 1]. Equal non-zero histograms
// score exactly 1; a zero histogram scores 0 against anything.
func HistogramSimilarity(a, b *Histogram) float64 {
	if a == nil || b == nil {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	if dot >= 1-unitTolerance {
		return 1
	}
	return util.Clamp01(dot)
}

// SequenceSimilarity scores two message sequences in [0, 1].
//
// Messages are paired by greedy maximum-weight matching over the full
// pairwise histogram-similarity matrix: the highest unused cell is taken
// (ties go to the first cell in row-major order), its row and column are
// retired, and this repeats until one side runs out. The matched sum is
// divided by the longer sequence's length, so unmatched messages count as 0.
//
// Returns 0 if either bundle is nil or has no messages.
func SequenceSimilarity(a, b *Features) float64 {
	if a == nil || b == nil {
		return 0
	}
	m, n := a.MessageCount, b.MessageCount
	if m == 0 || n == 0 {
		return 0
	}

	sim := make([]float64, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sim[i*n+j] = HistogramSimilarity(&a.Histograms[i], &b.Histograms[j])
		}
	}

	rowUsed := make([]bool, m)
	colUsed := make([]bool, n)
	total := 0.0
	for matched := 0; matched < min(m, n); matched++ {
		best, bi, bj := -1.0, -1, -1
		for i := 0; i < m; i++ {
			if rowUsed[i] {
				continue
			}
			for j := 0; j < n; j++ {
				if colUsed[j] {
					continue
				}
				if v := sim[i*n+j]; v > best {
					best, bi, bj = v, i, j
				}
			}
		}
		rowUsed[bi] = true
		colUsed[bj] = true
		total += best
	}

	return util.Clamp01(total / float64(max(m, n)))
}

// PositionalSimilarity pairs message i of a with message i of b and divides
// the sum by the longer length. It ignores reordering and padding, so the
// scheduler does not use it; it is kept for diagnostics.
func PositionalSimilarity(a, b *Features) float64 {
	if a == nil || b == nil {
		return 0
	}
	m, n := a.MessageCount, b.MessageCount
	if m == 0 || n == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < min(m, n); i++ {
		total += HistogramSimilarity(&a.Histograms[i], &b.Histograms[i])
	}
	return util.Clamp01(total / float64(max(m, n)))
}
