package sched

import (
	"github.com/baiqidi/overlay-sched/sched/internal/hash"
)

// HistogramBins is the width of a per-message byte histogram.
const HistogramBins = 256

// Histogram is an L2-normalized byte-value frequency vector.
// A zero vector marks a message whose bytes could not be read.
type Histogram [HistogramBins]float64

// Features is the session-level feature bundle of one test case.
// A bundle is immutable once built; rebuilding allocates a new one.
type Features struct {
	MessageCount int         // Regions, or 1 for a non-empty file without regions, or 0
	Histograms   []Histogram // One per message
	StateTrace   []uint32    // Trace of the last region that recorded one
	Signature    uint32      // Hash of StateTrace; 0 when the trace is empty

	built bool
}

// Built reports whether the bundle is complete and may be read.
func (f *Features) Built() bool {
	return f != nil && f.built
}

// FeatureCache is the lazily built feature slot owned by a TestCase.
// It is either empty or holds a built bundle; there is no partial state.
type FeatureCache struct {
	feat   *Features
	builds int // number of builds since creation
}

// GetOrBuild returns the cached bundle, calling build only when the cache is
// empty. build must return a bundle with Built() true.
func (c *FeatureCache) GetOrBuild(build func() *Features) *Features {
	if c.feat.Built() {
		return c.feat
	}
	feat := build()
	if !feat.Built() {
		panic("FeatureCache.GetOrBuild: build returned an unbuilt bundle")
	}
	c.feat = feat
	c.builds++
	return feat
}

// Peek returns the cached bundle without building, or nil.
func (c *FeatureCache) Peek() *Features {
	if c.feat.Built() {
		return c.feat
	}
	return nil
}

// Built reports whether the cache currently holds a bundle.
func (c *FeatureCache) Built() bool {
	return c.feat.Built()
}

// Invalidate drops the cached bundle. The next GetOrBuild rebuilds it.
func (c *FeatureCache) Invalidate() {
	c.feat = nil
}

// Builds returns how many times the cache has been filled.
func (c *FeatureCache) Builds() int {
	return c.builds
}

// StateSetSignature hashes the sorted, deduplicated states of trace. Unlike
// Features.Signature it ignores order; it is exposed for diagnostics only.
func StateSetSignature(trace []uint32) uint32 {
	return hash.StateSetSignature(trace)
}
