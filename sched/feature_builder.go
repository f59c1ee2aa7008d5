package sched

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/baiqidi/overlay-sched/sched/internal/hash"
)

// ContentReader loads the bytes of a test case, at most tc.Len of them.
// A short read is not an error; the builder clamps regions to what was read.
type ContentReader interface {
	ReadContent(tc *TestCase) ([]byte, error)
}

// FileReader reads test case bytes from tc.Path.
type FileReader struct{}

// ReadContent implements ContentReader for FileReader.
func (FileReader) ReadContent(tc *TestCase) ([]byte, error) {
	if tc.Len <= 0 {
		return nil, nil
	}
	f, err := os.Open(tc.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// The buffer grows with what is on disk, not with the recorded length.
	data, err := io.ReadAll(io.LimitReader(f, int64(tc.Len)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tc.Path, err)
	}
	return data, nil
}

// FeatureBuilder turns test cases into cached Features bundles.
// Building never fails: unreadable content degrades to zero histograms and
// the degraded bundle is cached like any other.
type FeatureBuilder struct {
	reader  ContentReader
	metrics *Metrics
}

// NewFeatureBuilder creates a builder reading content through reader.
// metrics may be nil. Panics if reader is nil.
func NewFeatureBuilder(reader ContentReader, metrics *Metrics) *FeatureBuilder {
	if reader == nil {
		panic("NewFeatureBuilder: reader must not be nil")
	}
	return &FeatureBuilder{reader: reader, metrics: metrics}
}

// GetOrBuild returns tc's cached features, building them on first use.
// Returns nil only for a nil test case.
func (b *FeatureBuilder) GetOrBuild(tc *TestCase) *Features {
	if tc == nil {
		return nil
	}
	return tc.features.GetOrBuild(func() *Features { return b.Build(tc) })
}

// Build computes a fresh bundle for tc without touching its cache.
func (b *FeatureBuilder) Build(tc *TestCase) *Features {
	feat := &Features{MessageCount: messageCount(tc)}

	outcome := "ok"
	if feat.MessageCount > 0 {
		feat.Histograms = make([]Histogram, feat.MessageCount)
		data, err := b.reader.ReadContent(tc)
		if err != nil {
			logrus.Warnf("feature build: cannot read test case %d (%s): %v; using zero histograms", tc.ID, tc.Path, err)
			outcome = "unreadable"
		} else {
			fillHistograms(feat.Histograms, tc, data)
		}
	} else {
		outcome = "empty"
	}

	feat.StateTrace = lastStateTrace(tc.Regions)
	feat.Signature = hash.TraceSignature(feat.StateTrace)
	feat.built = true

	b.metrics.observeFeatureBuild(outcome)
	logrus.Debugf("feature build: test case %d, messages=%d, trace=%d states, signature=%#08x",
		tc.ID, feat.MessageCount, len(feat.StateTrace), feat.Signature)
	return feat
}

// messageCount segments tc: one message per region, else the whole file as a
// single message when it is non-empty.
func messageCount(tc *TestCase) int {
	if len(tc.Regions) > 0 {
		return len(tc.Regions)
	}
	if tc.Len > 0 {
		return 1
	}
	return 0
}

// fillHistograms tallies and normalizes one histogram per message. Message
// ranges are clamped into [0, len(data)); empty ranges keep a zero histogram.
func fillHistograms(hists []Histogram, tc *TestCase, data []byte) {
	for i := range hists {
		start, end := 0, tc.Len-1
		if len(tc.Regions) > 0 {
			start, end = tc.Regions[i].Start, tc.Regions[i].End
		}
		if start < 0 {
			start = 0
		}
		if end < start || start >= len(data) {
			continue
		}
		if end >= len(data) {
			end = len(data) - 1
		}

		h := &hists[i]
		for _, c := range data[start : end+1] {
			h[c]++
		}
		normalize(h)
	}
}

// normalize scales h to unit Euclidean length; a zero vector is left as is.
func normalize(h *Histogram) {
	normSq := 0.0
	for _, v := range h {
		normSq += v * v
	}
	if normSq == 0 {
		return
	}
	inv := 1 / math.Sqrt(normSq)
	for b := range h {
		h[b] *= inv
	}
}

// lastStateTrace copies the state sequence of the last region that recorded
// one, scanning from the end. Returns nil when no region carries a trace.
func lastStateTrace(regions []Region) []uint32 {
	for i := len(regions) - 1; i >= 0; i-- {
		if len(regions[i].States) > 0 {
			trace := make([]uint32, len(regions[i].States))
			copy(trace, regions[i].States)
			return trace
		}
	}
	return nil
}
