package sched

import (
	"fmt"
)

// memReader serves test case content from memory, keyed by Path.
type memReader map[string][]byte

func (m memReader) ReadContent(tc *TestCase) ([]byte, error) {
	data, ok := m[tc.Path]
	if !ok {
		return nil, fmt.Errorf("no content for %s", tc.Path)
	}
	if len(data) > tc.Len {
		data = data[:tc.Len]
	}
	return data, nil
}

// session builds a test case whose messages are the given payloads, back to
// back, with trace recorded on the last message. It registers the content
// with r.
func session(r memReader, id int, trace []uint32, messages ...string) *TestCase {
	path := fmt.Sprintf("mem://%d", id)
	var data []byte
	regions := make([]Region, 0, len(messages))
	for i, msg := range messages {
		start := len(data)
		data = append(data, msg...)
		reg := Region{Start: start, End: len(data) - 1}
		if i == len(messages)-1 {
			reg.States = trace
		}
		regions = append(regions, reg)
	}
	r[path] = data
	return NewTestCase(id, path, len(data), regions)
}

// newTestScheduler creates a full-window scheduler over r without metrics.
func newTestScheduler(r memReader) *Scheduler {
	return NewScheduler(NewConfig(WindowCapacity, r, nil))
}
