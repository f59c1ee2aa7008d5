package sched

import (
	"fmt"
)

// WindowCapacity bounds the lookahead window. Selection costs O(capacity²)
// similarity comparisons per call.
const WindowCapacity = 16

// SlidingWindowQueue is a bounded lookahead buffer over the host's singly
// linked queue. The list itself is never modified; the window only holds
// references and a cursor to the first node it has not yet taken.
type SlidingWindowQueue struct {
	capacity int
	entries  []*TestCase
	tail     *TestCase // next list node beyond the window
}

// NewSlidingWindowQueue creates an empty window holding at most capacity
// entries. Panics unless 1 <= capacity <= WindowCapacity.
func NewSlidingWindowQueue(capacity int) *SlidingWindowQueue {
	if capacity < 1 || capacity > WindowCapacity {
		panic(fmt.Sprintf("NewSlidingWindowQueue: capacity must be in [1, %d], got %d", WindowCapacity, capacity))
	}
	return &SlidingWindowQueue{
		capacity: capacity,
		entries:  make([]*TestCase, 0, capacity),
	}
}

// Current returns the entry that would head the next pick: the first window
// slot, or the next un-windowed node when the window is empty.
func (w *SlidingWindowQueue) Current() *TestCase {
	if len(w.entries) > 0 {
		return w.entries[0]
	}
	return w.tail
}

// Pick selects one entry for the queue whose head is start.
//
// The window is rebuilt from start when it is empty or its first slot is not
// start (first call, or the host moved the head). choose runs over the window
// contents; its result is removed from the window, the window is topped up
// from the tail cursor, and the result is returned. If choose returns nil or
// an entry outside the window, start is returned instead.
// Returns nil only for a nil start.
func (w *SlidingWindowQueue) Pick(start *TestCase, choose func([]*TestCase) *TestCase) *TestCase {
	if start == nil {
		return nil
	}
	if len(w.entries) == 0 || w.entries[0] != start {
		w.rebuild(start)
	}

	choice := choose(w.entries)
	if choice == nil || !w.remove(choice) {
		choice = start
		w.remove(start)
	}
	w.refill()
	return choice
}

// Entries returns the window contents in list order. The slice is only valid
// until the next Pick or Reset.
func (w *SlidingWindowQueue) Entries() []*TestCase {
	return w.entries
}

// Len returns the number of windowed entries.
func (w *SlidingWindowQueue) Len() int {
	return len(w.entries)
}

// Capacity returns the window bound.
func (w *SlidingWindowQueue) Capacity() int {
	return w.capacity
}

// Reset empties the window and drops the tail cursor. Call it whenever the
// host rebuilds its queue independently of the window.
func (w *SlidingWindowQueue) Reset() {
	clear(w.entries)
	w.entries = w.entries[:0]
	w.tail = nil
}

func (w *SlidingWindowQueue) rebuild(start *TestCase) {
	w.Reset()
	w.tail = start
	w.refill()
}

// remove drops tc from the window, keeping the order of the rest. Reports
// whether tc was windowed.
func (w *SlidingWindowQueue) remove(tc *TestCase) bool {
	for i, e := range w.entries {
		if e == tc {
			copy(w.entries[i:], w.entries[i+1:])
			w.entries[len(w.entries)-1] = nil
			w.entries = w.entries[:len(w.entries)-1]
			return true
		}
	}
	return false
}

func (w *SlidingWindowQueue) refill() {
	for w.tail != nil && len(w.entries) < w.capacity {
		w.entries = append(w.entries, w.tail)
		w.tail = w.tail.Next
	}
}
