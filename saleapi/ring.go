package saleapi

import "sync"

// Ring is a bounded, concurrency-safe tail of recent observations. It backs
// the monitor's observation feed; once full, the oldest entries are dropped.
type Ring struct {
	mu   sync.Mutex
	buf  []Observation
	next int
	full bool
}

// NewRing returns a ring holding up to size observations.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{buf: make([]Observation, size)}
}

// Observe appends one observation, evicting the oldest when full.
func (r *Ring) Observe(o Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = o
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// Tail returns the retained observations, oldest first.
func (r *Ring) Tail() []Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]Observation, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]Observation, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
