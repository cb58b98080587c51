// Package ident assigns trace identifiers to instrumented value sites.
//
// Identifiers live in the ring [0, capacity). Within one pass invocation they
// increase by one per emitted logging call and wrap silently; across
// invocations the counter is continued from a CounterStore so that separately
// instrumented compilation units do not reuse each other's identifiers.
package ident

import (
	"fortio.org/safecast"
)

// DefaultCapacity is the size of the identifier ring when none is configured.
const DefaultCapacity uint32 = 1 << 16

// Allocator hands out identifiers. It is not safe for concurrent use; a pass
// invocation owns exactly one allocator.
type Allocator struct {
	store    CounterStore
	capacity uint32
	initial  uint32
	next     uint32
	issued   uint64
	wraps    uint64
	history  []uint64
}

// NewAllocator creates an allocator over store. A zero capacity selects
// DefaultCapacity.
func NewAllocator(store CounterStore, capacity uint32) *Allocator {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if store == nil {
		store = &MemStore{}
	}
	return &Allocator{store: store, capacity: capacity}
}

// Load seeds the counter from the last recorded value. On error (missing or
// unreadable store) the counter starts at zero and the error is returned for
// the caller to report; it is never fatal.
func (a *Allocator) Load() error {
	a.initial, a.next, a.issued, a.wraps = 0, 0, 0, 0
	a.history = nil
	values, err := a.store.Load()
	if err != nil {
		return err
	}
	a.history = values
	if len(values) == 0 {
		return nil
	}
	last := values[len(values)-1] % uint64(a.capacity)
	v, err := safecast.Conv[uint32](last)
	if err != nil {
		return err
	}
	a.initial, a.next = v, v
	return nil
}

// Next returns the current identifier and advances the counter.
func (a *Allocator) Next() uint32 {
	id := a.next
	a.next = (a.next + 1) % a.capacity
	a.issued++
	if a.next == 0 {
		a.wraps++
	}
	return id
}

// Peek returns the identifier the next call to Next will hand out.
func (a *Allocator) Peek() uint32 { return a.next }

// Initial returns the value the counter was seeded with.
func (a *Allocator) Initial() uint32 { return a.initial }

// Issued returns how many identifiers were handed out since Load.
func (a *Allocator) Issued() uint64 { return a.issued }

// Wraps returns how many times the counter wrapped to zero since Load.
func (a *Allocator) Wraps() uint64 { return a.wraps }

// History returns every value the store held when Load ran, oldest first.
func (a *Allocator) History() []uint64 { return a.history }

// Capacity returns the size of the identifier ring.
func (a *Allocator) Capacity() uint32 { return a.capacity }

// Persist appends the current counter value to the store.
func (a *Allocator) Persist() error {
	return a.store.Append(uint64(a.next))
}
