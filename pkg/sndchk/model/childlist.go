// Package model implements the polymorphic candidate-result tree of spec
// §3/§4.5: ResultModel -> ReleaseGroup -> Release -> Medium ->
// {Disc, Recording} -> Track -> Fingerprint -> stream-match.
//
// Per spec.md's own design note, no common virtual base is attempted for
// the eight near-identical add/find/erase/clear layers — each entity is
// its own strongly-typed struct, and the uniformity is factored out as
// composition (childList) rather than inheritance.
package model

import "sort"

// childList is the shared add/find/erase/clear primitive every tree layer
// composes. It preserves the original's "erase moves the freed slot to the
// tail for reuse" discipline (spec §4.5 "Erase semantics") even though Go's
// GC makes it unnecessary for correctness — fidelity to the spec's
// documented operational contract (iterators unstable across erase,
// relative order of survivors preserved) matters for callers relying on it.
type childList[T any] struct {
	items []T
	size  int
}

func (c *childList[T]) Len() int { return c.size }

func (c *childList[T]) At(i int) *T { return &c.items[i] }

// All returns the logically-live prefix of items.
func (c *childList[T]) All() []T { return c.items[:c.size] }

// Add appends child, reusing a previously-cleared/erased slot if one is
// available past the logical size.
func (c *childList[T]) Add(item T) *T {
	if c.size < len(c.items) {
		c.items[c.size] = item
	} else {
		c.items = append(c.items, item)
	}
	c.size++
	return &c.items[c.size-1]
}

// Erase removes the child at logical index i, sliding survivors left by
// one and moving the erased value to the tail slot for future reuse.
func (c *childList[T]) Erase(i int) {
	if i < 0 || i >= c.size {
		return
	}
	erased := c.items[i]
	copy(c.items[i:c.size-1], c.items[i+1:c.size])
	c.items[c.size-1] = erased
	c.size--
}

// Clear resets the logical size to zero without deallocating storage.
func (c *childList[T]) Clear() { c.size = 0 }

// Sort stably reorders the live prefix by less.
func (c *childList[T]) Sort(less func(a, b *T) bool) {
	sort.SliceStable(c.items[:c.size], func(i, j int) bool {
		return less(&c.items[i], &c.items[j])
	})
}

// FindIndex returns the index of the first live item matching pred, or -1.
func (c *childList[T]) FindIndex(pred func(*T) bool) int {
	for i := 0; i < c.size; i++ {
		if pred(&c.items[i]) {
			return i
		}
	}
	return -1
}
