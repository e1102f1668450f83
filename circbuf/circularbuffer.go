// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package circbuf implements the circular buffer shared by every channel
// discipline. Head and tail are cumulative advance counts (never wrapped
// to capacity themselves; only their *positions*, head%capacity and
// tail%capacity, are), the same cached-index technique
// code.hybscloud.com/lfq's SPSC uses for its head/tail fields — it is what
// lets a producer's and a consumer's independent CircularBuffer copies
// converge correctly: each side only ever mirrors the *other* side's
// advance count to its own copy, and depth is computed as head-tail
// instead of stored as a third, separately-mutated cell that both push and
// pop would otherwise need to agree on.
package circbuf

import (
	"code.hybscloud.com/atomix"

	hicr "code.hybscloud.com/hicr"
)

// CircularBuffer abstracts the head/tail bookkeeping of a bounded ring: it
// holds no payload, only the logic needed to turn previous head/tail
// advances into the next valid offset. The head and tail cells are supplied
// by the caller (see [New]) so a channel coordination buffer can alias them
// directly onto a memory slot,
// matching the wire layout's HEAD_ADVANCE_COUNT/TAIL_ADVANCE_COUNT cells.
type CircularBuffer struct {
	capacity uint64
	head     *atomix.Uint64
	tail     *atomix.Uint64
}

// New builds a CircularBuffer of the given capacity backed by head and
// tail cells supplied by the caller, zeroing both. Passing
// externally-owned cells lets a coordination buffer alias them directly
// onto a memory slot's bytes.
func New(capacity uint64, head, tail *atomix.Uint64) *CircularBuffer {
	head.StoreRelaxed(0)
	tail.StoreRelaxed(0)
	return &CircularBuffer{capacity: capacity, head: head, tail: tail}
}

// HeadPosition returns the ring index immediately after the last token
// pushed: the cumulative head advance count modulo capacity.
func (c *CircularBuffer) HeadPosition() uint64 {
	return c.head.LoadAcquire() % c.capacity
}

// TailPosition returns the ring index of the oldest unpopped token: the
// cumulative tail advance count modulo capacity.
func (c *CircularBuffer) TailPosition() uint64 {
	return c.tail.LoadAcquire() % c.capacity
}

// Capacity returns how many tokens fit in the buffer.
func (c *CircularBuffer) Capacity() uint64 {
	return c.capacity
}

// Depth returns how many tokens are currently held in the buffer: the gap
// between the cumulative head and tail advance counts.
func (c *CircularBuffer) Depth() uint64 {
	return c.head.LoadAcquire() - c.tail.LoadAcquire()
}

// IsFull reports whether the buffer currently holds capacity tokens.
func (c *CircularBuffer) IsFull() bool {
	return c.Depth() == c.capacity
}

// IsEmpty reports whether the buffer currently holds no tokens.
func (c *CircularBuffer) IsEmpty() bool {
	return c.Depth() == 0
}

// AdvanceHead grows the buffer's depth by n, as happens when n tokens are
// pushed. Returns [hicr.ErrWouldOverflow] if doing so would exceed
// capacity; the caller should treat this as a normal backpressure signal.
func (c *CircularBuffer) AdvanceHead(n uint64) error {
	head := c.head.LoadAcquire()
	tail := c.tail.LoadAcquire()
	if head+n-tail > c.capacity {
		return hicr.NewCapacityError("circbuf.AdvanceHead", hicr.ReasonWouldOverflow)
	}
	c.head.StoreRelease(head + n)
	return nil
}

// AdvanceTail moves the tail advance count forward by n, as happens when n
// tokens are popped. Returns [hicr.ErrWouldUnderflow] if n exceeds the
// current depth.
func (c *CircularBuffer) AdvanceTail(n uint64) error {
	head := c.head.LoadAcquire()
	tail := c.tail.LoadAcquire()
	if n > head-tail {
		return hicr.NewCapacityError("circbuf.AdvanceTail", hicr.ReasonWouldUnderflow)
	}
	c.tail.StoreRelease(tail + n)
	return nil
}
