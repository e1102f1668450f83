// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nonlocking

import (
	"context"
	"errors"

	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/channel"
	"code.hybscloud.com/hicr/channel/spsc"
)

// VariableConsumer aggregates the per-producer variable-size SPSC
// sub-channels of an MPSC-nonlocking channel, serving them in
// round-robin order.
type VariableConsumer struct {
	subs       []*spsc.VariableConsumer
	next       int
	lastPeeked int
}

// NewVariableConsumer builds a round-robin consumer over subs, one
// spsc.VariableConsumer per producer, in producer-index order.
func NewVariableConsumer(subs []*spsc.VariableConsumer) *VariableConsumer {
	return &VariableConsumer{subs: subs, lastPeeked: -1}
}

// NumProducers returns how many producer sub-channels this consumer
// aggregates.
func (c *VariableConsumer) NumProducers() int { return len(c.subs) }

// IsEmpty reports whether every sub-channel is currently empty.
func (c *VariableConsumer) IsEmpty() bool {
	for _, s := range c.subs {
		if !s.IsEmpty() {
			return false
		}
	}
	return true
}

// Peek scans the sub-channels starting from the one just after whichever
// was last served, returning the first non-empty sub-channel's producer
// index and the [offset, length] of its oldest unpopped token in that
// sub-channel's payload buffer. A subsequent Pop/CopyOut operates against
// the sub-channel this call found. Returns [channel.ErrWouldUnderflow] if
// every sub-channel is empty.
func (c *VariableConsumer) Peek() (producer int, offset, length uint64, err error) {
	n := len(c.subs)
	for i := 0; i < n; i++ {
		p := (c.next + i) % n
		off, l, err := c.subs[p].Peek()
		if err == nil {
			c.lastPeeked = p
			return p, off, l, nil
		}
		if !errors.Is(err, channel.ErrWouldUnderflow) {
			return 0, 0, 0, err
		}
	}
	return 0, 0, 0, channel.ErrWouldUnderflow
}

// CopyOut copies the token most recently returned by Peek out of its
// producer's sub-channel into dst, which must be at least length bytes.
func (c *VariableConsumer) CopyOut(dst []byte, offset, length uint64) error {
	if c.lastPeeked < 0 {
		return hicr.NewLogicError("mpscnonlocking.VariableConsumer.CopyOut", "CopyOut called without a preceding Peek")
	}
	c.subs[c.lastPeeked].CopyOut(dst, offset, length)
	return nil
}

// Pop removes one token from the sub-channel most recently identified by
// Peek and advances the round-robin cursor past it. Returns a
// [hicr.LogicError] if called without a preceding Peek.
func (c *VariableConsumer) Pop(ctx context.Context) error {
	if c.lastPeeked < 0 {
		return hicr.NewLogicError("mpscnonlocking.VariableConsumer.Pop", "Pop called without a preceding Peek")
	}
	p := c.lastPeeked
	c.lastPeeked = -1
	if err := c.subs[p].Pop(ctx); err != nil {
		return err
	}
	c.next = (p + 1) % len(c.subs)
	return nil
}
