// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package nonlocking implements the MPSC-nonlocking channel discipline: a
// bank of independent SPSC sub-channels, one per producer, with no shared
// coordination buffer and therefore no lock. Each producer pushes into its
// own sub-channel exactly as it would a plain SPSC channel; the consumer
// aggregates all sub-channels and drains them in round-robin order so no
// single producer can starve the others.
package nonlocking

import (
	"context"
	"errors"

	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/channel"
	"code.hybscloud.com/hicr/channel/spsc"
)

// FixedConsumer aggregates the per-producer fixed-size SPSC sub-channels
// of an MPSC-nonlocking channel, serving them in round-robin order.
type FixedConsumer struct {
	subs       []*spsc.FixedConsumer
	next       int
	lastPeeked int
}

// NewFixedConsumer builds a round-robin consumer over subs, one
// spsc.FixedConsumer per producer, in producer-index order.
func NewFixedConsumer(subs []*spsc.FixedConsumer) *FixedConsumer {
	return &FixedConsumer{subs: subs, lastPeeked: -1}
}

// NumProducers returns how many producer sub-channels this consumer
// aggregates.
func (c *FixedConsumer) NumProducers() int { return len(c.subs) }

// UpdateDepth pumps progress on every sub-channel and returns the sum of
// their depths.
func (c *FixedConsumer) UpdateDepth() (uint64, error) {
	var total uint64
	for _, s := range c.subs {
		d, err := s.UpdateDepth()
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// IsEmpty reports whether every sub-channel is currently empty.
func (c *FixedConsumer) IsEmpty() bool {
	for _, s := range c.subs {
		if !s.IsEmpty() {
			return false
		}
	}
	return true
}

// Peek scans the sub-channels starting from the one just after whichever
// was last served, returning the first non-empty sub-channel's producer
// index and the index of its oldest unpopped token in that sub-channel's
// token buffer. A subsequent Pop drains from the sub-channel this call
// found. Returns [channel.ErrWouldUnderflow] if every sub-channel is
// empty.
func (c *FixedConsumer) Peek() (producer int, tokenIndex uint64, err error) {
	n := len(c.subs)
	for i := 0; i < n; i++ {
		p := (c.next + i) % n
		idx, err := c.subs[p].Peek(0)
		if err == nil {
			c.lastPeeked = p
			return p, idx, nil
		}
		if !errors.Is(err, channel.ErrPeekOutOfRange) {
			return 0, 0, err
		}
	}
	return 0, 0, channel.ErrWouldUnderflow
}

// Pop removes one token from the sub-channel most recently identified by
// Peek and advances the round-robin cursor past it. Returns a
// [hicr.LogicError] if called without a preceding Peek.
func (c *FixedConsumer) Pop(ctx context.Context) error {
	if c.lastPeeked < 0 {
		return hicr.NewLogicError("mpscnonlocking.FixedConsumer.Pop", "Pop called without a preceding Peek")
	}
	p := c.lastPeeked
	c.lastPeeked = -1
	if err := c.subs[p].Pop(ctx, 1); err != nil {
		return err
	}
	c.next = (p + 1) % len(c.subs)
	return nil
}
