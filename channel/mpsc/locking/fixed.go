// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package locking implements the MPSC-locking channel discipline: many
// producers share one token buffer and one consumer-owned coordination
// buffer, serialized by the consumer coordination buffer's global lock
// (comm.Manager.AcquireGlobalLock/ReleaseGlobalLock). Unlike SPSC, a
// producer never mutates the shared coordination buffer directly — it
// pulls the buffer's current head/tail cells into its own local copy
// while holding the lock, computes against that local copy, then mirrors
// only the updated head cell back before releasing. The consumer acquires
// the same lock before popping, since popping also mutates the shared
// depth (head-tail) relationship a concurrent producer might be
// computing against.
package locking

import (
	"context"

	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/channel"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/memory"
)

// FixedConsumer owns the token buffer and coordination buffer shared by
// every producer of a fixed-size MPSC-locking channel.
type FixedConsumer struct {
	base         *channel.Base
	globalTokens *comm.GlobalSlot
	globalCoord  *comm.GlobalSlot
}

// NewFixedConsumer builds the consumer side of a fixed-size MPSC-locking
// channel, promoting tokenBuffer and coordSlot so every producer can reach
// them.
func NewFixedConsumer(
	mgr comm.Manager,
	tag comm.Tag,
	tokenBuffer, coordSlot *memory.LocalSlot,
	capacity, tokenSize uint64,
) (*FixedConsumer, error) {
	base, err := channel.NewBase(mgr, tokenBuffer, coordSlot, capacity, tokenSize)
	if err != nil {
		return nil, err
	}
	globalTokens, err := mgr.PromoteLocalMemorySlot(tokenBuffer, tag)
	if err != nil {
		return nil, err
	}
	globalCoord, err := mgr.PromoteLocalMemorySlot(coordSlot, tag)
	if err != nil {
		return nil, err
	}
	return &FixedConsumer{base: base, globalTokens: globalTokens, globalCoord: globalCoord}, nil
}

// GlobalTokenBuffer returns the promoted handle to the shared token buffer.
func (c *FixedConsumer) GlobalTokenBuffer() *comm.GlobalSlot { return c.globalTokens }

// GlobalCoordinationBuffer returns the promoted handle to the shared
// coordination buffer every producer locks before mutating.
func (c *FixedConsumer) GlobalCoordinationBuffer() *comm.GlobalSlot { return c.globalCoord }

// IsEmpty reports whether the channel currently holds no tokens. Read
// without the lock, so it is a best-effort snapshot under contention.
func (c *FixedConsumer) IsEmpty() bool { return c.base.IsEmpty() }

// GetDepth returns the channel's current depth without acquiring the lock
// or pumping progress; callers that need an up-to-date value should Pop
// or retry.
func (c *FixedConsumer) GetDepth() uint64 { return c.base.GetDepth() }

// GetCapacity returns the channel's token capacity.
func (c *FixedConsumer) GetCapacity() uint64 { return c.base.GetCapacity() }

// Peek returns the index into the token buffer of the token at position
// pos (0 = oldest unpopped token). Returns [channel.ErrPeekOutOfRange] if
// pos is not less than the current depth.
func (c *FixedConsumer) Peek(pos uint64) (uint64, error) {
	if err := c.base.Manager.QueryMemorySlotUpdates(c.globalTokens); err != nil {
		return 0, err
	}
	depth := c.base.GetDepth()
	if pos >= depth {
		return 0, channel.ErrPeekOutOfRange
	}
	tail := c.base.Coord.Ring.TailPosition()
	return (tail + pos) % c.base.GetCapacity(), nil
}

// Pop removes n tokens under the shared lock. Returns (false, nil) if the
// lock could not be acquired — the expected, non-fatal outcome of a
// try-lock race, not an error — and the caller should back off and retry.
// Returns (false, [channel.ErrWouldUnderflow]) if fewer than n tokens are
// held.
func (c *FixedConsumer) Pop(ctx context.Context, n uint64) (bool, error) {
	ok, err := c.base.Manager.AcquireGlobalLock(c.globalCoord)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer c.base.Manager.ReleaseGlobalLock(c.globalCoord)

	if err := c.base.Manager.QueryMemorySlotUpdates(c.globalTokens); err != nil {
		return false, err
	}
	depth := c.base.GetDepth()
	if depth < n {
		return false, channel.ErrWouldUnderflow
	}
	if err := c.base.Coord.Ring.AdvanceTail(n); err != nil {
		return false, err
	}
	return true, nil
}

// FixedProducer is one of potentially many producers pushing into a
// shared fixed-size MPSC-locking channel. Each producer keeps its own
// local coordination buffer, used only as scratch space to pull the
// shared buffer's state while holding the lock.
type FixedProducer struct {
	base         *channel.Base
	globalTokens *comm.GlobalSlot
	globalCoord  *comm.GlobalSlot
	tag          comm.Tag
}

// NewFixedProducer builds one producer's view of a fixed-size
// MPSC-locking channel, given the consumer's promoted token buffer and
// coordination buffer handles and a private local coordination buffer
// slot this producer alone uses as pull/mirror scratch space.
func NewFixedProducer(
	mgr comm.Manager,
	tag comm.Tag,
	globalTokens, globalCoord *comm.GlobalSlot,
	localCoordSlot *memory.LocalSlot,
	capacity, tokenSize uint64,
) (*FixedProducer, error) {
	base, err := channel.NewBase(mgr, globalTokens.Source, localCoordSlot, capacity, tokenSize)
	if err != nil {
		return nil, err
	}
	return &FixedProducer{base: base, globalTokens: globalTokens, globalCoord: globalCoord, tag: tag}, nil
}

func (p *FixedProducer) pull(ctx context.Context) error {
	return p.base.Manager.Memcpy(ctx, p.base.Coord.Slot, 0, p.globalCoord, 0, channel.CoordinationBufferSize)
}

// Push copies n tokens (each tokenSize bytes) from src into the channel
// under the shared lock. Returns (false, nil) if the lock could not be
// acquired — the caller should back off and retry, never spin inline.
// Returns (false, [channel.ErrWouldOverflow]) if the channel lacks room
// for n more tokens.
func (p *FixedProducer) Push(ctx context.Context, src *memory.LocalSlot, n uint64) (bool, error) {
	if src.Size < n*p.base.TokenSize {
		return false, hicr.NewLogicError("mpsclocking.FixedProducer.Push", "source slot smaller than n*tokenSize")
	}

	ok, err := p.base.Manager.AcquireGlobalLock(p.globalCoord)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer p.base.Manager.ReleaseGlobalLock(p.globalCoord)

	if err := p.pull(ctx); err != nil {
		return false, hicr.NewTransportError(string(p.tag), "mpsclocking.FixedProducer.Push", err)
	}

	depth := p.base.GetDepth()
	if depth+n > p.base.GetCapacity() {
		return false, channel.ErrWouldOverflow
	}

	headPos := p.base.Coord.Ring.HeadPosition()
	for i := uint64(0); i < n; i++ {
		tokenOffset := ((headPos + i) % p.base.GetCapacity()) * p.base.TokenSize
		if err := p.base.Manager.Memcpy(ctx, p.globalTokens, tokenOffset, src, i*p.base.TokenSize, p.base.TokenSize); err != nil {
			return false, hicr.NewTransportError(string(p.tag), "mpsclocking.FixedProducer.Push", err)
		}
	}

	if err := p.base.Coord.Ring.AdvanceHead(n); err != nil {
		return false, err
	}
	if err := channel.MirrorCell(ctx, p.base.Manager, p.globalCoord, p.base.Coord.Slot, channel.HeadAdvanceCountIdx); err != nil {
		return false, hicr.NewTransportError(string(p.tag), "mpsclocking.FixedProducer.Push", err)
	}
	return true, nil
}
