// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package spsc implements the single-producer single-consumer channel
// discipline: a fixed-size token buffer and coordination buffer owned by
// the consumer and promoted so the producer can reach them, plus (for
// FixedProducer) the producer's own local coordination copy mirrored one
// cell at a time.
package spsc

import (
	"context"

	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/channel"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/memory"
)

// FixedConsumer owns the token buffer and coordination buffer for a
// fixed-size SPSC channel.
type FixedConsumer struct {
	base          *channel.Base
	globalTokens  *comm.GlobalSlot
	globalCoord   *comm.GlobalSlot
	producerCoord *comm.GlobalSlot // producer's own coordination buffer, mirrored on pop
}

// NewFixedConsumer builds the consumer side of a fixed-size SPSC channel.
// tokenBuffer and coordSlot are promoted under tag so the producer can
// reach them; producerCoord is the already-promoted handle to the
// producer's local coordination buffer, mirrored on every Pop.
func NewFixedConsumer(
	ctx context.Context,
	mgr comm.Manager,
	tag comm.Tag,
	tokenBuffer, coordSlot *memory.LocalSlot,
	producerCoord *comm.GlobalSlot,
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

	return &FixedConsumer{base: base, globalTokens: globalTokens, globalCoord: globalCoord, producerCoord: producerCoord}, nil
}

// GlobalTokenBuffer returns the promoted handle to the token buffer, for
// the producer side to reach via out-of-band serialization.
func (c *FixedConsumer) GlobalTokenBuffer() *comm.GlobalSlot { return c.globalTokens }

// GlobalCoordinationBuffer returns the promoted handle to this consumer's
// coordination buffer.
func (c *FixedConsumer) GlobalCoordinationBuffer() *comm.GlobalSlot { return c.globalCoord }

func (c *FixedConsumer) updateDepth() (uint64, error) {
	return c.base.UpdateDepth(c.globalTokens)
}

// UpdateDepth pumps progress on the token buffer and returns the refreshed
// depth. Exposed so a consumer that aggregates several sub-channels (the
// MPSC non-locking discipline) can refresh each of them in turn.
func (c *FixedConsumer) UpdateDepth() (uint64, error) { return c.updateDepth() }

// IsEmpty reports whether the channel currently holds no tokens.
func (c *FixedConsumer) IsEmpty() bool { return c.base.IsEmpty() }

// GetCapacity returns the channel's token capacity.
func (c *FixedConsumer) GetCapacity() uint64 { return c.base.GetCapacity() }

// Peek returns the index into the token buffer of the token at position
// pos (0 = oldest unpopped token). Returns [channel.ErrPeekOutOfRange] if
// pos is not less than the current depth.
func (c *FixedConsumer) Peek(pos uint64) (uint64, error) {
	depth, err := c.updateDepth()
	if err != nil {
		return 0, err
	}
	if pos >= depth {
		return 0, channel.ErrPeekOutOfRange
	}
	tail := c.base.Coord.Ring.TailPosition()
	return (tail + pos) % c.base.GetCapacity(), nil
}

// Pop removes n tokens from the channel and mirrors the new tail position
// to the producer's coordination buffer via a single cell-sized memcpy.
// Returns [channel.ErrWouldUnderflow] if fewer than n tokens are available.
func (c *FixedConsumer) Pop(ctx context.Context, n uint64) error {
	depth, err := c.updateDepth()
	if err != nil {
		return err
	}
	if depth < n {
		return channel.ErrWouldUnderflow
	}
	if err := c.base.Coord.Ring.AdvanceTail(n); err != nil {
		return err
	}
	if c.producerCoord != nil {
		if err := channel.MirrorCell(ctx, c.base.Manager, c.producerCoord, c.base.Coord.Slot, channel.TailAdvanceCountIdx); err != nil {
			return hicr.NewTransportError(string(c.globalCoord.Tag), "spsc.FixedConsumer.Pop", err)
		}
	}
	return nil
}

// FixedProducer holds a global reference to the consumer's token buffer
// and coordination buffer, plus its own local coordination copy mirrored
// to the consumer on every Push.
type FixedProducer struct {
	base         *channel.Base
	globalTokens *comm.GlobalSlot
	globalCoord  *comm.GlobalSlot
	tag          comm.Tag
}

// NewFixedProducer builds the producer side of a fixed-size SPSC channel,
// given the consumer's promoted token buffer and coordination buffer
// handles and the producer's own local coordination buffer slot.
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

func (p *FixedProducer) updateDepth() (uint64, error) {
	return p.base.UpdateDepth(p.globalTokens)
}

// IsFull reports whether the channel currently holds capacity tokens.
func (p *FixedProducer) IsFull() bool { return p.base.IsFull() }

// Push copies n tokens (each tokenSize bytes) from src into the channel,
// one memcpy per token per the one-memcpy-per-token invariant, then
// advances the local head and mirrors it to the consumer's coordination
// buffer. Returns [channel.ErrWouldOverflow] if the channel lacks room.
func (p *FixedProducer) Push(ctx context.Context, src *memory.LocalSlot, n uint64) error {
	if src.Size < n*p.base.TokenSize {
		return hicr.NewLogicError("spsc.FixedProducer.Push", "source slot smaller than n*tokenSize")
	}

	depth, err := p.updateDepth()
	if err != nil {
		return err
	}
	if depth+n > p.base.GetCapacity() {
		return channel.ErrWouldOverflow
	}

	headPos := p.base.Coord.Ring.HeadPosition()
	for i := uint64(0); i < n; i++ {
		tokenOffset := ((headPos + i) % p.base.GetCapacity()) * p.base.TokenSize
		if err := p.base.Manager.Memcpy(ctx, p.globalTokens, tokenOffset, src, i*p.base.TokenSize, p.base.TokenSize); err != nil {
			return hicr.NewTransportError(string(p.tag), "spsc.FixedProducer.Push", err)
		}
	}

	if err := p.base.Coord.Ring.AdvanceHead(n); err != nil {
		return err
	}
	if err := channel.MirrorCell(ctx, p.base.Manager, p.globalCoord, p.base.Coord.Slot, channel.HeadAdvanceCountIdx); err != nil {
		return hicr.NewTransportError(string(p.tag), "spsc.FixedProducer.Push", err)
	}
	return nil
}
