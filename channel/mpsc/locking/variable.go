// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package locking

import (
	"context"
	"encoding/binary"

	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/channel"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/memory"
)

const sizeEntrySize = 8

// VariableConsumer owns the shared sizes buffer, payload buffer and the
// two coordination buffers of a variable-size MPSC-locking channel, all
// mutated by producers under the sizes coordination buffer's global lock.
type VariableConsumer struct {
	base               *channel.VariableBase
	globalSizes        *comm.GlobalSlot
	globalPayload      *comm.GlobalSlot
	globalSizesCoord   *comm.GlobalSlot
	globalPayloadCoord *comm.GlobalSlot
}

// NewVariableConsumer builds the consumer side of a variable-size
// MPSC-locking channel.
func NewVariableConsumer(
	mgr comm.Manager,
	tag comm.Tag,
	sizesBuffer, payloadBuffer, sizesCoordSlot, payloadCoordSlot *memory.LocalSlot,
	capacity, payloadCapacity uint64,
) (*VariableConsumer, error) {
	base, err := channel.NewVariableBase(mgr, sizesBuffer, payloadBuffer, sizesCoordSlot, payloadCoordSlot, capacity, payloadCapacity)
	if err != nil {
		return nil, err
	}
	globalSizes, err := mgr.PromoteLocalMemorySlot(sizesBuffer, tag)
	if err != nil {
		return nil, err
	}
	globalPayload, err := mgr.PromoteLocalMemorySlot(payloadBuffer, tag)
	if err != nil {
		return nil, err
	}
	globalSizesCoord, err := mgr.PromoteLocalMemorySlot(sizesCoordSlot, tag)
	if err != nil {
		return nil, err
	}
	globalPayloadCoord, err := mgr.PromoteLocalMemorySlot(payloadCoordSlot, tag)
	if err != nil {
		return nil, err
	}
	return &VariableConsumer{
		base:               base,
		globalSizes:        globalSizes,
		globalPayload:      globalPayload,
		globalSizesCoord:   globalSizesCoord,
		globalPayloadCoord: globalPayloadCoord,
	}, nil
}

// GlobalSizesBuffer returns the promoted handle to the shared sizes buffer.
func (c *VariableConsumer) GlobalSizesBuffer() *comm.GlobalSlot { return c.globalSizes }

// GlobalPayloadBuffer returns the promoted handle to the shared payload
// buffer.
func (c *VariableConsumer) GlobalPayloadBuffer() *comm.GlobalSlot { return c.globalPayload }

// GlobalSizesCoordinationBuffer returns the promoted handle producers lock
// before mutating either coordination buffer.
func (c *VariableConsumer) GlobalSizesCoordinationBuffer() *comm.GlobalSlot {
	return c.globalSizesCoord
}

// GlobalPayloadCoordinationBuffer returns the promoted handle to the
// shared payload-byte coordination buffer.
func (c *VariableConsumer) GlobalPayloadCoordinationBuffer() *comm.GlobalSlot {
	return c.globalPayloadCoord
}

// IsEmpty reports whether the channel currently holds no tokens.
func (c *VariableConsumer) IsEmpty() bool { return c.base.IsEmpty() }

// GetCapacity returns the channel's token-count capacity.
func (c *VariableConsumer) GetCapacity() uint64 { return c.base.GetCapacity() }

// Peek returns the [offset, length] in the payload buffer of the oldest
// unpopped token. Returns [channel.ErrWouldUnderflow] if the channel is
// empty.
func (c *VariableConsumer) Peek() (offset, length uint64, err error) {
	if err := c.base.Manager.QueryMemorySlotUpdates(c.globalSizes); err != nil {
		return 0, 0, err
	}
	if err := c.base.Manager.QueryMemorySlotUpdates(c.globalPayload); err != nil {
		return 0, 0, err
	}
	if c.base.IsEmpty() {
		return 0, 0, channel.ErrWouldUnderflow
	}
	sizesTail := c.base.SizesCoord.Ring.TailPosition()
	length = binary.LittleEndian.Uint64(c.base.SizesBuffer.Bytes()[sizesTail*sizeEntrySize : sizesTail*sizeEntrySize+sizeEntrySize])
	offset = c.base.PayloadCoord.Ring.TailPosition()
	return offset, length, nil
}

// Pop removes the oldest token under the shared lock. Returns (false,
// nil) if the lock could not be acquired.
func (c *VariableConsumer) Pop(ctx context.Context) (bool, error) {
	ok, err := c.base.Manager.AcquireGlobalLock(c.globalSizesCoord)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer c.base.Manager.ReleaseGlobalLock(c.globalSizesCoord)

	_, length, err := c.Peek()
	if err != nil {
		return false, err
	}
	if err := c.base.SizesCoord.Ring.AdvanceTail(1); err != nil {
		return false, err
	}
	if err := c.base.PayloadCoord.Ring.AdvanceTail(length); err != nil {
		return false, err
	}
	return true, nil
}

// VariableProducer is one of potentially many producers pushing
// variable-size tokens into a shared MPSC-locking channel, each with its
// own private local coordination buffers used as pull/mirror scratch.
type VariableProducer struct {
	base               *channel.VariableBase
	globalSizes        *comm.GlobalSlot
	globalPayload      *comm.GlobalSlot
	globalSizesCoord   *comm.GlobalSlot
	globalPayloadCoord *comm.GlobalSlot
	tag                comm.Tag
}

// NewVariableProducer builds one producer's view of a variable-size
// MPSC-locking channel.
func NewVariableProducer(
	mgr comm.Manager,
	tag comm.Tag,
	globalSizes, globalPayload, globalSizesCoord, globalPayloadCoord *comm.GlobalSlot,
	localSizesCoordSlot, localPayloadCoordSlot *memory.LocalSlot,
	capacity, payloadCapacity uint64,
) (*VariableProducer, error) {
	base, err := channel.NewVariableBase(mgr, globalSizes.Source, globalPayload.Source, localSizesCoordSlot, localPayloadCoordSlot, capacity, payloadCapacity)
	if err != nil {
		return nil, err
	}
	return &VariableProducer{
		base:               base,
		globalSizes:        globalSizes,
		globalPayload:      globalPayload,
		globalSizesCoord:   globalSizesCoord,
		globalPayloadCoord: globalPayloadCoord,
		tag:                tag,
	}, nil
}

func (p *VariableProducer) pull(ctx context.Context) error {
	if err := p.base.Manager.Memcpy(ctx, p.base.SizesCoord.Slot, 0, p.globalSizesCoord, 0, channel.CoordinationBufferSize); err != nil {
		return err
	}
	return p.base.Manager.Memcpy(ctx, p.base.PayloadCoord.Slot, 0, p.globalPayloadCoord, 0, channel.CoordinationBufferSize)
}

// Push copies src's bytes into the shared payload ring and records its
// length in the shared sizes ring, all under the shared lock. Returns
// (false, nil) if the lock could not be acquired.
func (p *VariableProducer) Push(ctx context.Context, src *memory.LocalSlot) (bool, error) {
	size := src.Size
	if size > p.base.PayloadCapacity {
		return false, hicr.NewLogicError("mpsclocking.VariableProducer.Push", "token larger than payload capacity")
	}

	ok, err := p.base.Manager.AcquireGlobalLock(p.globalSizesCoord)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer p.base.Manager.ReleaseGlobalLock(p.globalSizesCoord)

	if err := p.pull(ctx); err != nil {
		return false, hicr.NewTransportError(string(p.tag), "mpsclocking.VariableProducer.Push", err)
	}

	if p.base.GetDepth()+1 > p.base.GetCapacity() {
		return false, channel.ErrWouldOverflow
	}
	if size > p.base.FreePayloadBytes() {
		return false, channel.ErrWouldOverflow
	}

	payloadHead := p.base.PayloadCoord.Ring.HeadPosition()
	if err := p.writePayload(ctx, payloadHead, src); err != nil {
		return false, err
	}

	sizesHead := p.base.SizesCoord.Ring.HeadPosition()
	sizeBuf := memory.WrapBytes(make([]byte, sizeEntrySize))
	binary.LittleEndian.PutUint64(sizeBuf.Bytes(), size)
	if err := p.base.Manager.Memcpy(ctx, p.globalSizes, sizesHead*sizeEntrySize, sizeBuf, 0, sizeEntrySize); err != nil {
		return false, hicr.NewTransportError(string(p.tag), "mpsclocking.VariableProducer.Push", err)
	}

	if err := p.base.SizesCoord.Ring.AdvanceHead(1); err != nil {
		return false, err
	}
	if err := p.base.PayloadCoord.Ring.AdvanceHead(size); err != nil {
		return false, err
	}

	if err := channel.MirrorCell(ctx, p.base.Manager, p.globalSizesCoord, p.base.SizesCoord.Slot, channel.HeadAdvanceCountIdx); err != nil {
		return false, hicr.NewTransportError(string(p.tag), "mpsclocking.VariableProducer.Push", err)
	}
	if err := channel.MirrorCell(ctx, p.base.Manager, p.globalPayloadCoord, p.base.PayloadCoord.Slot, channel.HeadAdvanceCountIdx); err != nil {
		return false, hicr.NewTransportError(string(p.tag), "mpsclocking.VariableProducer.Push", err)
	}
	return true, nil
}

func (p *VariableProducer) writePayload(ctx context.Context, offset uint64, src *memory.LocalSlot) error {
	size := src.Size
	capacity := p.base.PayloadCapacity
	if offset+size <= capacity {
		if err := p.base.Manager.Memcpy(ctx, p.globalPayload, offset, src, 0, size); err != nil {
			return hicr.NewTransportError(string(p.tag), "mpsclocking.VariableProducer.Push", err)
		}
		return nil
	}
	first := capacity - offset
	if err := p.base.Manager.Memcpy(ctx, p.globalPayload, offset, src, 0, first); err != nil {
		return hicr.NewTransportError(string(p.tag), "mpsclocking.VariableProducer.Push", err)
	}
	if err := p.base.Manager.Memcpy(ctx, p.globalPayload, 0, src, first, size-first); err != nil {
		return hicr.NewTransportError(string(p.tag), "mpsclocking.VariableProducer.Push", err)
	}
	return nil
}
