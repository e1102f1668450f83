// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spsc

import (
	"context"
	"encoding/binary"

	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/channel"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/memory"
)

// sizeEntrySize is the width in bytes of one entry in the sizes buffer —
// a token's byte length, stored alongside (not inside) the payload ring.
const sizeEntrySize = 8

// VariableConsumer owns the sizes buffer, payload buffer, and the two
// coordination rings (one over token counts, one over payload bytes) for a
// variable-size SPSC channel.
type VariableConsumer struct {
	base                 *channel.VariableBase
	globalSizes          *comm.GlobalSlot
	globalPayload        *comm.GlobalSlot
	globalSizesCoord     *comm.GlobalSlot
	globalPayloadCoord   *comm.GlobalSlot
	producerSizesCoord   *comm.GlobalSlot
	producerPayloadCoord *comm.GlobalSlot
}

// NewVariableConsumer builds the consumer side of a variable-size SPSC
// channel. producerSizesCoord/producerPayloadCoord are the already-promoted
// handles to the producer's own local coordination buffers, mirrored on
// every Pop.
func NewVariableConsumer(
	ctx context.Context,
	mgr comm.Manager,
	tag comm.Tag,
	sizesBuffer, payloadBuffer, sizesCoordSlot, payloadCoordSlot *memory.LocalSlot,
	producerSizesCoord, producerPayloadCoord *comm.GlobalSlot,
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
		base:                 base,
		globalSizes:          globalSizes,
		globalPayload:        globalPayload,
		globalSizesCoord:     globalSizesCoord,
		globalPayloadCoord:   globalPayloadCoord,
		producerSizesCoord:   producerSizesCoord,
		producerPayloadCoord: producerPayloadCoord,
	}, nil
}

// GlobalSizesBuffer returns the promoted handle to the sizes buffer.
func (c *VariableConsumer) GlobalSizesBuffer() *comm.GlobalSlot { return c.globalSizes }

// GlobalPayloadBuffer returns the promoted handle to the payload buffer.
func (c *VariableConsumer) GlobalPayloadBuffer() *comm.GlobalSlot { return c.globalPayload }

// GlobalSizesCoordinationBuffer returns the promoted handle to this
// consumer's token-count coordination buffer, for the producer side to
// mirror its head advances into.
func (c *VariableConsumer) GlobalSizesCoordinationBuffer() *comm.GlobalSlot {
	return c.globalSizesCoord
}

// GlobalPayloadCoordinationBuffer returns the promoted handle to this
// consumer's payload-byte coordination buffer.
func (c *VariableConsumer) GlobalPayloadCoordinationBuffer() *comm.GlobalSlot {
	return c.globalPayloadCoord
}

func (c *VariableConsumer) updateDepth() (uint64, error) {
	if err := c.base.Manager.QueryMemorySlotUpdates(c.globalSizes); err != nil {
		return 0, err
	}
	if err := c.base.Manager.QueryMemorySlotUpdates(c.globalPayload); err != nil {
		return 0, err
	}
	return c.base.GetDepth(), nil
}

// IsEmpty reports whether the channel currently holds no tokens.
func (c *VariableConsumer) IsEmpty() bool { return c.base.IsEmpty() }

// GetCapacity returns the channel's token-count capacity.
func (c *VariableConsumer) GetCapacity() uint64 { return c.base.GetCapacity() }

// Peek returns the [offset, length] in the payload buffer of the oldest
// unpopped token. Returns [channel.ErrWouldUnderflow] if the channel is
// empty. The returned span may wrap: offset+length can exceed
// PayloadCapacity, in which case the token's bytes occupy
// [offset:PayloadCapacity) followed by [0:offset+length-PayloadCapacity).
func (c *VariableConsumer) Peek() (offset, length uint64, err error) {
	depth, err := c.updateDepth()
	if err != nil {
		return 0, 0, err
	}
	if depth == 0 {
		return 0, 0, channel.ErrWouldUnderflow
	}
	sizesTail := c.base.SizesCoord.Ring.TailPosition()
	length = binary.LittleEndian.Uint64(c.base.SizesBuffer.Bytes()[sizesTail*sizeEntrySize : sizesTail*sizeEntrySize+sizeEntrySize])
	offset = c.base.PayloadCoord.Ring.TailPosition()
	return offset, length, nil
}

// CopyOut copies the token most recently returned by Peek into dst, which
// must be at least length bytes, handling the payload ring's wraparound.
func (c *VariableConsumer) CopyOut(dst []byte, offset, length uint64) {
	src := c.base.PayloadBuffer.Bytes()
	capacity := c.base.PayloadCapacity
	if offset+length <= capacity {
		copy(dst[:length], src[offset:offset+length])
		return
	}
	first := capacity - offset
	copy(dst[:first], src[offset:capacity])
	copy(dst[first:length], src[0:length-first])
}

// Pop removes the oldest token and mirrors the new tail position of both
// rings to the producer's coordination buffers via two cell-sized
// memcpys. Returns [channel.ErrWouldUnderflow] if the channel is empty.
func (c *VariableConsumer) Pop(ctx context.Context) error {
	_, length, err := c.Peek()
	if err != nil {
		return err
	}
	if err := c.base.SizesCoord.Ring.AdvanceTail(1); err != nil {
		return err
	}
	if err := c.base.PayloadCoord.Ring.AdvanceTail(length); err != nil {
		return err
	}
	if c.producerSizesCoord != nil {
		if err := channel.MirrorCell(ctx, c.base.Manager, c.producerSizesCoord, c.base.SizesCoord.Slot, channel.TailAdvanceCountIdx); err != nil {
			return hicr.NewTransportError(string(c.globalSizes.Tag), "spsc.VariableConsumer.Pop", err)
		}
	}
	if c.producerPayloadCoord != nil {
		if err := channel.MirrorCell(ctx, c.base.Manager, c.producerPayloadCoord, c.base.PayloadCoord.Slot, channel.TailAdvanceCountIdx); err != nil {
			return hicr.NewTransportError(string(c.globalSizes.Tag), "spsc.VariableConsumer.Pop", err)
		}
	}
	return nil
}

// VariableProducer holds global references to the consumer's sizes,
// payload and coordination buffers, plus its own local coordination
// buffer copies mirrored to the consumer on every Push.
type VariableProducer struct {
	base               *channel.VariableBase
	globalSizes        *comm.GlobalSlot
	globalPayload      *comm.GlobalSlot
	globalSizesCoord   *comm.GlobalSlot
	globalPayloadCoord *comm.GlobalSlot
	tag                comm.Tag
}

// NewVariableProducer builds the producer side of a variable-size SPSC
// channel given the consumer's promoted handles and the producer's own
// local sizes/payload coordination buffer slots.
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

func (p *VariableProducer) updateDepth() (uint64, error) {
	if err := p.base.Manager.QueryMemorySlotUpdates(p.globalSizes); err != nil {
		return 0, err
	}
	if err := p.base.Manager.QueryMemorySlotUpdates(p.globalPayload); err != nil {
		return 0, err
	}
	return p.base.GetDepth(), nil
}

// IsFull reports whether the sizes ring is at capacity.
func (p *VariableProducer) IsFull() bool { return p.base.IsFull() }

// Push copies src's bytes into the payload ring (wrapping if necessary),
// records its length in the sizes ring, advances both heads locally, and
// mirrors both head cells to the consumer. Returns
// [channel.ErrWouldOverflow] if the sizes ring is full or the payload
// ring lacks room for src's length.
func (p *VariableProducer) Push(ctx context.Context, src *memory.LocalSlot) error {
	size := src.Size
	if size > p.base.PayloadCapacity {
		return channel.ErrWouldOverflow
	}

	depth, err := p.updateDepth()
	if err != nil {
		return err
	}
	if depth+1 > p.base.GetCapacity() {
		return channel.ErrWouldOverflow
	}
	if size > p.base.FreePayloadBytes() {
		return channel.ErrWouldOverflow
	}

	payloadHead := p.base.PayloadCoord.Ring.HeadPosition()
	if err := p.writePayload(ctx, payloadHead, src); err != nil {
		return err
	}

	sizesHead := p.base.SizesCoord.Ring.HeadPosition()
	sizeBuf := memory.WrapBytes(make([]byte, sizeEntrySize))
	binary.LittleEndian.PutUint64(sizeBuf.Bytes(), size)
	if err := p.base.Manager.Memcpy(ctx, p.globalSizes, sizesHead*sizeEntrySize, sizeBuf, 0, sizeEntrySize); err != nil {
		return hicr.NewTransportError(string(p.tag), "spsc.VariableProducer.Push", err)
	}

	if err := p.base.SizesCoord.Ring.AdvanceHead(1); err != nil {
		return err
	}
	if err := p.base.PayloadCoord.Ring.AdvanceHead(size); err != nil {
		return err
	}

	if err := channel.MirrorCell(ctx, p.base.Manager, p.globalSizesCoord, p.base.SizesCoord.Slot, channel.HeadAdvanceCountIdx); err != nil {
		return hicr.NewTransportError(string(p.tag), "spsc.VariableProducer.Push", err)
	}
	if err := channel.MirrorCell(ctx, p.base.Manager, p.globalPayloadCoord, p.base.PayloadCoord.Slot, channel.HeadAdvanceCountIdx); err != nil {
		return hicr.NewTransportError(string(p.tag), "spsc.VariableProducer.Push", err)
	}
	return nil
}

// writePayload copies src into the payload ring starting at offset,
// issuing two memcpys if the write wraps past PayloadCapacity.
func (p *VariableProducer) writePayload(ctx context.Context, offset uint64, src *memory.LocalSlot) error {
	size := src.Size
	capacity := p.base.PayloadCapacity
	if offset+size <= capacity {
		if err := p.base.Manager.Memcpy(ctx, p.globalPayload, offset, src, 0, size); err != nil {
			return hicr.NewTransportError(string(p.tag), "spsc.VariableProducer.Push", err)
		}
		return nil
	}
	first := capacity - offset
	if err := p.base.Manager.Memcpy(ctx, p.globalPayload, offset, src, 0, first); err != nil {
		return hicr.NewTransportError(string(p.tag), "spsc.VariableProducer.Push", err)
	}
	if err := p.base.Manager.Memcpy(ctx, p.globalPayload, 0, src, first, size-first); err != nil {
		return hicr.NewTransportError(string(p.tag), "spsc.VariableProducer.Push", err)
	}
	return nil
}
