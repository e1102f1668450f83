// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/memory"
)

// VariableBase is the variable-size channel shared by SPSC and MPSC's
// variable-size frontends: a payload buffer of payloadCapacity bytes, a
// sizes buffer of capacity size entries, and two independent coordination
// rings — one over token counts (the sizes ring), one over payload bytes.
type VariableBase struct {
	Manager         comm.Manager
	SizesBuffer     *memory.LocalSlot
	PayloadBuffer   *memory.LocalSlot
	SizesCoord      *CoordinationBuffer
	PayloadCoord    *CoordinationBuffer
	PayloadCapacity uint64
}

// NewVariableBase validates the sizes and payload buffers against capacity
// and payloadCapacity and builds a VariableBase.
func NewVariableBase(
	mgr comm.Manager,
	sizesBuffer, payloadBuffer *memory.LocalSlot,
	sizesCoordSlot, payloadCoordSlot *memory.LocalSlot,
	capacity, payloadCapacity uint64,
) (*VariableBase, error) {
	if sizesBuffer.Size < capacity*8 {
		return nil, hicr.NewLogicError("channel.NewVariableBase", "sizes buffer smaller than capacity*8")
	}
	if payloadBuffer.Size < payloadCapacity {
		return nil, hicr.NewLogicError("channel.NewVariableBase", "payload buffer smaller than payloadCapacity")
	}
	sizesCoord, err := NewCoordinationBuffer(sizesCoordSlot, capacity)
	if err != nil {
		return nil, err
	}
	payloadCoord, err := NewCoordinationBuffer(payloadCoordSlot, payloadCapacity)
	if err != nil {
		return nil, err
	}
	return &VariableBase{
		Manager:         mgr,
		SizesBuffer:     sizesBuffer,
		PayloadBuffer:   payloadBuffer,
		SizesCoord:      sizesCoord,
		PayloadCoord:    payloadCoord,
		PayloadCapacity: payloadCapacity,
	}, nil
}

// GetCapacity returns how many tokens fit (by count, not bytes).
func (b *VariableBase) GetCapacity() uint64 { return b.SizesCoord.Ring.Capacity() }

// GetDepth returns how many tokens are currently held.
func (b *VariableBase) GetDepth() uint64 { return b.SizesCoord.Ring.Depth() }

// IsEmpty reports whether the channel currently holds no tokens.
func (b *VariableBase) IsEmpty() bool { return b.SizesCoord.Ring.IsEmpty() }

// IsFull reports whether the sizes ring is at capacity.
func (b *VariableBase) IsFull() bool { return b.SizesCoord.Ring.IsFull() }

// FreePayloadBytes returns how many contiguous-or-wrapping bytes remain
// free in the payload ring.
func (b *VariableBase) FreePayloadBytes() uint64 {
	return b.PayloadCapacity - b.PayloadCoord.Ring.Depth()
}
