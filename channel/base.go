// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/memory"
)

// Base is the fixed-size channel shared by SPSC and MPSC-locking
// producers/consumers: one token buffer sized capacity*tokenSize and one
// coordination buffer tracking the head/tail advance counts of that ring.
type Base struct {
	Manager     comm.Manager
	TokenBuffer *memory.LocalSlot
	Coord       *CoordinationBuffer
	TokenSize   uint64
}

// NewBase validates tokenBuffer and coord against capacity/tokenSize and
// builds a Base. Returns a [hicr.LogicError] if either buffer is smaller
// than its minimum required size.
func NewBase(mgr comm.Manager, tokenBuffer *memory.LocalSlot, coordSlot *memory.LocalSlot, capacity, tokenSize uint64) (*Base, error) {
	if tokenBuffer.Size < capacity*tokenSize {
		return nil, hicr.NewLogicError("channel.NewBase", "token buffer smaller than capacity*tokenSize")
	}
	coord, err := NewCoordinationBuffer(coordSlot, capacity)
	if err != nil {
		return nil, err
	}
	return &Base{Manager: mgr, TokenBuffer: tokenBuffer, Coord: coord, TokenSize: tokenSize}, nil
}

// GetTokenSize returns the fixed size in bytes of one token.
func (b *Base) GetTokenSize() uint64 { return b.TokenSize }

// GetCapacity returns how many tokens fit in the channel.
func (b *Base) GetCapacity() uint64 { return b.Coord.Ring.Capacity() }

// GetDepth returns how many tokens are currently held.
func (b *Base) GetDepth() uint64 { return b.Coord.Ring.Depth() }

// IsEmpty reports whether the channel currently holds no tokens.
func (b *Base) IsEmpty() bool { return b.Coord.Ring.IsEmpty() }

// IsFull reports whether the channel currently holds capacity tokens.
func (b *Base) IsFull() bool { return b.Coord.Ring.IsFull() }

// UpdateDepth pumps progress on the token buffer, then reports the current
// depth. Consumers call this before computing how many tokens are
// available to pop; producers call it before computing remaining
// capacity.
func (b *Base) UpdateDepth(globalTokenBuffer *comm.GlobalSlot) (uint64, error) {
	if err := b.Manager.QueryMemorySlotUpdates(globalTokenBuffer); err != nil {
		return 0, err
	}
	return b.Coord.Ring.Depth(), nil
}
