// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package channel

import (
	"context"
	"unsafe"

	"code.hybscloud.com/atomix"

	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/circbuf"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/memory"
)

// CoordinationBuffer is a two-cell region of a memory slot holding
// [HeadAdvanceCountIdx] and [TailAdvanceCountIdx], wrapped as a
// [circbuf.CircularBuffer]. It is backed by a real [memory.LocalSlot] so a
// comm.Manager can memcpy either cell to a peer's matching buffer one cell
// at a time, as the fixed and variable SPSC push/pop paths do.
//
// Cell accessors are obtained by pointer-casting into the slot's backing
// array rather than allocating separate atomix cells: atomix.Uint64 is a
// plain 8-byte atomic wrapper (the same assumption code.hybscloud.com/lfq
// makes declaring `head atomix.Uint64` as an inline struct field), so a
// correctly aligned 8-byte region of the slot's bytes can be addressed as
// one.
type CoordinationBuffer struct {
	Slot *memory.LocalSlot
	Ring *circbuf.CircularBuffer
}

// NewCoordinationBuffer wraps slot as a coordination buffer of the given
// ring capacity. Returns a [hicr.LogicError] if slot is smaller than
// [CoordinationBufferSize].
func NewCoordinationBuffer(slot *memory.LocalSlot, capacity uint64) (*CoordinationBuffer, error) {
	if slot.Size < CoordinationBufferSize {
		return nil, hicr.NewLogicError("channel.NewCoordinationBuffer", "slot smaller than minimum coordination buffer size")
	}
	cb := &CoordinationBuffer{Slot: slot}
	cb.Ring = circbuf.New(capacity, cb.cell(HeadAdvanceCountIdx), cb.cell(TailAdvanceCountIdx))
	return cb, nil
}

// cell returns the atomix-typed view of the idx'th 8-byte cell in the
// buffer's backing slot.
func (cb *CoordinationBuffer) cell(idx int) *atomix.Uint64 {
	base := cb.Slot.Pointer
	return (*atomix.Uint64)(unsafe.Add(base, idx*CoordinationCellSize))
}

// MirrorCell copies one cell (identified by idx) from the local buffer src
// to the peer-visible buffer dst via mgr, as a single memcpy — the "mirror
// the tail cell to the producer" and "flush()" steps of the push/pop
// paths, which must move exactly one cell-sized write to avoid tearing a
// concurrent reader's observation.
func MirrorCell(ctx context.Context, mgr comm.Manager, dst *comm.GlobalSlot, src *memory.LocalSlot, idx int) error {
	offset := uint64(idx * CoordinationCellSize)
	return mgr.Memcpy(ctx, dst, offset, src, offset, CoordinationCellSize)
}
