// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package memory models a contiguous, local, byte-addressable region: a
// [LocalSlot]. A [Manager] backend allocates or registers slots against a
// [topology.MemorySpace] and is responsible for keeping the space's usage
// accounting in sync with the slots it owns.
package memory

import (
	"unsafe"

	"code.hybscloud.com/atomix"

	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/internal/layout"
	"code.hybscloud.com/hicr/topology"
)

// paddedCounter isolates a single atomix.Uint64 on its own cache line so
// MessagesSent and MessagesRecv never false-share: they are updated by
// different sides of a memcpy (the sender, the receiver) and frequently
// land on the same allocation otherwise, the same reason
// code.hybscloud.com/lfq pads its head/tail cells apart.
type paddedCounter struct {
	v atomix.Uint64
	_ layout.PadShort
}

// NewCounter allocates a cache-line-isolated atomic counter, used for a
// LocalSlot's MessagesSent/MessagesRecv cells by every Manager backend.
func NewCounter() *atomix.Uint64 {
	pc := &paddedCounter{}
	return &pc.v
}

// LocalSlot is a contiguous segment within a memory space on the local
// system. MessagesSent and MessagesRecv are pointer-indirected atomic
// counters rather than plain fields: a communication manager backend that
// promotes this slot to a global one may need to mirror or update these
// counters from outside the owning goroutine (RDMA-style completion
// notification), the same reason code.hybscloud.com/lfq keeps its SPSC
// head/tail cells behind atomix rather than bare uint64s.
type LocalSlot struct {
	Pointer      unsafe.Pointer
	Size         uint64
	Space        *topology.MemorySpace
	MessagesSent *atomix.Uint64
	MessagesRecv *atomix.Uint64
	freed        atomix.Bool
}

// Bytes views the slot's memory as a byte slice for memcpy-style access.
// The returned slice aliases the slot's backing storage; callers must not
// retain it past the slot's lifetime.
func (s *LocalSlot) Bytes() []byte {
	if s.Size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(s.Pointer), s.Size)
}

// IncreaseMessagesSent records that one more message completed send from
// this slot.
func (s *LocalSlot) IncreaseMessagesSent() {
	s.MessagesSent.AddAcqRel(1)
}

// IncreaseMessagesRecv records that one more message completed receipt
// into this slot.
func (s *LocalSlot) IncreaseMessagesRecv() {
	s.MessagesRecv.AddAcqRel(1)
}

// MarkFreed marks the slot as freed, returning a [hicr.LogicError] if it
// had already been freed (double free). Manager backends call this from
// FreeLocalSlot/DeregisterLocalSlot before releasing space accounting.
func (s *LocalSlot) MarkFreed(op string) error {
	if s.freed.LoadAcquire() {
		return hicr.NewLogicError(op, "memory slot already freed")
	}
	s.freed.StoreRelease(true)
	return nil
}

// WrapBytes builds an ephemeral LocalSlot over an already-owned byte slice
// with no backing memory space: a scratch endpoint for a one-shot Memcpy
// (writing a variable-size token's length prefix, pulling a coordination
// buffer's cells into a stack-local copy) that is never allocated through,
// freed through, or accounted against a Manager. Space is left nil; callers
// must not pass a WrapBytes result to FreeLocalSlot/DeregisterLocalSlot.
func WrapBytes(b []byte) *LocalSlot {
	var ptr unsafe.Pointer
	if len(b) > 0 {
		ptr = unsafe.Pointer(&b[0])
	}
	return &LocalSlot{
		Pointer:      ptr,
		Size:         uint64(len(b)),
		MessagesSent: NewCounter(),
		MessagesRecv: NewCounter(),
	}
}
