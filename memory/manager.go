// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package memory

import "code.hybscloud.com/hicr/topology"

// Manager allocates, registers, and retires local memory slots against a
// memory space, keeping the space's usage accounting paired with every
// slot it hands out: an allocate/register always increases usage by the
// slot's size, a free/deregister always decreases it by the same amount,
// and the two must happen atomically with respect to each other so usage
// never drifts out of sync with the slots actually outstanding.
type Manager interface {
	// AllocateLocalSlot allocates size bytes from space and returns the new
	// slot. Returns [hicr.ErrOutOfMemory] if space lacks room.
	AllocateLocalSlot(space *topology.MemorySpace, size uint64) (*LocalSlot, error)

	// RegisterLocalSlot wraps an existing allocation (ptr, size) from space
	// as a LocalSlot without allocating new memory.
	RegisterLocalSlot(space *topology.MemorySpace, ptr []byte) (*LocalSlot, error)

	// FreeLocalSlot releases slot's backing memory and returns its size to
	// space's usage accounting. Returns a LogicError on double free.
	FreeLocalSlot(slot *LocalSlot) error

	// DeregisterLocalSlot releases slot's accounting without freeing memory
	// that Manager did not allocate (the counterpart to RegisterLocalSlot).
	DeregisterLocalSlot(slot *LocalSlot) error

	// Memset fills slot's memory with value, starting at offset for at most
	// length bytes, clamped to the slot's end.
	Memset(slot *LocalSlot, value byte, offset, length uint64) error
}
