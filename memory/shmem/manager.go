// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package shmem implements [memory.Manager] for a single shared-memory
// process: slots are backed by plain Go heap allocations pinned via
// unsafe.Pointer, grounded in the sequential backend's memory manager,
// which likewise serves every slot out of ordinary process memory.
package shmem

import (
	"unsafe"

	"code.hybscloud.com/hicr/memory"
	"code.hybscloud.com/hicr/topology"
)

// Manager is a shared-memory backend for [memory.Manager].
type Manager struct{}

// NewManager builds a shared-memory memory manager.
func NewManager() *Manager {
	return &Manager{}
}

// AllocateLocalSlot allocates size bytes from space.
func (m *Manager) AllocateLocalSlot(space *topology.MemorySpace, size uint64) (*memory.LocalSlot, error) {
	if err := space.IncreaseUsage(size); err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	var ptr unsafe.Pointer
	if size > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}

	slot := &memory.LocalSlot{
		Pointer:      ptr,
		Size:         size,
		Space:        space,
		MessagesSent: memory.NewCounter(),
		MessagesRecv: memory.NewCounter(),
	}
	return slot, nil
}

// RegisterLocalSlot wraps the already-allocated buffer ptr as a slot backed
// by space, increasing space's usage without allocating new memory.
func (m *Manager) RegisterLocalSlot(space *topology.MemorySpace, ptr []byte) (*memory.LocalSlot, error) {
	size := uint64(len(ptr))
	if err := space.IncreaseUsage(size); err != nil {
		return nil, err
	}

	var p unsafe.Pointer
	if size > 0 {
		p = unsafe.Pointer(&ptr[0])
	}

	slot := &memory.LocalSlot{
		Pointer:      p,
		Size:         size,
		Space:        space,
		MessagesSent: memory.NewCounter(),
		MessagesRecv: memory.NewCounter(),
	}
	return slot, nil
}

// FreeLocalSlot releases slot's memory-space accounting. The backing Go
// allocation is released to the garbage collector once the slot and any
// aliases of its Bytes() view go out of scope.
func (m *Manager) FreeLocalSlot(slot *memory.LocalSlot) error {
	if err := slot.MarkFreed("shmem.Manager.FreeLocalSlot"); err != nil {
		return err
	}
	return slot.Space.DecreaseUsage(slot.Size)
}

// DeregisterLocalSlot is identical to FreeLocalSlot for this backend: there
// is no separate externally-owned allocation to leave untouched, since Go
// has no manual free.
func (m *Manager) DeregisterLocalSlot(slot *memory.LocalSlot) error {
	if err := slot.MarkFreed("shmem.Manager.DeregisterLocalSlot"); err != nil {
		return err
	}
	return slot.Space.DecreaseUsage(slot.Size)
}

// Memset fills length bytes of slot starting at offset with value,
// clamped to the slot's end: a request running past the slot fills what
// fits and stops.
func (m *Manager) Memset(slot *memory.LocalSlot, value byte, offset, length uint64) error {
	if offset >= slot.Size {
		return nil
	}
	if offset+length > slot.Size {
		length = slot.Size - offset
	}
	b := slot.Bytes()
	for i := uint64(0); i < length; i++ {
		b[offset+i] = value
	}
	return nil
}
