// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package loopback implements [comm.Manager] for a single local instance:
// exchange registers slots directly with no collective coordination, fence
// is a simple per-tag call counter, memcpy is a direct byte copy, and the
// global lock always succeeds immediately. It assumes a single instance with
// no competing peers, so nothing ever waits on another participant; a mutex
// only guards its slot maps and fence counters — useful for unit tests and
// single-instance frontends that don't need [shmem]'s multi-peer rendezvous.
package loopback

import (
	"context"
	"sync"

	"github.com/google/uuid"

	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/memory"
)

// Manager is the loopback communication manager. FenceCount mirrors the
// sequential backend's constructor argument of the same name (the zero
// value behaves as 1). Fence counts its calls per tag but never waits:
// every Fence call returns at once, whatever FenceCount is.
type Manager struct {
	FenceCount uint64

	mu         sync.Mutex
	globals    map[comm.Tag]map[comm.Key]*comm.GlobalSlot
	fenceCalls map[comm.Tag]uint64
}

// NewManager builds a loopback communication manager.
func NewManager() *Manager {
	return &Manager{
		FenceCount: 1,
		globals:    make(map[comm.Tag]map[comm.Key]*comm.GlobalSlot),
		fenceCalls: make(map[comm.Tag]uint64),
	}
}

func (m *Manager) ExchangeGlobalMemorySlots(_ context.Context, tag comm.Tag, pairs []comm.GlobalKeyLocalSlotPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.globals[tag]
	if !ok {
		bucket = make(map[comm.Key]*comm.GlobalSlot)
		m.globals[tag] = bucket
	}
	for _, p := range pairs {
		bucket[p.Key] = &comm.GlobalSlot{Tag: tag, Key: p.Key, Source: p.Slot}
	}
	return nil
}

func (m *Manager) GetGlobalMemorySlot(tag comm.Tag, key comm.Key) (*comm.GlobalSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.globals[tag]
	if !ok {
		return nil, hicr.NewLogicError("loopback.Manager.GetGlobalMemorySlot", "unknown tag")
	}
	slot, ok := bucket[key]
	if !ok {
		return nil, hicr.NewLogicError("loopback.Manager.GetGlobalMemorySlot", "unknown key")
	}
	return slot, nil
}

func (m *Manager) Fence(_ context.Context, tag comm.Tag) error {
	fenceCount := m.FenceCount
	if fenceCount == 0 {
		fenceCount = 1
	}
	m.mu.Lock()
	m.fenceCalls[tag]++
	calls := m.fenceCalls[tag]
	m.mu.Unlock()
	_ = calls % fenceCount // single local instance: nothing else to wait for
	return nil
}

func (m *Manager) FenceExpected(ctx context.Context, tag comm.Tag, _ comm.FenceExpectation) error {
	return m.Fence(ctx, tag)
}

func (m *Manager) Memcpy(_ context.Context, dst comm.Slot, dstOffset uint64, src comm.Slot, srcOffset uint64, size uint64) error {
	dstLocal, srcLocal, dstGlobal, srcGlobal, err := resolve(dst, src)
	if err != nil {
		return err
	}

	copy(dstLocal.Bytes()[dstOffset:dstOffset+size], srcLocal.Bytes()[srcOffset:srcOffset+size])

	if dstGlobal != nil {
		dstGlobal.Source.IncreaseMessagesRecv()
	} else {
		dstLocal.IncreaseMessagesRecv()
	}
	if srcGlobal != nil {
		srcGlobal.Source.IncreaseMessagesSent()
	} else {
		srcLocal.IncreaseMessagesSent()
	}
	return nil
}

// resolve extracts the underlying *memory.LocalSlot for each endpoint,
// requiring at least one to be a *comm.GlobalSlot, matching the backend's
// requirement that one-sided memcpy always touches a globally addressable
// slot.
func resolve(dst, src comm.Slot) (dstLocal, srcLocal *memory.LocalSlot, dstGlobal, srcGlobal *comm.GlobalSlot, err error) {
	dstGlobal, dstIsGlobal := comm.AsGlobalSlot(dst)
	srcGlobal, srcIsGlobal := comm.AsGlobalSlot(src)
	if !dstIsGlobal && !srcIsGlobal {
		return nil, nil, nil, nil, hicr.NewLogicError("loopback.Manager.Memcpy", "at least one endpoint must be a global slot")
	}

	if dstIsGlobal {
		if !dstGlobal.IsLocal() {
			return nil, nil, nil, nil, hicr.NewTransportError(string(dstGlobal.Tag), "memcpy", hicr.NewLogicError("loopback.Manager.Memcpy", "destination is not local to this backend"))
		}
		dstLocal = dstGlobal.Source
	} else {
		dstLocal, _ = comm.AsLocalSlot(dst)
	}

	if srcIsGlobal {
		if !srcGlobal.IsLocal() {
			return nil, nil, nil, nil, hicr.NewTransportError(string(srcGlobal.Tag), "memcpy", hicr.NewLogicError("loopback.Manager.Memcpy", "source is not local to this backend"))
		}
		srcLocal = srcGlobal.Source
	} else {
		srcLocal, _ = comm.AsLocalSlot(src)
	}

	return dstLocal, srcLocal, dstGlobal, srcGlobal, nil
}

func (m *Manager) PromoteLocalMemorySlot(local *memory.LocalSlot, tag comm.Tag) (*comm.GlobalSlot, error) {
	slot := &comm.GlobalSlot{Tag: tag, Key: comm.Key(uuid.NewString()), Source: local}

	m.mu.Lock()
	bucket, ok := m.globals[tag]
	if !ok {
		bucket = make(map[comm.Key]*comm.GlobalSlot)
		m.globals[tag] = bucket
	}
	bucket[slot.Key] = slot
	m.mu.Unlock()

	return slot, nil
}

// DestroyPromotedGlobalMemorySlot is the local-only teardown counterpart to
// PromoteLocalMemorySlot: it removes the slot's key from this instance's
// bookkeeping without touching the underlying local memory.
func (m *Manager) DestroyPromotedGlobalMemorySlot(slot *comm.GlobalSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bucket, ok := m.globals[slot.Tag]; ok {
		delete(bucket, slot.Key)
	}
	return nil
}

// SerializeGlobalMemorySlot encodes just the contribution key: the tag is
// supplied out-of-band to DeserializeGlobalMemorySlot, matching the
// operation set's contract that the serialized form is only meaningful
// within its originating exchange epoch.
func (m *Manager) SerializeGlobalMemorySlot(slot *comm.GlobalSlot) ([]byte, error) {
	return []byte(slot.Key), nil
}

func (m *Manager) DeserializeGlobalMemorySlot(data []byte, tag comm.Tag) (*comm.GlobalSlot, error) {
	slot, err := m.GetGlobalMemorySlot(tag, comm.Key(data))
	if err != nil {
		return nil, hicr.NewSerializationError("loopback.Manager.DeserializeGlobalMemorySlot", err)
	}
	return slot, nil
}

func (m *Manager) AcquireGlobalLock(_ *comm.GlobalSlot) (bool, error) {
	// A single local instance incurs no concurrency, so the lock always
	// succeeds, mirroring the sequential backend's acquireGlobalLockImpl.
	return true, nil
}

func (m *Manager) ReleaseGlobalLock(_ *comm.GlobalSlot) error {
	return nil
}

func (m *Manager) QueryMemorySlotUpdates(_ *comm.GlobalSlot) error {
	return nil
}
