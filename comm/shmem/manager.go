// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package shmem implements [comm.Manager] for multiple peers sharing one
// process's memory: a [Hub] plays the role the sequential backend's
// fenceCount constructor argument plays for a single instance, generalized
// to however many peers actually participate. Fence is a per-tag counting
// barrier across the goroutines standing in for those peers, and
// [ExchangeAll] fans an exchange out over them with
// [golang.org/x/sync/errgroup]. Locks are real mutual-exclusion locks keyed
// by global slot identity, so MPSC-locking producers contending for the
// same consumer coordination buffer genuinely lose try-lock races (a
// (false, nil) result) rather than hitting the sequential backend's
// always-succeeds stub.
package shmem

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	hicr "code.hybscloud.com/hicr"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/memory"
)

// Hub is the shared state multiple peer Managers exchange slots and
// coordinate fences through. Peers is the number of participants expected
// to call Fence for a given tag before any of them is released, mirroring
// the sequential backend's fenceCount but sized for N goroutines standing
// in for N peers instead of always 1.
type Hub struct {
	Peers int

	mu      sync.Mutex
	globals map[comm.Tag]map[comm.Key]*comm.GlobalSlot
	locks   map[string]*sync.Mutex

	fenceMu    sync.Mutex
	fenceCond  *sync.Cond
	fenceCalls map[comm.Tag]int
	fenceEpoch map[comm.Tag]int

	faultsMu sync.Mutex
	faults   map[comm.Tag]*multierror.Error
}

// recordFault appends err to tag's outstanding fault list, collected for
// the next Fence(tag) to surface as one aggregated error — the same
// "collect many, report one" shape intel-cri-resource-manager uses
// go-multierror for.
func (h *Hub) recordFault(tag comm.Tag, err error) {
	h.faultsMu.Lock()
	defer h.faultsMu.Unlock()
	h.faults[tag] = multierror.Append(h.faults[tag], err)
}

// drainFaults returns and clears tag's outstanding fault list.
func (h *Hub) drainFaults(tag comm.Tag) error {
	h.faultsMu.Lock()
	defer h.faultsMu.Unlock()
	me := h.faults[tag]
	delete(h.faults, tag)
	if me == nil || len(me.Errors) == 0 {
		return nil
	}
	return me
}

// NewHub builds a shmem hub shared by peers goroutines.
func NewHub(peers int) *Hub {
	h := &Hub{
		Peers:      peers,
		globals:    make(map[comm.Tag]map[comm.Key]*comm.GlobalSlot),
		locks:      make(map[string]*sync.Mutex),
		fenceCalls: make(map[comm.Tag]int),
		fenceEpoch: make(map[comm.Tag]int),
		faults:     make(map[comm.Tag]*multierror.Error),
	}
	h.fenceCond = sync.NewCond(&h.fenceMu)
	return h
}

func (h *Hub) lockFor(key string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[key]
	if !ok {
		l = &sync.Mutex{}
		h.locks[key] = l
	}
	return l
}

// Manager is one peer's view of a [Hub].
type Manager struct {
	hub *Hub
}

// NewManager builds a shmem communication manager bound to hub.
func NewManager(hub *Hub) *Manager {
	return &Manager{hub: hub}
}

func (m *Manager) ExchangeGlobalMemorySlots(_ context.Context, tag comm.Tag, pairs []comm.GlobalKeyLocalSlotPair) error {
	h := m.hub
	h.mu.Lock()
	bucket, ok := h.globals[tag]
	if !ok {
		bucket = make(map[comm.Key]*comm.GlobalSlot)
		h.globals[tag] = bucket
	}
	for _, p := range pairs {
		bucket[p.Key] = &comm.GlobalSlot{Tag: tag, Key: p.Key, Source: p.Slot}
	}
	h.mu.Unlock()
	return nil
}

// ExchangeAll runs every participant's contribution concurrently via
// errgroup, the collective form ExchangeGlobalMemorySlots itself only
// performs for a single peer's call.
func ExchangeAll(ctx context.Context, tag comm.Tag, contributions map[*Manager][]comm.GlobalKeyLocalSlotPair) error {
	g, ctx := errgroup.WithContext(ctx)
	for mgr, pairs := range contributions {
		mgr, pairs := mgr, pairs
		g.Go(func() error {
			return mgr.ExchangeGlobalMemorySlots(ctx, tag, pairs)
		})
	}
	return g.Wait()
}

func (m *Manager) GetGlobalMemorySlot(tag comm.Tag, key comm.Key) (*comm.GlobalSlot, error) {
	h := m.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	bucket, ok := h.globals[tag]
	if !ok {
		return nil, hicr.NewLogicError("shmem.Manager.GetGlobalMemorySlot", "unknown tag")
	}
	slot, ok := bucket[key]
	if !ok {
		return nil, hicr.NewLogicError("shmem.Manager.GetGlobalMemorySlot", "unknown key")
	}
	return slot, nil
}

// Fence blocks until Peers calls for tag have arrived, then releases all of
// them together — a counting barrier scoped per tag, independent of every
// other tag's barrier.
func (m *Manager) Fence(ctx context.Context, tag comm.Tag) error {
	h := m.hub
	peers := h.Peers
	if peers <= 0 {
		peers = 1
	}

	h.fenceMu.Lock()
	epoch := h.fenceEpoch[tag]
	h.fenceCalls[tag]++
	if h.fenceCalls[tag] >= peers {
		h.fenceCalls[tag] = 0
		h.fenceEpoch[tag]++
		h.fenceCond.Broadcast()
	} else {
		for h.fenceEpoch[tag] == epoch {
			h.fenceCond.Wait()
			select {
			case <-ctx.Done():
				h.fenceMu.Unlock()
				return hicr.NewTransportError(string(tag), "fence", ctx.Err())
			default:
			}
		}
	}
	h.fenceMu.Unlock()
	return h.drainFaults(tag)
}

func (m *Manager) FenceExpected(ctx context.Context, tag comm.Tag, _ comm.FenceExpectation) error {
	return m.Fence(ctx, tag)
}

func (m *Manager) Memcpy(_ context.Context, dst comm.Slot, dstOffset uint64, src comm.Slot, srcOffset uint64, size uint64) error {
	dstLocal, srcLocal, dstGlobal, srcGlobal, err := resolve(dst, src)
	if err != nil {
		m.recordFault(dst, src, err)
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

// recordFault files a Memcpy failure against whichever endpoint is a
// GlobalSlot, so the tag's next Fence surfaces it even if called from a
// different peer than the one whose Memcpy failed.
func (m *Manager) recordFault(dst, src comm.Slot, err error) {
	if g, ok := comm.AsGlobalSlot(dst); ok {
		m.hub.recordFault(g.Tag, err)
		return
	}
	if g, ok := comm.AsGlobalSlot(src); ok {
		m.hub.recordFault(g.Tag, err)
	}
}

func resolve(dst, src comm.Slot) (dstLocal, srcLocal *memory.LocalSlot, dstGlobal, srcGlobal *comm.GlobalSlot, err error) {
	dstGlobal, dstIsGlobal := comm.AsGlobalSlot(dst)
	srcGlobal, srcIsGlobal := comm.AsGlobalSlot(src)
	if !dstIsGlobal && !srcIsGlobal {
		return nil, nil, nil, nil, hicr.NewLogicError("shmem.Manager.Memcpy", "at least one endpoint must be a global slot")
	}

	if dstIsGlobal {
		if !dstGlobal.IsLocal() {
			return nil, nil, nil, nil, hicr.NewTransportError(string(dstGlobal.Tag), "memcpy", hicr.NewLogicError("shmem.Manager.Memcpy", "destination is not local to this peer"))
		}
		dstLocal = dstGlobal.Source
	} else {
		dstLocal, _ = comm.AsLocalSlot(dst)
	}

	if srcIsGlobal {
		if !srcGlobal.IsLocal() {
			return nil, nil, nil, nil, hicr.NewTransportError(string(srcGlobal.Tag), "memcpy", hicr.NewLogicError("shmem.Manager.Memcpy", "source is not local to this peer"))
		}
		srcLocal = srcGlobal.Source
	} else {
		srcLocal, _ = comm.AsLocalSlot(src)
	}

	return dstLocal, srcLocal, dstGlobal, srcGlobal, nil
}

func (m *Manager) PromoteLocalMemorySlot(local *memory.LocalSlot, tag comm.Tag) (*comm.GlobalSlot, error) {
	slot := &comm.GlobalSlot{Tag: tag, Key: comm.Key(uuid.NewString()), Source: local}

	h := m.hub
	h.mu.Lock()
	bucket, ok := h.globals[tag]
	if !ok {
		bucket = make(map[comm.Key]*comm.GlobalSlot)
		h.globals[tag] = bucket
	}
	bucket[slot.Key] = slot
	h.mu.Unlock()

	return slot, nil
}

func (m *Manager) DestroyPromotedGlobalMemorySlot(slot *comm.GlobalSlot) error {
	h := m.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if bucket, ok := h.globals[slot.Tag]; ok {
		delete(bucket, slot.Key)
	}
	delete(h.locks, slot.ID())
	return nil
}

func (m *Manager) SerializeGlobalMemorySlot(slot *comm.GlobalSlot) ([]byte, error) {
	return []byte(slot.Key), nil
}

func (m *Manager) DeserializeGlobalMemorySlot(data []byte, tag comm.Tag) (*comm.GlobalSlot, error) {
	slot, err := m.GetGlobalMemorySlot(tag, comm.Key(data))
	if err != nil {
		return nil, hicr.NewSerializationError("shmem.Manager.DeserializeGlobalMemorySlot", err)
	}
	return slot, nil
}

// AcquireGlobalLock is a non-blocking try keyed by slot identity: it
// returns (false, nil) rather than [hicr.LockContention] because losing a
// try-lock race is the expected outcome callers branch on directly, not an
// error path — mpsc/locking's Push and Pop pass it straight back to their
// callers as (false, nil) for them to retry.
func (m *Manager) AcquireGlobalLock(slot *comm.GlobalSlot) (bool, error) {
	l := m.hub.lockFor(slot.ID())
	return l.TryLock(), nil
}

func (m *Manager) ReleaseGlobalLock(slot *comm.GlobalSlot) error {
	l := m.hub.lockFor(slot.ID())
	l.Unlock()
	return nil
}

func (m *Manager) QueryMemorySlotUpdates(_ *comm.GlobalSlot) error {
	return nil
}
