// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package comm

import (
	"context"

	"code.hybscloud.com/hicr/memory"
)

// GlobalKeyLocalSlotPair pairs a peer's contribution key with the local
// slot it is exposing to the rest of the tag's peers.
type GlobalKeyLocalSlotPair struct {
	Key  Key
	Slot *memory.LocalSlot
}

// FenceExpectation lets a peer that already knows its expected in/out
// message counts for tag skip the all-to-all coordination a plain fence
// performs, described in the operation set as a "zero-cost" fence variant.
type FenceExpectation struct {
	ExpectedIn  uint64
	ExpectedOut uint64
	Sources     []Tag
}

// Manager is the communication manager: the collective exchange of local
// slots into global ones, one-sided memcpy between slots in possibly
// different memory spaces, tagged fences, slot promotion/serialization,
// and a distributed try-lock over global slot state.
//
// Every operation below is scoped to a Tag unless stated otherwise; no
// ordering is promised across distinct tags.
type Manager interface {
	// ExchangeGlobalMemorySlots is collective over every peer participating
	// in tag: each peer contributes zero or more (key, slot) pairs, which
	// every peer can look up with GetGlobalMemorySlot once the matching
	// Fence(tag) returns. The shipped backends (comm/shmem, comm/loopback)
	// register each pair under tag as soon as the call is made. Calling it
	// again with the same tag adds the new pairs and replaces the slot under
	// any repeated key; slots registered under other keys by earlier calls
	// are not removed.
	ExchangeGlobalMemorySlots(ctx context.Context, tag Tag, pairs []GlobalKeyLocalSlotPair) error

	// GetGlobalMemorySlot looks up the slot currently registered under tag
	// by key, whether contributed by an exchange or by promotion.
	GetGlobalMemorySlot(tag Tag, key Key) (*GlobalSlot, error)

	// Fence blocks until every locally outstanding memcpy under tag has
	// completed locally, every remote memcpy into a locally registered slot
	// under tag has been delivered, and every exchange under tag has
	// quiesced globally. It is a group barrier scoped to tag; other tags
	// proceed independently.
	Fence(ctx context.Context, tag Tag) error

	// FenceExpected performs the zero-cost fence variant: a peer that
	// already knows how many messages it expects in and out for tag can
	// skip all-to-all coordination.
	FenceExpected(ctx context.Context, tag Tag, expect FenceExpectation) error

	// Memcpy copies size bytes from src[srcOffset:] to dst[dstOffset:],
	// one-sided and non-blocking. At least one of src, dst must be a
	// *GlobalSlot; completion (messagesSent/messagesRecv incremented) is
	// only observable after the matching Fence. Returns [hicr.TransportError]
	// on backend failure.
	Memcpy(ctx context.Context, dst Slot, dstOffset uint64, src Slot, srcOffset uint64, size uint64) error

	// PromoteLocalMemorySlot produces a GlobalSlot backed by a locally
	// assigned key, cheaper than a full exchange, meant for handles a peer
	// receives out-of-band (e.g. via SerializeGlobalMemorySlot).
	PromoteLocalMemorySlot(local *memory.LocalSlot, tag Tag) (*GlobalSlot, error)

	// DestroyPromotedGlobalMemorySlot is the local-only teardown counterpart
	// to PromoteLocalMemorySlot.
	DestroyPromotedGlobalMemorySlot(slot *GlobalSlot) error

	// SerializeGlobalMemorySlot encodes slot into an opaque byte form,
	// stable for the lifetime of its exchange epoch.
	SerializeGlobalMemorySlot(slot *GlobalSlot) ([]byte, error)

	// DeserializeGlobalMemorySlot decodes a byte form produced by
	// SerializeGlobalMemorySlot, associating it with tag.
	DeserializeGlobalMemorySlot(data []byte, tag Tag) (*GlobalSlot, error)

	// AcquireGlobalLock is a non-blocking try: it returns (true, nil) if the
	// lock keyed by slot's identity was acquired, or (false, nil) if it was
	// not. A caller holding the lock may safely read/update the slot's
	// coordination cells without racing other producers, but must not call
	// any blocking primitive while holding it.
	AcquireGlobalLock(slot *GlobalSlot) (bool, error)

	// ReleaseGlobalLock releases a lock previously acquired with
	// AcquireGlobalLock.
	ReleaseGlobalLock(slot *GlobalSlot) error

	// QueryMemorySlotUpdates is a non-blocking progress pump: call it before
	// reading a slot's messagesRecv/messagesSent counters to force any
	// pending backend-side update to apply. Backends that deliver counter
	// updates synchronously may no-op.
	QueryMemorySlotUpdates(slot *GlobalSlot) error
}
