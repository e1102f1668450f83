// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hicr ties together the sub-packages that make up the runtime:
//
//	topology - device and memory space discovery
//	memory   - local memory slots and the memory manager
//	comm     - the communication manager: global slots, fences, memcpy, locks
//	circbuf  - the circular buffer shared by every channel discipline
//	channel  - SPSC, MPSC-locking and MPSC-nonlocking channel frontends
//
// # Quick Start
//
// Discover a topology, allocate a slot, and push/pop through an SPSC channel:
//
//	topo, err := shmemtopo.NewProber().QueryTopology(ctx)
//	mm := shmemmem.NewManager()
//	space := topo.Devices[0].MemorySpaces[0]
//
//	tokenSlot, _ := mm.AllocateLocalSlot(space, tokenSize*depth)
//	coordSlot, _ := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
//
//	cm := shmemcomm.NewManager(shmemcomm.NewHub(2))
//	consumer, _ := spsc.NewFixedConsumer(ctx, cm, tag, tokenSlot, coordSlot, producerCoord, depth, tokenSize)
//	producer, _ := spsc.NewFixedProducer(cm, tag, consumer.GlobalTokenBuffer(), consumer.GlobalCoordinationBuffer(), localCoordSlot, depth, tokenSize)
//
//	_ = producer.Push(ctx, srcSlot, 1)
//	_ = consumer.Pop(ctx, 1)
//
// # Error Handling
//
// Operations that fail because of ordinary capacity pressure (a push against
// a full buffer, a pop against an empty one) return [CapacityError], which
// behaves as a control flow signal the same way [code.hybscloud.com/lfq]'s
// ErrWouldBlock does: check it with errors.Is against [ErrWouldOverflow],
// [ErrWouldUnderflow] or [ErrOutOfMemory] and retry rather than abort.
//
// API misuse (double free, acting on a deregistered slot) surfaces as
// [LogicError] and should not be retried. Backend failures surface as
// [TransportError] and are fatal for the affected tag. A non-blocking lock
// acquisition that loses its race reports (false, nil) from
// AcquireGlobalLock; [LockContention] is the error kind for that outcome
// where one is needed. A malformed
// topology or slot descriptor crossing a process boundary returns
// [SerializationError].
//
// # Dependencies
//
// This module uses [code.hybscloud.com/atomix] for atomic primitives with
// explicit memory ordering, [code.hybscloud.com/spin] for CPU pause
// backoff, and [code.hybscloud.com/iox] for the ErrWouldBlock convention
// channels share with code.hybscloud.com/lfq. Topologies are serialized
// with [github.com/json-iterator/go]. A collective exchange can be fanned
// out over several peers with [golang.org/x/sync/errgroup] (comm/shmem's
// ExchangeAll). Backend failures are wrapped with
// [github.com/pkg/errors] and aggregated with
// [github.com/hashicorp/go-multierror]. Serialized global slot descriptors
// carry an opaque identity minted with [github.com/google/uuid].
package hicr
