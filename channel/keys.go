// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package channel provides the SPSC, MPSC-locking and MPSC-nonlocking
// frontends built on top of [circbuf.CircularBuffer], [comm.Manager] and
// [memory.LocalSlot]. Every discipline shares a token buffer (or, for
// variable-size channels, a payload buffer plus a sizes buffer) and one or
// two coordination buffers holding a two-cell [HeadAdvanceCountIdx,
// TailAdvanceCountIdx] layout that the producer and consumer mirror to
// each other one cell at a time.
package channel

// Global key namespace each channel reserves inside its exchange tag.
// Fixed-size SPSC/MPSC channels use the first three; variable-size ones
// use the remaining four plus their producer-side analogues.
const (
	TokenBufferKey                           = "TOKEN_BUFFER_KEY"
	ConsumerCoordinationBufferKey            = "CONSUMER_COORDINATION_BUFFER_KEY"
	ProducerCoordinationBufferKey            = "PRODUCER_COORDINATION_BUFFER_KEY"
	SizesBufferKey                           = "SIZES_BUFFER_KEY"
	ConsumerPayloadKey                       = "CONSUMER_PAYLOAD_KEY"
	ConsumerCoordinationBufferForSizesKey    = "CONSUMER_COORDINATION_BUFFER_FOR_SIZES_KEY"
	ConsumerCoordinationBufferForPayloadsKey = "CONSUMER_COORDINATION_BUFFER_FOR_PAYLOADS_KEY"
	ProducerCoordinationBufferForSizesKey    = "PRODUCER_COORDINATION_BUFFER_FOR_SIZES_KEY"
	ProducerCoordinationBufferForPayloadsKey = "PRODUCER_COORDINATION_BUFFER_FOR_PAYLOADS_KEY"
)

// Coordination buffer wire layout: a fixed two-cell array of unsigned
// 64-bit counters. HeadAdvanceCountIdx tracks how far the producer has
// advanced the ring's head; TailAdvanceCountIdx tracks how far the consumer
// has advanced the tail. The current depth is the difference of the two. Each index is the cell's
// offset in units of 8 bytes.
const (
	HeadAdvanceCountIdx = 0
	TailAdvanceCountIdx = 1
)

// CoordinationCellSize is the size in bytes of one coordination buffer
// cell, the unit a mirror memcpy moves.
const CoordinationCellSize = 8

// CoordinationBufferSize is the minimum size in bytes of a one-sided
// (fixed-channel) coordination buffer: two cells.
const CoordinationBufferSize = 2 * CoordinationCellSize
