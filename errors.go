// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hicr provides a portable runtime abstraction for heterogeneous
// and distributed computing: memory slots, a communication manager, and
// SPSC/MPSC channel layers built on top of it.
package hicr

import (
	"fmt"

	"code.hybscloud.com/iox"
	"github.com/pkg/errors"
)

// LogicError indicates API misuse: a precondition the caller was responsible
// for upholding was violated (double free, operating on an unregistered
// slot, querying a device that does not exist). LogicError is a programming
// bug, not a runtime condition, and callers are not expected to recover from
// it the way they recover from [CapacityError] or [LockContention].
type LogicError struct {
	Op  string
	Msg string
}

func (e *LogicError) Error() string {
	return fmt.Sprintf("hicr: logic error in %s: %s", e.Op, e.Msg)
}

// NewLogicError builds a [LogicError] for operation op.
func NewLogicError(op, msg string) error {
	return &LogicError{Op: op, Msg: msg}
}

// CapacityError is a control flow signal raised when an operation cannot
// proceed because of a size or capacity constraint: a circular buffer push
// that would overflow, a pop against an empty buffer, or an allocation that
// exceeds a memory space's remaining size. CapacityError is never fatal;
// callers are expected to retry, back off, or treat it as "no data available"
// depending on direction.
//
// This mirrors the [iox.ErrWouldBlock] control-flow-signal convention used
// by code.hybscloud.com/lfq: a CapacityError is not wrapped in a stack trace
// and is safe to check with plain errors.Is.
type CapacityError struct {
	Op     string
	Reason CapacityReason
}

// CapacityReason enumerates why a [CapacityError] occurred.
type CapacityReason int

const (
	// ReasonWouldOverflow means a push/write would exceed the buffer's capacity.
	ReasonWouldOverflow CapacityReason = iota
	// ReasonWouldUnderflow means a pop/peek was attempted against an empty buffer.
	ReasonWouldUnderflow
	// ReasonOutOfMemory means a memory space lacks room for the requested allocation.
	ReasonOutOfMemory
)

func (r CapacityReason) String() string {
	switch r {
	case ReasonWouldOverflow:
		return "would overflow"
	case ReasonWouldUnderflow:
		return "would underflow"
	case ReasonOutOfMemory:
		return "out of memory"
	default:
		return "unknown"
	}
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("hicr: %s: %s", e.Op, e.Reason)
}

// Is reports whether target is a CapacityError, optionally with a matching
// Reason, enabling errors.Is(err, ErrWouldOverflow)-style checks.
func (e *CapacityError) Is(target error) bool {
	t, ok := target.(*CapacityError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// Sentinel CapacityError values for use with errors.Is.
var (
	ErrWouldOverflow  = &CapacityError{Op: "push", Reason: ReasonWouldOverflow}
	ErrWouldUnderflow = &CapacityError{Op: "pop", Reason: ReasonWouldUnderflow}
	ErrOutOfMemory    = &CapacityError{Op: "allocate", Reason: ReasonOutOfMemory}
)

// NewCapacityError builds a [CapacityError] for operation op with reason.
func NewCapacityError(op string, reason CapacityReason) error {
	return &CapacityError{Op: op, Reason: reason}
}

// TransportError wraps a failure surfaced by a communication backend
// (the shared-memory or loopback manager, or any future network-backed
// one). A TransportError is fatal for the tag it was raised against: the
// affected channel must be torn down, its slots deregistered, and no
// further progress assumed for that tag. The underlying cause is preserved
// via [github.com/pkg/errors] so the originating stack is not lost across
// the backend boundary.
type TransportError struct {
	Tag string
	Op  string
	err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("hicr: transport error in %s (tag=%s): %v", e.Op, e.Tag, e.err)
}

func (e *TransportError) Unwrap() error { return e.err }

// NewTransportError wraps cause as a fatal [TransportError] for tag, adding
// a stack trace via [errors.Wrap] so the failure can be diagnosed after it
// crosses the backend boundary.
func NewTransportError(tag, op string, cause error) error {
	return &TransportError{Tag: tag, Op: op, err: errors.Wrap(cause, op)}
}

// LockContention reports a non-blocking lock acquisition that did not
// obtain the lock. It is an expected, recoverable outcome of a try-lock:
// the caller lost a race, not a failure of the locking mechanism itself.
// The shipped comm.Manager backends report a lost AcquireGlobalLock race as
// (false, nil) rather than as this error; [IsSemantic] and PushWait treat a
// LockContention as a control flow signal.
type LockContention struct {
	Key string
}

func (e *LockContention) Error() string {
	return fmt.Sprintf("hicr: lock contention on %s", e.Key)
}

// NewLockContention reports that the non-blocking acquisition of key's lock
// did not succeed.
func NewLockContention(key string) error {
	return &LockContention{Key: key}
}

// SerializationError reports a malformed topology or global memory slot
// descriptor encountered while decoding data that crossed a process or
// backend boundary. It is recoverable at the boundary: the caller should
// reject the descriptor, not abort the process.
type SerializationError struct {
	Op  string
	err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("hicr: serialization error in %s: %v", e.Op, e.err)
}

func (e *SerializationError) Unwrap() error { return e.err }

// NewSerializationError wraps cause as a [SerializationError] for op.
func NewSerializationError(op string, cause error) error {
	return &SerializationError{Op: op, err: cause}
}

// ErrWouldBlock indicates a channel operation cannot proceed immediately
// because the underlying circular buffer is full (push) or empty (pop).
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency with
// code.hybscloud.com/lfq, the queue package this runtime's channel layer is
// built on top of.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal rather than a
// failure: a [CapacityError] or [LockContention], or a semantic iox error.
func IsSemantic(err error) bool {
	if iox.IsSemantic(err) {
		return true
	}
	var ce *CapacityError
	if errors.As(err, &ce) {
		return true
	}
	var lc *LockContention
	return errors.As(err, &lc)
}
