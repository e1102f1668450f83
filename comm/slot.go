// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package comm implements the communication manager: exchanging local
// slots into globally-addressable ones, one-sided memcpy, tagged fences,
// promotion/serialization of slots, and a distributed try-lock keyed by
// slot identity.
package comm

import "code.hybscloud.com/hicr/memory"

// Tag identifies an exchange epoch and the fence group scoped to it.
type Tag string

// Key names one peer's contribution within a tag's exchange.
type Key string

// GlobalSlot is a slot reachable from any peer participating in its tag's
// exchange epoch. It is either locally backed (Source != nil, meaning this
// process owns the underlying memory) or purely remote (Source == nil,
// meaning the bytes live on another peer and are only reachable through a
// comm.Manager).
type GlobalSlot struct {
	Tag    Tag
	Key    Key
	Source *memory.LocalSlot
}

// ID returns the slot's identity within its exchange epoch, used to key
// distributed locks.
func (g *GlobalSlot) ID() string { return string(g.Tag) + "/" + string(g.Key) }

// IsLocal reports whether this slot is backed by memory this process owns.
func (g *GlobalSlot) IsLocal() bool { return g.Source != nil }

// Slot is the argument type accepted by Memcpy's endpoints: either a
// *memory.LocalSlot or a *GlobalSlot. Go has no sum types and neither
// memory.LocalSlot nor GlobalSlot can be given a shared marker method
// without modifying memory's package, so Memcpy implementations type-switch
// on the dynamic value instead.
type Slot = any

// AsGlobalSlot reports whether s is a *GlobalSlot and returns it.
func AsGlobalSlot(s Slot) (*GlobalSlot, bool) {
	g, ok := s.(*GlobalSlot)
	return g, ok
}

// AsLocalSlot reports whether s is a *memory.LocalSlot and returns it.
func AsLocalSlot(s Slot) (*memory.LocalSlot, bool) {
	l, ok := s.(*memory.LocalSlot)
	return l, ok
}
