// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package topology models the device and memory space hierarchy a backend
// discovers at startup: a [Topology] holds one or more [Device]s, each
// exposing one or more [MemorySpace]s and zero or more compute resources.
package topology

import hicr "code.hybscloud.com/hicr"

// MemorySpace represents an autonomous unit of byte-addressable memory —
// host RAM, a NUMA domain, or a device's global memory. It is pure
// metadata: size is fixed at construction time and usage tracks how much
// of it is currently allocated.
type MemorySpace struct {
	Type  string `json:"Type"`
	Size  uint64 `json:"Size"`
	Usage uint64 `json:"Usage"`
}

// NewMemorySpace builds a MemorySpace of the given type and size with zero
// usage.
func NewMemorySpace(spaceType string, size uint64) *MemorySpace {
	return &MemorySpace{Type: spaceType, Size: size}
}

// IncreaseUsage registers that delta more bytes are now allocated from this
// space. Returns [hicr.ErrOutOfMemory] if doing so would exceed Size.
func (m *MemorySpace) IncreaseUsage(delta uint64) error {
	if m.Usage+delta > m.Size {
		return hicr.NewCapacityError("topology.MemorySpace.IncreaseUsage", hicr.ReasonOutOfMemory)
	}
	m.Usage += delta
	return nil
}

// DecreaseUsage registers that delta fewer bytes are allocated from this
// space. Returns a [hicr.LogicError] if delta exceeds the current usage,
// since that can only happen from a double-free or bookkeeping bug.
func (m *MemorySpace) DecreaseUsage(delta uint64) error {
	if delta > m.Usage {
		return hicr.NewLogicError("topology.MemorySpace.DecreaseUsage", "usage would go negative")
	}
	m.Usage -= delta
	return nil
}
