// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package topology

import (
	"context"

	jsoniter "github.com/json-iterator/go"

	hicr "code.hybscloud.com/hicr"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ComputeResource is one processing element (a CPU core, a GPU streaming
// multiprocessor) exposed by a [Device]. It carries no executable state of
// its own; a compute manager backend maps it onto whatever processing unit
// abstraction it implements.
type ComputeResource struct {
	Type   string      `json:"Type"`
	Caches []CacheInfo `json:"Caches,omitempty"`
}

// Device is a collection of compute resources and memory spaces, the unit
// a topology [Prober] enumerates. A host machine is usually a single
// Device; an accelerator card is a separate one.
type Device struct {
	Type             string            `json:"Type"`
	ComputeResources []ComputeResource `json:"Compute Resources"`
	MemorySpaces     []*MemorySpace    `json:"Memory Spaces"`
}

// Topology is the full set of devices a backend discovered.
type Topology struct {
	Devices []*Device `json:"Devices"`
}

// Prober discovers the devices, compute resources and memory spaces
// available to a backend. The shared-memory backend (topology/shmem)
// implements one.
type Prober interface {
	QueryTopology(ctx context.Context) (*Topology, error)
}

// Serialize encodes t using the authoritative key casing external tooling
// expects ("Compute Resources", "Memory Spaces", "Size (Bytes)", ...).
func (t *Topology) Serialize() ([]byte, error) {
	b, err := jsonAPI.Marshal(t)
	if err != nil {
		return nil, hicr.NewSerializationError("topology.Serialize", err)
	}
	return b, nil
}

// Deserialize decodes a topology previously produced by [Topology.Serialize].
func Deserialize(data []byte) (*Topology, error) {
	var t Topology
	if err := jsonAPI.Unmarshal(data, &t); err != nil {
		return nil, hicr.NewSerializationError("topology.Deserialize", err)
	}
	return &t, nil
}
