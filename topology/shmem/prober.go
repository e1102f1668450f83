// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package shmem implements a [topology.Prober] for a single shared-memory
// host: one [topology.Device] of type "NUMA Domain" carrying one compute
// resource per logical CPU and a single memory space sized from the Go
// runtime's memory limit, mirroring the shape the hwloc-backed topology
// manager reports (one device per NUMA domain, one compute resource per
// hardware thread).
package shmem

import (
	"context"
	"runtime"
	"runtime/debug"

	"code.hybscloud.com/hicr/topology"
)

// Prober discovers the local process's view of its host as a single
// NUMA-domain device.
type Prober struct{}

// NewProber builds a shared-memory topology prober.
func NewProber() *Prober {
	return &Prober{}
}

// QueryTopology reports one device with runtime.NumCPU() compute resources
// and a single memory space sized from the soft memory limit. With no limit
// configured the runtime reports math.MaxInt64, so the space is
// effectively unbounded.
func (p *Prober) QueryTopology(ctx context.Context) (*topology.Topology, error) {
	n := runtime.NumCPU()
	resources := make([]topology.ComputeResource, n)
	for i := range resources {
		resources[i] = topology.ComputeResource{Type: "Processing Unit"}
	}

	limit := debug.SetMemoryLimit(-1)
	var size uint64
	if limit > 0 {
		size = uint64(limit)
	}

	device := &topology.Device{
		Type:             "NUMA Domain",
		ComputeResources: resources,
		MemorySpaces:     []*topology.MemorySpace{topology.NewMemorySpace("RAM", size)},
	}

	return &topology.Topology{Devices: []*topology.Device{device}}, nil
}
