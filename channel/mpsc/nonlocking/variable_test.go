// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nonlocking

import (
	"context"
	"testing"

	"code.hybscloud.com/hicr/channel"
	"code.hybscloud.com/hicr/channel/spsc"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/comm/loopback"
	"code.hybscloud.com/hicr/memory/shmem"
	"code.hybscloud.com/hicr/topology"
)

func TestVariableMPSCNonlockingRoundRobin(t *testing.T) {
	ctx := context.Background()
	space := topology.NewMemorySpace("RAM", 1<<20)
	mm := shmem.NewManager()
	cm := loopback.NewManager()

	const capacity = 8
	const payloadCapacity = 32
	const producers = 3
	const perProducer = 2

	subConsumers := make([]*spsc.VariableConsumer, producers)
	subProducers := make([]*spsc.VariableProducer, producers)

	for id := 0; id < producers; id++ {
		tag := comm.Tag("nonlocking-variable-" + string(rune('a'+id)))
		sizesBuffer, _ := mm.AllocateLocalSlot(space, capacity*8)
		payloadBuffer, _ := mm.AllocateLocalSlot(space, payloadCapacity)
		sizesCoord, _ := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
		payloadCoord, _ := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
		producerSizesCoordLocal, _ := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
		producerPayloadCoordLocal, _ := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)

		producerSizesCoordGlobal, err := cm.PromoteLocalMemorySlot(producerSizesCoordLocal, tag)
		if err != nil {
			t.Fatalf("PromoteLocalMemorySlot sizes %d: %v", id, err)
		}
		producerPayloadCoordGlobal, err := cm.PromoteLocalMemorySlot(producerPayloadCoordLocal, tag)
		if err != nil {
			t.Fatalf("PromoteLocalMemorySlot payload %d: %v", id, err)
		}

		consumer, err := spsc.NewVariableConsumer(ctx, cm, tag, sizesBuffer, payloadBuffer, sizesCoord, payloadCoord,
			producerSizesCoordGlobal, producerPayloadCoordGlobal, capacity, payloadCapacity)
		if err != nil {
			t.Fatalf("NewVariableConsumer %d: %v", id, err)
		}
		producer, err := spsc.NewVariableProducer(cm, tag,
			consumer.GlobalSizesBuffer(), consumer.GlobalPayloadBuffer(),
			consumer.GlobalSizesCoordinationBuffer(), consumer.GlobalPayloadCoordinationBuffer(),
			producerSizesCoordLocal, producerPayloadCoordLocal, capacity, payloadCapacity)
		if err != nil {
			t.Fatalf("NewVariableProducer %d: %v", id, err)
		}
		subConsumers[id] = consumer
		subProducers[id] = producer
	}

	for id := 0; id < producers; id++ {
		for i := 0; i < perProducer; i++ {
			src, err := mm.AllocateLocalSlot(space, 2)
			if err != nil {
				t.Fatalf("AllocateLocalSlot src: %v", err)
			}
			src.Bytes()[0] = byte(id)
			src.Bytes()[1] = byte(i)
			if err := subProducers[id].Push(ctx, src); err != nil {
				t.Fatalf("Push producer %d token %d: %v", id, i, err)
			}
		}
	}

	consumer := NewVariableConsumer(subConsumers)

	var lastServed [producers]int
	for round := 0; round < perProducer; round++ {
		seen := make(map[int]bool)
		for i := 0; i < producers; i++ {
			p, offset, length, err := consumer.Peek()
			if err != nil {
				t.Fatalf("Peek round %d slot %d: %v", round, i, err)
			}
			got := make([]byte, length)
			if err := consumer.CopyOut(got, offset, length); err != nil {
				t.Fatalf("CopyOut: %v", err)
			}
			if got[0] != byte(p) || got[1] != byte(lastServed[p]) {
				t.Fatalf("round %d slot %d: got %v, want producer=%d seq=%d", round, i, got, p, lastServed[p])
			}
			lastServed[p]++
			if err := consumer.Pop(ctx); err != nil {
				t.Fatalf("Pop round %d slot %d: %v", round, i, err)
			}
			seen[p] = true
		}
		if len(seen) != producers {
			t.Fatalf("round %d did not serve every producer", round)
		}
	}

	if !consumer.IsEmpty() {
		t.Fatalf("expected all sub-channels drained")
	}
}
