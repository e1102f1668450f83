// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nonlocking

import (
	"context"
	"encoding/binary"
	"testing"

	"code.hybscloud.com/hicr/channel"
	"code.hybscloud.com/hicr/channel/spsc"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/comm/loopback"
	"code.hybscloud.com/hicr/memory/shmem"
	"code.hybscloud.com/hicr/topology"
)

const fixedTokenSize = 4

func TestFixedMPSCNonlockingRoundRobin(t *testing.T) {
	ctx := context.Background()
	space := topology.NewMemorySpace("RAM", 1<<20)
	mm := shmem.NewManager()
	cm := loopback.NewManager()

	const capacity = 8
	const producers = 3
	const perProducer = 5

	subConsumers := make([]*spsc.FixedConsumer, producers)
	subProducers := make([]*spsc.FixedProducer, producers)

	for id := 0; id < producers; id++ {
		tag := comm.Tag("nonlocking-fixed-" + string(rune('a'+id)))
		tokenBuffer, err := mm.AllocateLocalSlot(space, capacity*fixedTokenSize)
		if err != nil {
			t.Fatalf("AllocateLocalSlot tokenBuffer %d: %v", id, err)
		}
		consumerCoord, err := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
		if err != nil {
			t.Fatalf("AllocateLocalSlot consumerCoord %d: %v", id, err)
		}
		producerCoordLocal, err := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
		if err != nil {
			t.Fatalf("AllocateLocalSlot producerCoord %d: %v", id, err)
		}
		producerCoordGlobal, err := cm.PromoteLocalMemorySlot(producerCoordLocal, tag)
		if err != nil {
			t.Fatalf("PromoteLocalMemorySlot %d: %v", id, err)
		}

		consumer, err := spsc.NewFixedConsumer(ctx, cm, tag, tokenBuffer, consumerCoord, producerCoordGlobal, capacity, fixedTokenSize)
		if err != nil {
			t.Fatalf("NewFixedConsumer %d: %v", id, err)
		}
		producer, err := spsc.NewFixedProducer(cm, tag, consumer.GlobalTokenBuffer(), consumer.GlobalCoordinationBuffer(), producerCoordLocal, capacity, fixedTokenSize)
		if err != nil {
			t.Fatalf("NewFixedProducer %d: %v", id, err)
		}
		subConsumers[id] = consumer
		subProducers[id] = producer
	}

	for id := 0; id < producers; id++ {
		for i := 0; i < perProducer; i++ {
			value := uint32(id*100 + i)
			src, err := mm.AllocateLocalSlot(space, fixedTokenSize)
			if err != nil {
				t.Fatalf("AllocateLocalSlot src: %v", err)
			}
			binary.LittleEndian.PutUint32(src.Bytes(), value)
			if err := subProducers[id].Push(ctx, src, 1); err != nil {
				t.Fatalf("Push producer %d token %d: %v", id, i, err)
			}
		}
	}

	consumer := NewFixedConsumer(subConsumers)

	var order []int
	var lastServed [producers]int
	for round := 0; round < perProducer; round++ {
		for i := 0; i < producers; i++ {
			p, idx, err := consumer.Peek()
			if err != nil {
				t.Fatalf("Peek round %d slot %d: %v", round, i, err)
			}
			value := binary.LittleEndian.Uint32(subConsumers[p].GlobalTokenBuffer().Source.Bytes()[idx*fixedTokenSize:])
			wantID := p
			wantSeq := lastServed[p]
			want := uint32(wantID*100 + wantSeq)
			if value != want {
				t.Fatalf("round %d slot %d: got %d, want %d", round, i, value, want)
			}
			lastServed[p]++
			if err := consumer.Pop(ctx); err != nil {
				t.Fatalf("Pop round %d slot %d: %v", round, i, err)
			}
			order = append(order, p)
		}
	}

	// Each full round must visit every producer exactly once, in some
	// rotation, confirming no producer is starved.
	for round := 0; round < perProducer; round++ {
		seen := make(map[int]bool)
		for i := 0; i < producers; i++ {
			seen[order[round*producers+i]] = true
		}
		if len(seen) != producers {
			t.Fatalf("round %d did not serve every producer: %v", round, order[round*producers:(round+1)*producers])
		}
	}

	if !consumer.IsEmpty() {
		t.Fatalf("expected all sub-channels drained")
	}
}
