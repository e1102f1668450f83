// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package locking

import (
	"context"
	"sync"
	"testing"

	"code.hybscloud.com/spin"

	"code.hybscloud.com/hicr/channel"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/comm/shmem"
	shmemmem "code.hybscloud.com/hicr/memory/shmem"
	"code.hybscloud.com/hicr/topology"
)

func TestVariableMPSCLockingConcurrentProducers(t *testing.T) {
	ctx := context.Background()
	space := topology.NewMemorySpace("RAM", 1<<20)
	mm := shmemmem.NewManager()
	hub := shmem.NewHub(1)
	cm := shmem.NewManager(hub)

	const capacity = 12
	const payloadCapacity = 64
	const producers = 3
	const perProducer = 4
	const tag comm.Tag = "variable-mpsc-locking"

	sizesBuffer, err := mm.AllocateLocalSlot(space, capacity*sizeEntrySize)
	if err != nil {
		t.Fatalf("AllocateLocalSlot sizesBuffer: %v", err)
	}
	payloadBuffer, err := mm.AllocateLocalSlot(space, payloadCapacity)
	if err != nil {
		t.Fatalf("AllocateLocalSlot payloadBuffer: %v", err)
	}
	sizesCoord, err := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
	if err != nil {
		t.Fatalf("AllocateLocalSlot sizesCoord: %v", err)
	}
	payloadCoord, err := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
	if err != nil {
		t.Fatalf("AllocateLocalSlot payloadCoord: %v", err)
	}

	consumer, err := NewVariableConsumer(cm, tag, sizesBuffer, payloadBuffer, sizesCoord, payloadCoord, capacity, payloadCapacity)
	if err != nil {
		t.Fatalf("NewVariableConsumer: %v", err)
	}

	producerOf := func(id int) *VariableProducer {
		localSizesCoord, _ := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
		localPayloadCoord, _ := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
		p, err := NewVariableProducer(cm, tag,
			consumer.GlobalSizesBuffer(), consumer.GlobalPayloadBuffer(),
			consumer.GlobalSizesCoordinationBuffer(), consumer.GlobalPayloadCoordinationBuffer(),
			localSizesCoord, localPayloadCoord, capacity, payloadCapacity)
		if err != nil {
			t.Fatalf("NewVariableProducer %d: %v", id, err)
		}
		return p
	}

	var wg sync.WaitGroup
	for id := 0; id < producers; id++ {
		id := id
		producer := producerOf(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			var sw spin.Wait
			for i := 0; i < perProducer; i++ {
				src, err := mm.AllocateLocalSlot(space, 2)
				if err != nil {
					t.Errorf("AllocateLocalSlot src: %v", err)
					return
				}
				src.Bytes()[0] = byte(id)
				src.Bytes()[1] = byte(i)
				for {
					ok, err := producer.Push(ctx, src)
					if err != nil {
						t.Errorf("Push: %v", err)
						return
					}
					if ok {
						break
					}
					sw.Once()
				}
			}
		}()
	}
	wg.Wait()

	count := 0
	var sw spin.Wait
	for {
		_, _, err := consumer.Peek()
		if err != nil {
			break
		}
		for {
			ok, err := consumer.Pop(ctx)
			if err != nil {
				t.Fatalf("Pop: %v", err)
			}
			if ok {
				break
			}
			sw.Once()
		}
		count++
	}

	if count != producers*perProducer {
		t.Fatalf("drained %d tokens, want %d", count, producers*perProducer)
	}
}
