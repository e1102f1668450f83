// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package locking

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"code.hybscloud.com/spin"

	"code.hybscloud.com/hicr/channel"
	"code.hybscloud.com/hicr/comm"
	"code.hybscloud.com/hicr/comm/shmem"
	shmemmem "code.hybscloud.com/hicr/memory/shmem"
	"code.hybscloud.com/hicr/topology"
)

const lockingTokenSize = 4

func pushWithRetry(t *testing.T, push func() (bool, error)) {
	t.Helper()
	sw := spin.Wait{}
	for {
		ok, err := push()
		if err != nil && !errors.Is(err, channel.ErrWouldOverflow) {
			t.Fatalf("push: %v", err)
		}
		if ok {
			return
		}
		sw.Once()
	}
}

func TestFixedMPSCLockingConcurrentProducers(t *testing.T) {
	ctx := context.Background()
	space := topology.NewMemorySpace("RAM", 1<<20)
	mm := shmemmem.NewManager()
	hub := shmem.NewHub(1)
	cm := shmem.NewManager(hub)

	const capacity = 3
	const producers = 2
	const perProducer = 5
	const tag comm.Tag = "fixed-mpsc-locking"

	tokenBuffer, err := mm.AllocateLocalSlot(space, capacity*lockingTokenSize)
	if err != nil {
		t.Fatalf("AllocateLocalSlot tokenBuffer: %v", err)
	}
	coordSlot, err := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
	if err != nil {
		t.Fatalf("AllocateLocalSlot coordSlot: %v", err)
	}

	consumer, err := NewFixedConsumer(cm, tag, tokenBuffer, coordSlot, capacity, lockingTokenSize)
	if err != nil {
		t.Fatalf("NewFixedConsumer: %v", err)
	}

	producerOf := func(id int) *FixedProducer {
		localCoord, err := mm.AllocateLocalSlot(space, channel.CoordinationBufferSize)
		if err != nil {
			t.Fatalf("AllocateLocalSlot producer %d coord: %v", id, err)
		}
		p, err := NewFixedProducer(cm, tag, consumer.GlobalTokenBuffer(), consumer.GlobalCoordinationBuffer(), localCoord, capacity, lockingTokenSize)
		if err != nil {
			t.Fatalf("NewFixedProducer %d: %v", id, err)
		}
		return p
	}

	var wg sync.WaitGroup
	produced := make([][]uint32, producers)
	for id := 0; id < producers; id++ {
		id := id
		producer := producerOf(id)
		produced[id] = make([]uint32, perProducer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				value := uint32(id*100 + i)
				produced[id][i] = value
				src, err := mm.AllocateLocalSlot(space, lockingTokenSize)
				if err != nil {
					t.Errorf("AllocateLocalSlot src: %v", err)
					return
				}
				binary.LittleEndian.PutUint32(src.Bytes(), value)
				pushWithRetry(t, func() (bool, error) {
					return producer.Push(ctx, src, 1)
				})
			}
		}()
	}

	var seenPerProducer [producers]int
	var sw spin.Wait
	for i := 0; i < producers*perProducer; i++ {
		var idx uint64
		var err error
		for {
			idx, err = consumer.Peek(0)
			if err == nil {
				break
			}
			if !errors.Is(err, channel.ErrPeekOutOfRange) {
				t.Fatalf("Peek: %v", err)
			}
			sw.Once()
		}
		value := binary.LittleEndian.Uint32(tokenBuffer.Bytes()[idx*lockingTokenSize:])

		id := int(value / 100)
		want := produced[id][seenPerProducer[id]]
		if value != want {
			t.Fatalf("producer %d token %d: got %d, want %d (out-of-order delivery)", id, seenPerProducer[id], value, want)
		}
		seenPerProducer[id]++

		for {
			ok, err := consumer.Pop(ctx, 1)
			if err != nil {
				t.Fatalf("Pop: %v", err)
			}
			if ok {
				break
			}
			sw.Once()
		}
	}
	wg.Wait()

	for id := 0; id < producers; id++ {
		if seenPerProducer[id] != perProducer {
			t.Fatalf("producer %d: saw %d tokens, want %d", id, seenPerProducer[id], perProducer)
		}
	}

	if !consumer.IsEmpty() {
		t.Fatalf("expected channel empty after draining all tokens")
	}
}
