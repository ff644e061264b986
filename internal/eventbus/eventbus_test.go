package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeWithFilter(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var mu sync.Mutex
	var got []*Envelope
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{ChunkMeshReady}}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	origin := vec.Vec3{X: 16}
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("scheduler", ChunkCreated, 1, ChunkPayload{Origin: origin})))
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("scheduler", ChunkMeshReady, 1, ChunkPayload{Origin: origin, Quads: 6})))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, ChunkMeshReady, got[0].EventType)
	assert.Equal(t, 6, got[0].Chunk.Quads)
	assert.NotEmpty(t, got[0].ID)
	mu.Unlock()

	assert.Equal(t, uint64(2), bus.Metrics().Published)
}

func TestEnvelopeIDsAreUnique(t *testing.T) {
	a := NewEnvelope("x", ChunkCreated, 0, ChunkPayload{})
	b := NewEnvelope("x", ChunkCreated, 0, ChunkPayload{})
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	calls := 0
	var mu sync.Mutex
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("s", ChunkRemoved, 0, ChunkPayload{})))
	bus.Close()

	mu.Lock()
	assert.Equal(t, 0, calls)
	mu.Unlock()
}

func TestCloseDeliversPending(t *testing.T) {
	bus := NewMemoryBus(8)
	var mu sync.Mutex
	count := 0
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), NewEnvelope("s", ChunkCreated, 0, ChunkPayload{})))
	}
	bus.Close()
	bus.Close() // повторный вызов безопасен

	mu.Lock()
	assert.Equal(t, 5, count)
	mu.Unlock()
	assert.Equal(t, uint64(5), bus.Metrics().Consumed)

	// После закрытия события молча игнорируются
	assert.NoError(t, bus.Publish(context.Background(), NewEnvelope("s", ChunkCreated, 0, ChunkPayload{})))
}

func TestCloseWhileHighPriorityPublishWaits(t *testing.T) {
	// Рассылка ещё не запущена, буфер на одно событие уже занят
	mb := newMemoryBus(1)
	require.NoError(t, mb.Publish(context.Background(), NewEnvelope("s", ChunkCreated, 9, ChunkPayload{})))

	var published sync.WaitGroup
	for i := 0; i < 2; i++ {
		published.Add(1)
		go func() {
			defer published.Done()
			assert.NoError(t, mb.Publish(context.Background(), NewEnvelope("s", ChunkFailed, 9, ChunkPayload{})))
		}()
	}
	// Даём публикаторам упереться в полный буфер
	time.Sleep(10 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		mb.Close()
		close(closed)
	}()
	time.Sleep(10 * time.Millisecond)
	go mb.dispatchLoop()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close завис, пока публикаторы ждали места в буфере")
	}
	published.Wait()

	stats := mb.Metrics()
	assert.GreaterOrEqual(t, stats.Published, uint64(1))
	assert.LessOrEqual(t, stats.Published+stats.Dropped, uint64(3))
	assert.Zero(t, stats.InFlight)
}

func TestLoggingListener(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	sub, err := StartLoggingListener(bus)
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("s", ChunkFailed, 9, ChunkPayload{Error: "boom"})))
	sub.Unsubscribe()
}
