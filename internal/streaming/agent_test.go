package streaming

import (
	"errors"
	"testing"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evictCall struct {
	center   vec.Vec2
	distance float64
}

type fakeSource struct {
	size      vec.Vec3
	columns   map[vec.Vec2]bool
	created   []vec.Vec2
	evictions []evictCall
	err       error
}

func newFakeSource() *fakeSource {
	return &fakeSource{size: vec.Vec3{X: 16, Y: 16, Z: 16}, columns: make(map[vec.Vec2]bool)}
}

func (f *fakeSource) ChunkSize() vec.Vec3 { return f.size }

func (f *fakeSource) HasColumn(column vec.Vec2) bool { return f.columns[column] }

func (f *fakeSource) CreateColumn(column vec.Vec2) error {
	if f.err != nil {
		return f.err
	}
	f.columns[column] = true
	f.created = append(f.created, column)
	return nil
}

func (f *fakeSource) EvictBeyond(center vec.Vec2, distance float64) int {
	f.evictions = append(f.evictions, evictCall{center, distance})
	return 0
}

func TestLoadOrder(t *testing.T) {
	order := LoadOrder(2)
	require.Len(t, order, 21)
	assert.Equal(t, []vec.Vec2{
		{X: 0, Z: 0}, {X: 0, Z: -1}, {X: 0, Z: 1}, {X: -1, Z: 0}, {X: 1, Z: 0},
		{X: 0, Z: -2}, {X: 0, Z: 2}, {X: -1, Z: -1}, {X: -1, Z: 1}, {X: 1, Z: -1}, {X: 1, Z: 1}, {X: -2, Z: 0}, {X: 2, Z: 0},
	}, order[:13])

	for i := 1; i < len(order); i++ {
		assert.LessOrEqual(t, order[i-1].Manhattan(), order[i].Manhattan())
	}

	assert.Len(t, LoadOrder(1), 5)
	assert.Equal(t, []vec.Vec2{{}}, LoadOrder(0))
	assert.Empty(t, LoadOrder(-1))

	// Углы квадрата отсекаются круговым фильтром
	for _, o := range LoadOrder(8) {
		assert.Less(t, float32(o.Manhattan()), float32(8)*circleFactor)
	}
	assert.NotContains(t, LoadOrder(8), vec.Vec2{X: 8, Z: 8})
}

func TestAgentCreatesOneColumnPerFrame(t *testing.T) {
	src := newFakeSource()
	agent := NewAgent(src, Options{LoadRadius: 2, WaitBetweenGenerates: 1, WaitBetweenDeletes: 1000})
	observer := mgl32.Vec3{0.5, 10, 0.5}

	require.NoError(t, agent.Tick(observer))
	assert.Empty(t, src.created)

	for i := 1; i <= 21; i++ {
		require.NoError(t, agent.Tick(observer))
		require.Len(t, src.created, i)
	}
	assert.Equal(t, []vec.Vec2{{X: 0, Z: 0}, {X: 0, Z: -16}, {X: 0, Z: 16}, {X: -16, Z: 0}, {X: 16, Z: 0}}, src.created[:5])

	for i := 0; i < 5; i++ {
		require.NoError(t, agent.Tick(observer))
	}
	assert.Len(t, src.created, 21)
	assert.False(t, agent.Loading())
}

func TestAgentSkipsExistingColumns(t *testing.T) {
	src := newFakeSource()
	src.columns[vec.Vec2{}] = true
	src.columns[vec.Vec2{Z: -16}] = true
	agent := NewAgent(src, Options{LoadRadius: 1, WaitBetweenGenerates: 0, WaitBetweenDeletes: 1000})

	require.NoError(t, agent.Tick(mgl32.Vec3{}))
	require.NoError(t, agent.Tick(mgl32.Vec3{}))
	assert.Equal(t, []vec.Vec2{{X: 0, Z: 16}, {X: -16, Z: 0}}, src.created)
}

func TestAgentFollowsObserver(t *testing.T) {
	src := newFakeSource()
	agent := NewAgent(src, Options{LoadRadius: 1, WaitBetweenGenerates: 0, WaitBetweenDeletes: 1000})

	for i := 0; i < 10; i++ {
		require.NoError(t, agent.Tick(mgl32.Vec3{}))
	}
	require.Len(t, src.created, 5)

	far := mgl32.Vec3{-0.5, 0, -17}
	assert.Equal(t, vec.Vec2{X: -16, Z: -32}, agent.ObserverColumn(far))

	for i := 0; i < 10; i++ {
		require.NoError(t, agent.Tick(far))
	}
	assert.Contains(t, src.created, vec.Vec2{X: -16, Z: -32})
	assert.Contains(t, src.created, vec.Vec2{X: -16, Z: -48})
}

func TestAgentEvictionCadence(t *testing.T) {
	src := newFakeSource()
	agent := NewAgent(src, Options{LoadRadius: 2, EvictionFactor: 1.5, WaitBetweenGenerates: 1000, WaitBetweenDeletes: 3})
	observer := mgl32.Vec3{10.7, 3, -3.2}

	for i := 0; i < 3; i++ {
		require.NoError(t, agent.Tick(observer))
	}
	assert.Empty(t, src.evictions)

	require.NoError(t, agent.Tick(observer))
	require.Len(t, src.evictions, 1)
	assert.Equal(t, evictCall{center: vec.Vec2{X: 10, Z: -4}, distance: 48}, src.evictions[0])

	for i := 0; i < 4; i++ {
		require.NoError(t, agent.Tick(observer))
	}
	assert.Len(t, src.evictions, 2)
	assert.Equal(t, 48.0, agent.EvictionDistance())
}

func TestAgentZeroRadiusKeepsOwnColumn(t *testing.T) {
	src := newFakeSource()
	agent := NewAgent(src, Options{LoadRadius: 0, EvictionFactor: 1.5, WaitBetweenGenerates: 0, WaitBetweenDeletes: 1000})
	observer := mgl32.Vec3{20, 0, 31}

	for i := 0; i < 3; i++ {
		require.NoError(t, agent.Tick(observer))
	}
	assert.Equal(t, []vec.Vec2{{X: 16, Z: 16}}, src.created)

	// Дальний угол своего столбца ближе дистанции выгрузки
	assert.Equal(t, 24.0, agent.EvictionDistance())
	assert.Less(t, vec.Vec2{X: 16, Z: 16}.DistanceTo(vec.Vec2{X: 31, Z: 31}), agent.EvictionDistance())
}

func TestAgentCreateError(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("индекс занят")
	agent := NewAgent(src, Options{LoadRadius: 1, WaitBetweenGenerates: 0, WaitBetweenDeletes: 1000})

	err := agent.Tick(mgl32.Vec3{})
	require.ErrorIs(t, err, src.err)
	assert.True(t, agent.Loading())
}
