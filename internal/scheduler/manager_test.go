package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/annel0/voxelcore/internal/render"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/definition"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"github.com/annel0/voxelcore/internal/world/noise"
	"github.com/annel0/voxelcore/internal/world/terrain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	stoneDef = block.NewCube("stone", block.Face{Solid: true})
	stone    = block.New(stoneDef)
)

// Мир 4x4x4 чанков, два чанка в столбце, плоская земля высотой 2
func testWorld() *definition.World {
	return &definition.World{
		Name:         "test",
		MinHeight:    0,
		MaxHeight:    8,
		ChunkSize:    vec.Vec3{X: 4, Y: 4, Z: 4},
		SubMeshCount: 1,
		Atlas:        mesh.Atlas{},
		Registry:     block.NewRegistry(),
		Biomes: []*definition.Biome{{
			Name:        "flat",
			MoistureMin: 0,
			MoistureMax: 1,
			Layers: []*definition.Layer{{
				Type: definition.Absolute, Block: stoneDef, BaseHeight: 2, Frequency: 10, Exponent: 1,
			}},
		}},
	}
}

func flatGenerator(w *definition.World) ColumnGenerator {
	return terrain.NewGeneratorWithSamplers(w, noise.Flat{}, noise.Flat{})
}

type generatorFunc func(origin vec.Vec2) (*terrain.ColumnBuffer, error)

func (f generatorFunc) GenerateChunkColumn(origin vec.Vec2) (*terrain.ColumnBuffer, error) {
	return f(origin)
}

// gated блокирует генерацию до закрытия gate
func gated(inner ColumnGenerator, gate <-chan struct{}) ColumnGenerator {
	return generatorFunc(func(origin vec.Vec2) (*terrain.ColumnBuffer, error) {
		<-gate
		return inner.GenerateChunkColumn(origin)
	})
}

// fakeClock сдвигается на step при каждом чтении
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func newManager(t *testing.T, gen ColumnGenerator, mutate func(*Options)) (*Manager, *render.Memory) {
	t.Helper()
	w := testWorld()
	require.NoError(t, w.Validate())
	if gen == nil {
		gen = flatGenerator(w)
	}

	backend := render.NewMemory()
	opts := DefaultOptions()
	opts.MaxThreads = 2
	opts.DrawUnloadedFaces = false
	opts.Backend = backend
	if mutate != nil {
		mutate(&opts)
	}

	m := NewManager(context.Background(), w, gen, opts)
	t.Cleanup(m.Close)
	return m, backend
}

// generated создаёт чанк с заполненной сеткой в обход генератора
func generated(t *testing.T, m *Manager, origin vec.Vec3, fill *block.Block) *world.Chunk {
	t.Helper()
	c, err := m.Index().Create(origin)
	require.NoError(t, err)
	require.NoError(t, c.Transition(world.Loading))
	c.Fill(func(pos vec.Vec3) *block.Block {
		if pos.Y-origin.Y < 2 {
			return fill
		}
		return nil
	})
	require.NoError(t, c.Transition(world.Generated))
	c.SetNeedsRebuild(true)
	return c
}

// pumpUntil крутит кадры, пока условие не выполнится
func pumpUntil(t *testing.T, m *Manager, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		assert.NoError(t, m.Tick(context.Background(), 16*time.Millisecond))
		return cond()
	}, 5*time.Second, time.Millisecond)
}

func columnState(m *Manager, column vec.Vec2, state world.State) bool {
	for _, origin := range m.ColumnOrigins(column) {
		c := m.Index().Get(origin)
		if c == nil || c.State() != state {
			return false
		}
	}
	return true
}

func TestColumnGenerationAndMeshing(t *testing.T) {
	for _, async := range []bool{false, true} {
		name := "sync"
		if async {
			name = "async"
		}
		t.Run(name, func(t *testing.T) {
			m, backend := newManager(t, nil, func(o *Options) { o.AsyncMeshing = async })
			column := vec.Vec2{}

			require.NoError(t, m.CreateColumn(column))
			assert.Equal(t, 2, m.Index().Len())
			assert.True(t, columnState(m, column, world.Loading))
			assert.True(t, m.IsGenerating())

			pumpUntil(t, m, func() bool { return columnState(m, column, world.Loaded) })
			assert.False(t, m.IsGenerating())

			bottom, ok := backend.Mesh(vec.Vec3{})
			require.True(t, ok)
			// Только верхние грани: остальные закрыты соседями или смотрят в незагруженный мир
			assert.Equal(t, 16, bottom.QuadCount())

			top, ok := backend.Mesh(vec.Vec3{Y: 4})
			require.True(t, ok)
			assert.True(t, top.IsEmpty())

			c := m.Index().Get(vec.Vec3{})
			assert.False(t, c.NeedsRebuild())
			assert.Equal(t, 2*4*4, c.Count())
		})
	}
}

func TestNeighborColumnHidesSharedFaces(t *testing.T) {
	m, backend := newManager(t, nil, func(o *Options) { o.DrawUnloadedFaces = true })

	require.NoError(t, m.CreateColumn(vec.Vec2{}))
	pumpUntil(t, m, func() bool { return columnState(m, vec.Vec2{}, world.Loaded) })

	before, _ := backend.Mesh(vec.Vec3{})
	// 16 сверху, 16 снизу, по 8 на каждую из четырёх сторон
	assert.Equal(t, 64, before.QuadCount())

	require.NoError(t, m.CreateColumn(vec.Vec2{X: 4}))
	pumpUntil(t, m, func() bool {
		after, _ := backend.Mesh(vec.Vec3{})
		return columnState(m, vec.Vec2{X: 4}, world.Loaded) && after.QuadCount() == 56
	})
}

func TestEnqueueAtMostOnce(t *testing.T) {
	m, _ := newManager(t, nil, nil)
	c := generated(t, m, vec.Vec3{}, stone)

	assert.True(t, m.UpdateChunkAt(c.Origin()))
	assert.False(t, m.UpdateChunkAt(c.Origin()))
	assert.True(t, m.IsQueued(c.Origin()))
	assert.Equal(t, 1, m.Stats().RebuildQueue)

	// Чанк без флага перестройки в очередь не попадает
	other := generated(t, m, vec.Vec3{X: 4}, stone)
	other.SetNeedsRebuild(false)
	assert.False(t, m.UpdateChunkAt(other.Origin()))

	// Чанк без сетки тоже
	loading, err := m.CreateChunkAt(vec.Vec3{X: 8})
	require.NoError(t, err)
	loading.SetNeedsRebuild(true)
	assert.False(t, m.UpdateChunkAt(loading.Origin()))
}

func TestRebuildBudget(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Millisecond}
	m, backend := newManager(t, nil, func(o *Options) { o.Now = clock.Now })

	for i := 0; i < 8; i++ {
		m.UpdateChunkAt(generated(t, m, vec.Vec3{X: 4 * i}, stone).Origin())
	}
	require.Equal(t, 8, m.Stats().RebuildQueue)

	// Средний FPS равен целевому: бюджет нулевой, но один меш строится
	require.NoError(t, m.Tick(context.Background(), 0))
	assert.Equal(t, 1, m.Stats().MeshesLastFrame)
	assert.Equal(t, 7, m.Stats().RebuildQueue)

	// Запас в 5 FPS даёт 5 мс, часы идут по 1 мс на перестройку
	m.averageFPS = m.opts.TargetFPS + 5
	require.NoError(t, m.Tick(context.Background(), 0))
	assert.Equal(t, 5, m.Stats().MeshesLastFrame)
	assert.Equal(t, 2, m.Stats().RebuildQueue)
	assert.Equal(t, 6, backend.Len())
}

func TestFPSSmoothing(t *testing.T) {
	m, _ := newManager(t, nil, nil)
	start := m.Stats().AverageFPS
	require.Equal(t, 60.0, start)

	for i := 0; i < 200; i++ {
		require.NoError(t, m.Tick(context.Background(), 10*time.Millisecond))
	}
	fps := m.Stats().AverageFPS
	assert.Greater(t, fps, start)
	assert.InDelta(t, 100, fps, 5)
	assert.InDelta(t, 10*time.Millisecond, m.Stats().DeltaTime, float64(time.Millisecond))
}

func TestMeshingPausedWhileGenerating(t *testing.T) {
	gate := make(chan struct{})
	w := testWorld()
	m, _ := newManager(t, gated(flatGenerator(w), gate), nil)

	ready := generated(t, m, vec.Vec3{X: 40}, stone)
	m.UpdateChunkAt(ready.Origin())
	require.NoError(t, m.CreateColumn(vec.Vec2{}))

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Tick(context.Background(), 16*time.Millisecond))
		assert.Zero(t, m.Stats().MeshesLastFrame)
	}
	assert.Equal(t, world.Generated, ready.State())

	close(gate)
	pumpUntil(t, m, func() bool { return ready.State() == world.Loaded })
}

func TestGenerationFault(t *testing.T) {
	var (
		mu     sync.Mutex
		faults []vec.Vec3
	)
	panicking := generatorFunc(func(vec.Vec2) (*terrain.ColumnBuffer, error) {
		panic("сломанный шум")
	})
	m, _ := newManager(t, panicking, func(o *Options) {
		o.FaultHandler = func(origin vec.Vec3, err error) {
			assert.ErrorIs(t, err, ErrJobPanic)
			mu.Lock()
			faults = append(faults, origin)
			mu.Unlock()
		}
	})

	require.NoError(t, m.CreateColumn(vec.Vec2{}))
	pumpUntil(t, m, func() bool { return columnState(m, vec.Vec2{}, world.Failed) })

	mu.Lock()
	assert.ElementsMatch(t, []vec.Vec3{{}, {Y: 4}}, faults)
	mu.Unlock()
	assert.False(t, m.IsGenerating())
	assert.Zero(t, m.Stats().RebuildQueue)
}

// brokenCube падает при построении геометрии
type brokenCube struct {
	*block.Cube
}

func (brokenCube) AddMeshData(vec.Vec3, *mesh.Data, block.Neighborhood, mesh.Atlas, *block.Block) {
	panic("сломанная геометрия")
}

func TestAsyncMeshFaultMarksChunkFailed(t *testing.T) {
	var (
		mu     sync.Mutex
		faults []vec.Vec3
	)
	m, backend := newManager(t, nil, func(o *Options) {
		o.AsyncMeshing = true
		o.FaultHandler = func(origin vec.Vec3, err error) {
			assert.ErrorIs(t, err, ErrJobPanic)
			mu.Lock()
			faults = append(faults, origin)
			mu.Unlock()
		}
	})

	c := generated(t, m, vec.Vec3{}, stone)
	require.True(t, m.UpdateChunkAt(c.Origin()))
	pumpUntil(t, m, func() bool { return c.State() == world.Loaded })
	_, ok := backend.Mesh(c.Origin())
	require.True(t, ok)

	broken := block.New(brokenCube{block.NewCube("broken", block.Face{Solid: true})})
	_, err := m.SetBlockAt(vec.Vec3{X: 1, Y: 3, Z: 1}, broken, false)
	require.NoError(t, err)
	require.True(t, m.IsQueued(c.Origin()))

	pumpUntil(t, m, func() bool { return c.State() == world.Failed })

	assert.False(t, c.Busy())
	assert.False(t, m.IsQueued(c.Origin()))
	assert.Zero(t, m.Stats().JobsInFlight)
	_, ok = backend.Mesh(c.Origin())
	assert.False(t, ok, "меш сломанного чанка должен быть снят с бэкенда")

	mu.Lock()
	assert.Equal(t, []vec.Vec3{{}}, faults)
	mu.Unlock()

	// Сломанный чанк больше не попадает в очередь перестройки
	c.SetNeedsRebuild(true)
	assert.False(t, m.UpdateChunkAt(c.Origin()))
}

func TestGenerationError(t *testing.T) {
	boom := errors.New("boom")
	failing := generatorFunc(func(vec.Vec2) (*terrain.ColumnBuffer, error) { return nil, boom })
	m, _ := newManager(t, failing, nil)

	require.NoError(t, m.CreateColumn(vec.Vec2{X: -4}))
	pumpUntil(t, m, func() bool { return columnState(m, vec.Vec2{X: -4}, world.Failed) })
}

func TestLoadQueue(t *testing.T) {
	m, _ := newManager(t, nil, func(o *Options) { o.MaxThreads = 1 })

	m.LoadColumn(vec.Vec2{})
	m.LoadColumn(vec.Vec2{})
	m.LoadColumn(vec.Vec2{X: 4})
	assert.Equal(t, 2, m.Stats().LoadQueue)
	assert.True(t, m.HasColumn(vec.Vec2{}))
	assert.False(t, m.HasColumn(vec.Vec2{X: 8}))

	// Один поток: за кадр запускается одна загрузка
	require.NoError(t, m.Tick(context.Background(), 0))
	assert.Equal(t, 1, m.Stats().LoadQueue)
	assert.Equal(t, 1, m.Stats().JobsInFlight)

	pumpUntil(t, m, func() bool {
		return columnState(m, vec.Vec2{}, world.Loaded) && columnState(m, vec.Vec2{X: 4}, world.Loaded)
	})
	assert.Zero(t, m.Stats().LoadQueue)
}

func TestImmediateEditRebuildsNeighbors(t *testing.T) {
	m, backend := newManager(t, nil, nil)
	left := generated(t, m, vec.Vec3{}, stone)
	right := generated(t, m, vec.Vec3{X: 4}, stone)
	m.UpdateChunkAt(left.Origin())
	m.UpdateChunkAt(right.Origin())
	pumpUntil(t, m, func() bool {
		return left.State() == world.Loaded && right.State() == world.Loaded
	})
	uploads := backend.Uploads()

	// Удаление блока на границе открывает грань соседа
	prev, err := m.SetBlockAt(vec.Vec3{X: 3, Y: 1, Z: 1}, nil, true)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "stone", prev.Identifier())

	assert.Equal(t, uploads+2, backend.Uploads())
	assert.False(t, m.IsQueued(left.Origin()))
	assert.False(t, m.IsQueued(right.Origin()))
	assert.Nil(t, m.BlockAt(vec.Vec3{X: 3, Y: 1, Z: 1}))

	// Без immediate чанк ставится в очередь
	_, err = m.SetBlockAt(vec.Vec3{X: 1, Y: 1, Z: 1}, nil, false)
	require.NoError(t, err)
	assert.True(t, m.IsQueued(left.Origin()))
	assert.Equal(t, uploads+2, backend.Uploads())
}

func TestEvictBeyond(t *testing.T) {
	m, backend := newManager(t, nil, nil)
	for _, x := range []int{0, 4, 8, 12} {
		c := generated(t, m, vec.Vec3{X: x}, stone)
		m.UpdateChunkAt(c.Origin())
	}
	pumpUntil(t, m, func() bool { return backend.Len() == 4 })
	m.LoadColumn(vec.Vec2{X: 40})

	n := m.EvictBeyond(vec.Vec2{}, 6)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, m.Index().Len())
	assert.ElementsMatch(t, []vec.Vec3{{}, {X: 4}}, backend.Origins())
	assert.False(t, m.HasColumn(vec.Vec2{X: 40}))

	assert.False(t, m.DestroyChunkAt(vec.Vec3{X: 8}, true))
	assert.True(t, m.DestroyChunkAt(vec.Vec3{X: 5, Y: 2, Z: 3}, false))
	assert.Equal(t, 1, m.Index().Len())
}

func TestStaleColumnResultIgnored(t *testing.T) {
	gate := make(chan struct{})
	w := testWorld()
	m, _ := newManager(t, gated(flatGenerator(w), gate), nil)

	require.NoError(t, m.CreateColumn(vec.Vec2{}))
	assert.Equal(t, 2, m.EvictBeyond(vec.Vec2{X: 100}, 10))

	close(gate)
	pumpUntil(t, m, func() bool { return m.Stats().JobsInFlight == 0 })
	assert.Zero(t, m.Index().Len())
	assert.Zero(t, m.Stats().RebuildQueue)
}

func TestUpdateAdjacent(t *testing.T) {
	m, _ := newManager(t, nil, nil)
	center := generated(t, m, vec.Vec3{X: 4, Y: 4, Z: 4}, stone)
	center.SetNeedsRebuild(false)
	for _, dir := range vec.Directions {
		generated(t, m, center.Origin().Add(dir.Offset().Mul(m.ChunkSize())), stone)
	}

	assert.Equal(t, 6, m.UpdateAdjacent(center.Origin()))
	assert.Equal(t, 6, m.Stats().RebuildQueue)
	assert.False(t, m.IsQueued(center.Origin()))
}
