// Package scheduler управляет жизненным циклом чанков: очередь загрузки,
// фоновая генерация столбцов, очередь перестройки мешей с бюджетом кадра.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/observability"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/definition"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"github.com/annel0/voxelcore/internal/world/terrain"
	"github.com/elliotchance/orderedmap/v2"
	"go.opentelemetry.io/otel/codes"
)

// ErrJobPanic - паника внутри фоновой задачи
var ErrJobPanic = errors.New("паника в фоновой задаче")

const eventSource = "scheduler"

// ColumnGenerator строит независимый буфер столбца чанков
type ColumnGenerator interface {
	GenerateChunkColumn(origin vec.Vec2) (*terrain.ColumnBuffer, error)
}

type jobKind uint8

const (
	columnJob jobKind = iota
	meshJob
)

// jobResult передаётся из пула в поток кадра
type jobResult struct {
	kind     jobKind
	id       uint64
	column   vec.Vec2
	chunk    *world.Chunk
	buffer   *terrain.ColumnBuffer
	mesh     *mesh.Data
	err      error
	duration time.Duration
}

// Manager владеет индексом мира и очередями. Все методы, кроме Close,
// вызываются только из потока кадра; фоновые задачи общаются с ним
// через канал результатов.
type Manager struct {
	def       *definition.World
	index     *world.Index
	generator ColumnGenerator
	opts      Options
	logger    *logging.Logger
	ctx       context.Context

	pool    pond.Pool
	results chan jobResult

	loadQueue    *orderedmap.OrderedMap[vec.Vec2, struct{}]
	pendingJobs  *orderedmap.OrderedMap[vec.Vec2, struct{}]
	rebuildQueue *orderedmap.OrderedMap[vec.Vec3, *world.Chunk]

	columnJobs map[vec.Vec2]uint64 // Текущая задача генерации столбца
	meshJobs   map[vec.Vec3]uint64 // Текущая задача построения меша чанка
	nextJobID  uint64
	inFlight   int
	generating int

	averageFPS      float64
	deltaTime       float64 // Сглаженная длительность кадра в секундах
	meshesLastFrame int
}

// NewManager создаёт менеджер для описания мира def
func NewManager(ctx context.Context, def *definition.World, generator ColumnGenerator, opts Options) *Manager {
	opts = opts.withDefaults()
	if opts.Tracer == nil {
		opts.Tracer = observability.Tracer(nil)
	}

	return &Manager{
		def:          def,
		index:        world.NewIndex(def.ChunkSize),
		generator:    generator,
		opts:         opts,
		logger:       opts.Logger,
		ctx:          ctx,
		pool:         pond.NewPool(opts.MaxThreads),
		results:      make(chan jobResult, opts.MaxThreads),
		loadQueue:    orderedmap.NewOrderedMap[vec.Vec2, struct{}](),
		pendingJobs:  orderedmap.NewOrderedMap[vec.Vec2, struct{}](),
		rebuildQueue: orderedmap.NewOrderedMap[vec.Vec3, *world.Chunk](),
		columnJobs:   make(map[vec.Vec2]uint64),
		meshJobs:     make(map[vec.Vec3]uint64),
		averageFPS:   opts.TargetFPS,
		deltaTime:    1 / opts.TargetFPS,
	}
}

// Index возвращает индекс чанков
func (m *Manager) Index() *world.Index { return m.index }

// World возвращает описание мира
func (m *Manager) World() *definition.World { return m.def }

// ChunkSize возвращает размер чанка
func (m *Manager) ChunkSize() vec.Vec3 { return m.def.ChunkSize }

// IsGenerating сообщает, выполняется ли сейчас генерация хотя бы одного столбца
func (m *Manager) IsGenerating() bool { return m.generating > 0 }

// Close останавливает пул и отбрасывает незабранные результаты
func (m *Manager) Close() {
	m.pool.StopAndWait()
	for {
		select {
		case <-m.results:
		default:
			return
		}
	}
}

// topOrigin возвращает начало верхнего чанка столбца
func (m *Manager) topOrigin(column vec.Vec2) vec.Vec3 {
	return column.WithY(m.def.MaxHeight - m.def.ChunkSize.Y)
}

// ColumnOrigins возвращает начала чанков столбца снизу вверх
func (m *Manager) ColumnOrigins(column vec.Vec2) []vec.Vec3 {
	origins := make([]vec.Vec3, 0, m.def.ChunksPerColumn())
	for y := m.def.MinHeight; y < m.def.MaxHeight; y += m.def.ChunkSize.Y {
		origins = append(origins, column.WithY(y))
	}
	return origins
}

// ToColumn переводит мировую позицию в столбец чанков
func (m *Manager) ToColumn(pos vec.Vec3) vec.Vec2 {
	return m.index.ToChunkOrigin(pos).Column()
}

// HasColumn сообщает, существует ли столбец или ожидает загрузки
func (m *Manager) HasColumn(column vec.Vec2) bool {
	if _, queued := m.loadQueue.Get(column); queued {
		return true
	}
	for _, origin := range m.ColumnOrigins(column) {
		if m.index.Has(origin) {
			return true
		}
	}
	return false
}

// LoadColumn ставит столбец в очередь загрузки (без повторов)
func (m *Manager) LoadColumn(column vec.Vec2) {
	if m.HasColumn(column) {
		return
	}
	m.loadQueue.Set(column, struct{}{})
}

// CreateColumn создаёт все отсутствующие чанки столбца снизу вверх.
// Генерация запускается при создании верхнего чанка.
func (m *Manager) CreateColumn(column vec.Vec2) error {
	m.loadQueue.Delete(column)
	for _, origin := range m.ColumnOrigins(column) {
		if m.index.Has(origin) {
			continue
		}
		if _, err := m.CreateChunkAt(origin); err != nil {
			return err
		}
	}
	return nil
}

// CreateChunkAt создаёт пустой чанк в состоянии Loading
func (m *Manager) CreateChunkAt(origin vec.Vec3) (*world.Chunk, error) {
	c, err := m.index.Create(origin)
	if err != nil {
		m.logger.Error("Не удалось создать чанк %v: %v", origin, err)
		return nil, err
	}
	if err := c.Transition(world.Loading); err != nil {
		return nil, err
	}
	m.publish(eventbus.ChunkCreated, 1, c, "")

	column := origin.Column()
	if origin == m.topOrigin(column) || m.columnGenerated(column) {
		m.scheduleColumn(column)
	}
	return c, nil
}

// columnGenerated - генерация столбца уже завершена, а в нём появился новый чанк
func (m *Manager) columnGenerated(column vec.Vec2) bool {
	if _, running := m.columnJobs[column]; running {
		return false
	}
	top := m.index.Get(m.topOrigin(column))
	return top != nil && top.State() != world.Loading
}

// scheduleColumn запускает генерацию столбца или откладывает её до освобождения пула
func (m *Manager) scheduleColumn(column vec.Vec2) {
	if m.inFlight >= m.opts.MaxThreads {
		m.pendingJobs.Set(column, struct{}{})
		return
	}
	m.pendingJobs.Delete(column)
	m.startColumnJob(column)
}

func (m *Manager) startColumnJob(column vec.Vec2) {
	m.nextJobID++
	id := m.nextJobID
	m.columnJobs[column] = id
	m.inFlight++
	m.generating++

	generator := m.generator
	tracer := m.opts.Tracer
	ctx := m.ctx
	chunks := m.def.ChunksPerColumn()
	m.logger.Debug("Генерация столбца %v (задача %d)", column, id)

	m.pool.Submit(func() {
		start := time.Now()
		_, span := observability.StartColumnSpan(ctx, tracer, column, chunks)
		defer span.End()

		var buf *terrain.ColumnBuffer
		err := runJob(func() error {
			var err error
			buf, err = generator.GenerateChunkColumn(column)
			return err
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		m.results <- jobResult{
			kind:     columnJob,
			id:       id,
			column:   column,
			buffer:   buf,
			err:      err,
			duration: time.Since(start),
		}
	})
}

// runJob выполняет задачу, превращая панику в ошибку
func runJob(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanic, r)
		}
	}()
	return fn()
}

// Tick выполняет работу одного кадра длительностью dt:
// применяет результаты фоновых задач, перестраивает меши в пределах бюджета
// и запускает отложенные загрузки.
func (m *Manager) Tick(ctx context.Context, dt time.Duration) error {
	frameStart := m.opts.Now()
	m.updateFPS(dt)

	var errs []error
	errs = append(errs, m.drainResults(ctx)...)
	errs = append(errs, m.drainRebuildQueue(ctx, frameStart)...)
	errs = append(errs, m.drainLoadQueue()...)

	m.reportMetrics()
	return errors.Join(errs...)
}

// updateFPS обновляет сглаженные оценки длительности кадра и FPS
func (m *Manager) updateFPS(dt time.Duration) {
	if dt <= 0 {
		return
	}
	m.deltaTime += (dt.Seconds() - m.deltaTime) * 0.1
	if m.deltaTime > 0 {
		m.averageFPS += (1/m.deltaTime - m.averageFPS) * 0.05
	}
}

// budget возвращает бюджет перестройки мешей на кадр:
// запас между средним и целевым FPS в миллисекундах.
func (m *Manager) budget() time.Duration {
	ms := math.Round(m.averageFPS - m.opts.TargetFPS)
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}

// drainResults применяет все готовые результаты без ожидания
func (m *Manager) drainResults(ctx context.Context) []error {
	var errs []error
	for {
		select {
		case res := <-m.results:
			m.inFlight--
			var err error
			switch res.kind {
			case columnJob:
				m.generating--
				err = m.applyColumn(ctx, res)
			case meshJob:
				err = m.applyMesh(ctx, res)
			}
			if err != nil {
				errs = append(errs, err)
			}
		default:
			return errs
		}
	}
}

// applyColumn переносит буфер генерации в чанки столбца
func (m *Manager) applyColumn(ctx context.Context, res jobResult) error {
	if m.columnJobs[res.column] != res.id {
		// Столбец выгружен или перезапущен, пока шла генерация
		m.logger.Debug("Результат генерации %v (задача %d) устарел", res.column, res.id)
		return nil
	}
	delete(m.columnJobs, res.column)

	origins := m.ColumnOrigins(res.column)

	if res.err != nil {
		m.logger.Error("Генерация столбца %v завершилась ошибкой: %v", res.column, res.err)
		m.opts.Metrics.IncFaults()
		for _, origin := range origins {
			c := m.index.Get(origin)
			if c == nil || c.State() != world.Loading {
				continue
			}
			if err := c.Transition(world.Failed); err != nil {
				return err
			}
			m.fault(c, res.err)
		}
		return nil
	}

	for _, origin := range origins {
		c := m.index.Get(origin)
		if c == nil || c.State() != world.Loading {
			continue
		}
		c.Fill(res.buffer.BlockAt)
		if err := c.Transition(world.Generated); err != nil {
			return err
		}
		c.SetNeedsRebuild(true)
	}
	m.opts.Metrics.ObserveColumnGenerated(res.duration)

	// Сверху вниз: сам чанк и четыре горизонтальных соседа, чтобы они
	// пересчитали общую границу
	for i := len(origins) - 1; i >= 0; i-- {
		c := m.index.Get(origins[i])
		if c == nil {
			continue
		}
		m.enqueue(c)
		for _, dir := range []vec.Direction{vec.Right, vec.Left, vec.Forward, vec.Back} {
			n := m.index.Neighbor(c.Origin(), dir)
			if n == nil || !n.State().HasGrid() {
				continue
			}
			n.SetNeedsRebuild(true)
			m.enqueue(n)
		}
	}
	return nil
}

// enqueue ставит чанк в очередь перестройки, если меш устарел и чанк ещё не в очереди
func (m *Manager) enqueue(c *world.Chunk) bool {
	if c == nil || !c.NeedsRebuild() || !c.State().HasGrid() {
		return false
	}
	if _, queued := m.rebuildQueue.Get(c.Origin()); queued {
		return false
	}
	m.rebuildQueue.Set(c.Origin(), c)
	return true
}

// UpdateChunkAt ставит чанк с началом origin в очередь перестройки
func (m *Manager) UpdateChunkAt(origin vec.Vec3) bool {
	return m.enqueue(m.index.Get(origin))
}

// UpdateAdjacent ставит в очередь шесть соседей чанка
func (m *Manager) UpdateAdjacent(origin vec.Vec3) int {
	n := 0
	for _, o := range m.index.AdjacentOrigins(origin) {
		if m.UpdateChunkAt(o) {
			n++
		}
	}
	return n
}

// IsQueued сообщает, стоит ли чанк в очереди перестройки
func (m *Manager) IsQueued(origin vec.Vec3) bool {
	_, queued := m.rebuildQueue.Get(origin)
	return queued
}

// drainRebuildQueue перестраивает меши, пока не исчерпан бюджет кадра.
// Хотя бы один меш перестраивается за кадр.
func (m *Manager) drainRebuildQueue(ctx context.Context, frameStart time.Time) []error {
	m.meshesLastFrame = 0
	if m.opts.PauseMeshingWhileGenerating && m.IsGenerating() {
		return nil
	}

	budget := m.budget()
	var errs []error

	for el := m.rebuildQueue.Front(); el != nil; {
		next := el.Next()
		c := el.Value

		if c.Busy() {
			// Для чанка уже строится меш, оставляем в очереди
			el = next
			continue
		}
		if m.opts.AsyncMeshing && m.inFlight >= m.opts.MaxThreads {
			break
		}

		m.rebuildQueue.Delete(el.Key)
		var err error
		if m.opts.AsyncMeshing {
			err = m.startMeshJob(c)
		} else {
			err = m.rebuildNow(ctx, c)
		}
		if err != nil {
			errs = append(errs, err)
		}
		m.meshesLastFrame++

		if m.opts.Now().Sub(frameStart) >= budget {
			break
		}
		el = next
	}
	return errs
}

func (m *Manager) meshOptions() world.MeshOptions {
	return world.MeshOptions{
		Atlas:             m.def.Atlas,
		SubMeshCount:      m.def.SubMeshCount,
		DrawUnloadedFaces: m.opts.DrawUnloadedFaces,
	}
}

// rebuildNow строит меш чанка в текущем потоке и отдаёт его бэкенду
func (m *Manager) rebuildNow(ctx context.Context, c *world.Chunk) error {
	if !c.State().HasGrid() {
		return nil
	}
	if c.Busy() {
		// Результат фоновой задачи устареет
		delete(m.meshJobs, c.Origin())
		c.SetBusy(false)
	}

	start := time.Now()
	_, span := observability.StartMeshSpan(ctx, m.opts.Tracer, c.Origin())
	data, err := c.BuildMesh(m.meshOptions())
	span.End()
	if err != nil {
		m.logger.Error("Построение меша %v: %v", c.Origin(), err)
		return err
	}
	c.SetNeedsRebuild(false)
	m.opts.Metrics.ObserveMeshBuilt(time.Since(start))
	return m.upload(c, data)
}

// startMeshJob снимает снимок чанка и строит меш в пуле
func (m *Manager) startMeshJob(c *world.Chunk) error {
	snapshot, err := c.Snapshot(m.opts.DrawUnloadedFaces)
	if err != nil {
		m.logger.Error("Снимок чанка %v: %v", c.Origin(), err)
		return err
	}
	c.SetNeedsRebuild(false)
	c.SetBusy(true)

	m.nextJobID++
	id := m.nextJobID
	m.meshJobs[c.Origin()] = id
	m.inFlight++

	atlas, subMeshes := m.def.Atlas, m.def.SubMeshCount
	tracer := m.opts.Tracer
	ctx := m.ctx

	m.pool.Submit(func() {
		start := time.Now()
		_, span := observability.StartMeshSpan(ctx, tracer, snapshot.Origin())
		defer span.End()

		var data *mesh.Data
		err := runJob(func() error {
			data = snapshot.BuildMesh(atlas, subMeshes)
			return nil
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		m.results <- jobResult{
			kind:     meshJob,
			id:       id,
			chunk:    c,
			mesh:     data,
			err:      err,
			duration: time.Since(start),
		}
	})
	return nil
}

// applyMesh принимает результат фонового построения меша
func (m *Manager) applyMesh(ctx context.Context, res jobResult) error {
	origin := res.chunk.Origin()
	if m.meshJobs[origin] != res.id || m.index.Get(origin) != res.chunk {
		return nil
	}
	delete(m.meshJobs, origin)
	res.chunk.SetBusy(false)

	if res.err != nil {
		m.logger.Error("Фоновое построение меша %v: %v", origin, res.err)
		m.opts.Metrics.IncFaults()
		if err := res.chunk.Transition(world.Failed); err != nil {
			return err
		}
		// Старый меш больше не соответствует чанку
		if m.opts.Backend != nil {
			m.opts.Backend.Remove(origin)
		}
		m.rebuildQueue.Delete(origin)
		m.fault(res.chunk, res.err)
		return nil
	}

	m.opts.Metrics.ObserveMeshBuilt(res.duration)
	if err := m.upload(res.chunk, res.mesh); err != nil {
		return err
	}
	// Чанк менялся, пока строился меш
	m.enqueue(res.chunk)
	return nil
}

// upload проводит чанк через MeshReady в Loaded и отдаёт меш бэкенду
func (m *Manager) upload(c *world.Chunk, data *mesh.Data) error {
	if !c.State().HasGrid() {
		return nil
	}
	if c.State() != world.MeshReady {
		if err := c.Transition(world.MeshReady); err != nil {
			return err
		}
	}
	if m.opts.Backend != nil {
		if err := m.opts.Backend.Upload(c.Origin(), data); err != nil {
			m.logger.Error("Загрузка меша %v в бэкенд: %v", c.Origin(), err)
			return err
		}
	}
	if err := c.Transition(world.Loaded); err != nil {
		return err
	}
	m.publishMesh(c, data.QuadCount())
	return nil
}

// drainLoadQueue запускает отложенные задачи и загрузки, пока есть место в пуле
func (m *Manager) drainLoadQueue() []error {
	var errs []error
	for m.inFlight < m.opts.MaxThreads && m.pendingJobs.Len() > 0 {
		column := m.pendingJobs.Front().Key
		m.pendingJobs.Delete(column)
		m.startColumnJob(column)
	}
	for m.inFlight < m.opts.MaxThreads && m.loadQueue.Len() > 0 {
		column := m.loadQueue.Front().Key
		if err := m.CreateColumn(column); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// BlockAt возвращает блок по мировой позиции
func (m *Manager) BlockAt(pos vec.Vec3) *block.Block {
	return m.index.BlockAt(pos)
}

// SetBlockAt ставит блок по мировой позиции и возвращает прежний.
// При immediate меши изменённого чанка и затронутых соседей перестраиваются сразу,
// иначе чанки ставятся в очередь перестройки.
func (m *Manager) SetBlockAt(pos vec.Vec3, b *block.Block, immediate bool) (*block.Block, error) {
	prev, marked := m.index.SetBlockAt(pos, b)

	var errs []error
	for _, c := range marked {
		if immediate && c.State().HasGrid() {
			m.rebuildQueue.Delete(c.Origin())
			if err := m.rebuildNow(m.ctx, c); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		m.enqueue(c)
	}
	return prev, errors.Join(errs...)
}

// DestroyChunkAt удаляет чанк по началу (isOrigin) или по мировой позиции
func (m *Manager) DestroyChunkAt(pos vec.Vec3, isOrigin bool) bool {
	origin := pos
	if !isOrigin {
		origin = m.index.ToChunkOrigin(pos)
	}

	c := m.index.Remove(origin)
	if c == nil {
		return false
	}
	_ = c.Transition(world.MarkedForDeletion)
	m.rebuildQueue.Delete(origin)
	delete(m.meshJobs, origin)
	if m.opts.Backend != nil {
		m.opts.Backend.Remove(origin)
	}

	column := origin.Column()
	if !m.HasColumn(column) {
		// Результат генерации пустого столбца больше не нужен
		delete(m.columnJobs, column)
		m.pendingJobs.Delete(column)
	}

	m.opts.Metrics.AddEvicted(1)
	m.publish(eventbus.ChunkRemoved, 1, c, "")
	return true
}

// EvictBeyond удаляет чанки, горизонтальное расстояние которых до center больше distance
func (m *Manager) EvictBeyond(center vec.Vec2, distance float64) int {
	n := 0
	for _, origin := range m.index.Origins() {
		if origin.Column().DistanceTo(center) > distance {
			if m.DestroyChunkAt(origin, true) {
				n++
			}
		}
	}
	if n > 0 {
		m.logger.Debug("Выгружено чанков: %d", n)
	}

	// Столбцы из очереди загрузки тоже больше не нужны
	var stale []vec.Vec2
	for el := m.loadQueue.Front(); el != nil; el = el.Next() {
		if el.Key.DistanceTo(center) > distance {
			stale = append(stale, el.Key)
		}
	}
	for _, column := range stale {
		m.loadQueue.Delete(column)
	}
	return n
}

// Stats возвращает диагностику менеджера
func (m *Manager) Stats() Stats {
	return Stats{
		AverageFPS:      m.averageFPS,
		DeltaTime:       time.Duration(m.deltaTime * float64(time.Second)),
		MeshesLastFrame: m.meshesLastFrame,
		LoadQueue:       m.loadQueue.Len(),
		PendingJobs:     m.pendingJobs.Len(),
		RebuildQueue:    m.rebuildQueue.Len(),
		JobsInFlight:    m.inFlight,
		Generating:      m.IsGenerating(),
		Chunks:          m.index.Len(),
	}
}

func (m *Manager) reportMetrics() {
	if m.opts.Metrics == nil {
		return
	}
	m.opts.Metrics.SetQueues(m.loadQueue.Len()+m.pendingJobs.Len(), m.rebuildQueue.Len(), m.inFlight)
	m.opts.Metrics.SetChunks(m.index.Len())
	m.opts.Metrics.SetAverageFPS(m.averageFPS)
}

// fault сообщает об ошибке фоновой задачи
func (m *Manager) fault(c *world.Chunk, err error) {
	m.publish(eventbus.ChunkFailed, 9, c, err.Error())
	if m.opts.FaultHandler != nil {
		m.opts.FaultHandler(c.Origin(), err)
	}
}

func (m *Manager) publish(eventType string, priority int, c *world.Chunk, errText string) {
	if m.opts.Bus == nil {
		return
	}
	ev := eventbus.NewEnvelope(eventSource, eventType, priority, eventbus.ChunkPayload{
		Origin: c.Origin(),
		State:  c.State().String(),
		Error:  errText,
	})
	if err := m.opts.Bus.Publish(m.ctx, ev); err != nil {
		m.logger.Warn("Не удалось опубликовать %s: %v", eventType, err)
	}
}

func (m *Manager) publishMesh(c *world.Chunk, quads int) {
	if m.opts.Bus == nil {
		return
	}
	ev := eventbus.NewEnvelope(eventSource, eventbus.ChunkMeshReady, 1, eventbus.ChunkPayload{
		Origin: c.Origin(),
		State:  c.State().String(),
		Quads:  quads,
	})
	if err := m.opts.Bus.Publish(m.ctx, ev); err != nil {
		m.logger.Warn("Не удалось опубликовать %s: %v", eventbus.ChunkMeshReady, err)
	}
}
