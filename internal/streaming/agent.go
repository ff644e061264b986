// Package streaming подгружает столбцы чанков вокруг наблюдателя
// и выгружает дальние.
package streaming

import (
	"cmp"
	"slices"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// circleFactor - множитель радиуса для манхэттенского фильтра (приближение круга)
const circleFactor float32 = 1.55

// ChunkSource - то, что агент требует от менеджера чанков
type ChunkSource interface {
	ChunkSize() vec.Vec3
	HasColumn(column vec.Vec2) bool
	CreateColumn(column vec.Vec2) error
	EvictBeyond(center vec.Vec2, distance float64) int
}

// Options - параметры агента
type Options struct {
	LoadRadius           int     // Радиус подгрузки в столбцах чанков
	EvictionFactor       float64 // Выгрузка дальше LoadRadius * EvictionFactor чанков
	WaitBetweenGenerates int     // Кадров между обходами подгрузки
	WaitBetweenDeletes   int     // Кадров между проходами выгрузки
	Logger               *logging.Logger
}

// Agent держит загруженными столбцы вокруг наблюдателя.
// Tick вызывается из потока кадра; за кадр создаётся не больше одного столбца.
type Agent struct {
	source ChunkSource
	opts   Options
	order  []vec.Vec2
	logger *logging.Logger

	deleteTimer   int
	generateTimer int

	loading bool
	cursor  int
	center  mgl32.Vec3
}

// NewAgent создаёт агента и заранее вычисляет порядок подгрузки
func NewAgent(source ChunkSource, opts Options) *Agent {
	if opts.LoadRadius < 0 {
		opts.LoadRadius = 0
	}
	if opts.EvictionFactor <= 0 {
		opts.EvictionFactor = 1.5
	}
	if opts.WaitBetweenGenerates < 0 {
		opts.WaitBetweenGenerates = 0
	}
	if opts.WaitBetweenDeletes <= 0 {
		opts.WaitBetweenDeletes = 10
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetStreamingLogger()
	}

	return &Agent{
		source: source,
		opts:   opts,
		order:  LoadOrder(opts.LoadRadius),
		logger: opts.Logger,
	}
}

// LoadOrder возвращает смещения столбцов в радиусе radius от ближних к дальним.
// Равные манхэттенские расстояния упорядочиваются по |x|, затем по |z|.
// Столбец наблюдателя входит всегда, даже при нулевом радиусе.
func LoadOrder(radius int) []vec.Vec2 {
	limit := float32(radius) * circleFactor

	var offsets []vec.Vec2
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			o := vec.Vec2{X: x, Z: z}
			if o == (vec.Vec2{}) || float32(o.Manhattan()) < limit {
				offsets = append(offsets, o)
			}
		}
	}

	slices.SortStableFunc(offsets, func(a, b vec.Vec2) int {
		if c := cmp.Compare(a.Manhattan(), b.Manhattan()); c != 0 {
			return c
		}
		if c := cmp.Compare(vec.Abs(a.X), vec.Abs(b.X)); c != 0 {
			return c
		}
		return cmp.Compare(vec.Abs(a.Z), vec.Abs(b.Z))
	})
	return offsets
}

// Order возвращает копию порядка подгрузки
func (a *Agent) Order() []vec.Vec2 {
	return slices.Clone(a.order)
}

// Loading сообщает, идёт ли обход подгрузки
func (a *Agent) Loading() bool { return a.loading }

// EvictionDistance возвращает горизонтальное расстояние выгрузки в блоках
func (a *Agent) EvictionDistance() float64 {
	// При нулевом радиусе собственный столбец не должен выгружаться
	radius := max(a.opts.LoadRadius, 1)
	return float64(a.source.ChunkSize().X*radius) * a.opts.EvictionFactor
}

// ObserverColumn возвращает столбец чанков, в котором находится наблюдатель
func (a *Agent) ObserverColumn(observer mgl32.Vec3) vec.Vec2 {
	size := a.source.ChunkSize()
	x := int(math32.Floor(observer.X()))
	z := int(math32.Floor(observer.Z()))
	return vec.Vec2{X: vec.FloorDiv(x, size.X) * size.X, Z: vec.FloorDiv(z, size.Z) * size.Z}
}

// Tick выполняет работу агента за один кадр.
// Выгрузка идёт раз в WaitBetweenDeletes кадров и занимает весь кадр агента;
// обход подгрузки начинается раз в WaitBetweenGenerates кадров и продолжается
// по одному столбцу за кадр.
func (a *Agent) Tick(observer mgl32.Vec3) error {
	a.center = observer

	var err error
	if a.loading {
		err = a.step()
	}

	if a.deleteTimer >= a.opts.WaitBetweenDeletes {
		a.deleteTimer = 0
		a.evict()
		return err
	}
	a.deleteTimer++

	if a.loading {
		a.generateTimer = 0
		return err
	}
	if a.generateTimer >= a.opts.WaitBetweenGenerates {
		a.generateTimer = 0
		a.loading = true
		a.cursor = 0
		return a.step()
	}
	a.generateTimer++
	return err
}

// step продолжает обход с текущей позиции и создаёт не больше одного столбца
func (a *Agent) step() error {
	origin := a.ObserverColumn(a.center)
	size := a.source.ChunkSize()

	for a.cursor < len(a.order) {
		offset := a.order[a.cursor]
		a.cursor++

		column := vec.Vec2{X: origin.X + offset.X*size.X, Z: origin.Z + offset.Z*size.Z}
		if a.source.HasColumn(column) {
			continue
		}
		if err := a.source.CreateColumn(column); err != nil {
			a.logger.Error("Не удалось создать столбец %v: %v", column, err)
			return err
		}
		// Следующий столбец - в следующем кадре
		return nil
	}

	a.loading = false
	return nil
}

// evict выгружает чанки дальше расстояния выгрузки от наблюдателя
func (a *Agent) evict() int {
	center := vec.Vec2{
		X: int(math32.Floor(a.center.X())),
		Z: int(math32.Floor(a.center.Z())),
	}
	n := a.source.EvictBeyond(center, a.EvictionDistance())
	if n > 0 {
		a.logger.Debug("Выгружено %d чанков вокруг %v", n, center)
	}
	return n
}
