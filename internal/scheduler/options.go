package scheduler

import (
	"time"

	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/metrics"
	"github.com/annel0/voxelcore/internal/render"
	"github.com/annel0/voxelcore/internal/vec"
	"go.opentelemetry.io/otel/trace"
)

// FaultHandler получает ошибки фоновых задач (например, для отправки в Sentry)
type FaultHandler func(origin vec.Vec3, err error)

// Options - параметры менеджера чанков
type Options struct {
	TargetFPS  float64
	MaxThreads int
	// AsyncMeshing - строить геометрию мешей в пуле, а не в потоке кадра
	AsyncMeshing bool
	// PauseMeshingWhileGenerating - не перестраивать меши, пока идёт генерация
	PauseMeshingWhileGenerating bool
	// DrawUnloadedFaces - рисовать грани на границе с незагруженными чанками
	DrawUnloadedFaces bool

	Backend      render.Backend
	Bus          eventbus.EventBus
	Metrics      *metrics.Scheduler
	Tracer       trace.Tracer
	FaultHandler FaultHandler
	Logger       *logging.Logger

	// Now - источник времени для бюджета кадра (подменяется в тестах)
	Now func() time.Time
}

// DefaultOptions возвращает параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		TargetFPS:                   60,
		MaxThreads:                  4,
		PauseMeshingWhileGenerating: true,
		DrawUnloadedFaces:           true,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TargetFPS <= 0 {
		o.TargetFPS = def.TargetFPS
	}
	if o.MaxThreads <= 0 {
		o.MaxThreads = def.MaxThreads
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logging.GetSchedulerLogger()
	}
	return o
}

// Stats - диагностика менеджера
type Stats struct {
	AverageFPS      float64
	DeltaTime       time.Duration // Сглаженная длительность кадра
	MeshesLastFrame int
	LoadQueue       int
	PendingJobs     int
	RebuildQueue    int
	JobsInFlight    int
	Generating      bool
	Chunks          int
}
