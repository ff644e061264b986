// Package metrics содержит Prometheus-метрики планировщика и шины событий.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scheduler - метрики планировщика чанков. Все методы безопасны для nil.
type Scheduler struct {
	chunks        prometheus.Gauge
	loadQueue     prometheus.Gauge
	rebuildQueue  prometheus.Gauge
	jobsInFlight  prometheus.Gauge
	averageFPS    prometheus.Gauge
	generated     prometheus.Counter
	meshesBuilt   prometheus.Counter
	faults        prometheus.Counter
	evicted       prometheus.Counter
	meshBuild     prometheus.Histogram
	columnGenTime prometheus.Histogram
}

// NewScheduler создаёт и регистрирует метрики планировщика в reg.
func NewScheduler(reg prometheus.Registerer) (*Scheduler, error) {
	s := &Scheduler{
		chunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "chunks",
			Help:      "Количество чанков в индексе мира.",
		}),
		loadQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "load_queue_length",
			Help:      "Столбцы, ожидающие генерации.",
		}),
		rebuildQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "rebuild_queue_length",
			Help:      "Чанки, ожидающие перестройки меша.",
		}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "jobs_in_flight",
			Help:      "Фоновые задачи генерации и построения мешей в работе.",
		}),
		averageFPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "average_fps",
			Help:      "Сглаженная частота кадров.",
		}),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "columns_generated_total",
			Help:      "Сгенерированные столбцы чанков.",
		}),
		meshesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "meshes_built_total",
			Help:      "Построенные меши чанков.",
		}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "job_faults_total",
			Help:      "Фоновые задачи, завершившиеся ошибкой.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "chunks_evicted_total",
			Help:      "Чанки, выгруженные по расстоянию или удалённые явно.",
		}),
		meshBuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "mesh_build_seconds",
			Help:      "Время построения меша одного чанка.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		columnGenTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Subsystem: "scheduler",
			Name:      "column_generation_seconds",
			Help:      "Время генерации столбца чанков.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	collectors := []prometheus.Collector{
		s.chunks, s.loadQueue, s.rebuildQueue, s.jobsInFlight, s.averageFPS,
		s.generated, s.meshesBuilt, s.faults, s.evicted, s.meshBuild, s.columnGenTime,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetQueues обновляет размеры очередей и число задач в работе
func (s *Scheduler) SetQueues(load, rebuild, inFlight int) {
	if s == nil {
		return
	}
	s.loadQueue.Set(float64(load))
	s.rebuildQueue.Set(float64(rebuild))
	s.jobsInFlight.Set(float64(inFlight))
}

// SetChunks обновляет количество чанков
func (s *Scheduler) SetChunks(n int) {
	if s == nil {
		return
	}
	s.chunks.Set(float64(n))
}

// SetAverageFPS обновляет сглаженную частоту кадров
func (s *Scheduler) SetAverageFPS(fps float64) {
	if s == nil {
		return
	}
	s.averageFPS.Set(fps)
}

// ObserveColumnGenerated учитывает сгенерированный столбец
func (s *Scheduler) ObserveColumnGenerated(d time.Duration) {
	if s == nil {
		return
	}
	s.generated.Inc()
	s.columnGenTime.Observe(d.Seconds())
}

// ObserveMeshBuilt учитывает построенный меш
func (s *Scheduler) ObserveMeshBuilt(d time.Duration) {
	if s == nil {
		return
	}
	s.meshesBuilt.Inc()
	s.meshBuild.Observe(d.Seconds())
}

// IncFaults учитывает ошибку фоновой задачи
func (s *Scheduler) IncFaults() {
	if s == nil {
		return
	}
	s.faults.Inc()
}

// AddEvicted учитывает выгруженные чанки
func (s *Scheduler) AddEvicted(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.evicted.Add(float64(n))
}
