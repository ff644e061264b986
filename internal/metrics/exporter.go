package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter управляет HTTP-эндпоинтом Prometheus и периодически переносит
// статистику шины событий в Counter/Gauge.
type Exporter struct {
	bus      eventbus.EventBus
	gatherer prometheus.Gatherer
	interval time.Duration
	server   *http.Server
	quit     chan struct{}
	done     chan struct{}

	published prometheus.Counter
	consumed  prometheus.Counter
	dropped   prometheus.Counter
	inflight  prometheus.Gauge
}

// NewExporter создаёт экспортер и регистрирует метрики шины, но не запускает HTTP-сервер.
func NewExporter(reg prometheus.Registerer, gatherer prometheus.Gatherer, bus eventbus.EventBus) (*Exporter, error) {
	e := &Exporter{
		bus:      bus,
		gatherer: gatherer,
		interval: time.Second,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_published_total",
			Help:      "Общее число опубликованных сообщений.",
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_consumed_total",
			Help:      "Общее число доставленных сообщений подписчикам.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_dropped_total",
			Help:      "Сообщений, отброшенных из-за ограничения back-pressure.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventbus",
			Name:      "messages_inflight",
			Help:      "Количество сообщений в очереди (не доставленных).",
		}),
	}

	for _, c := range []prometheus.Collector{e.published, e.consumed, e.dropped, e.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Handler возвращает HTTP-обработчик /metrics
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{})
}

// Start запускает HTTP-эндпоинт на addr (например, ":2112") и цикл обновления.
// Метод неблокирующий. Пустой addr запускает только цикл обновления.
func (e *Exporter) Start(addr string) {
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", e.Handler())
		e.server = &http.Server{Addr: addr, Handler: mux}

		go func() {
			logging.Info("Prometheus /metrics доступен по адресу %s", addr)
			if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
			}
		}()
	}
	go e.loop()
}

// Stop останавливает цикл обновления и HTTP-сервер.
func (e *Exporter) Stop(ctx context.Context) error {
	close(e.quit)
	<-e.done
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

func (e *Exporter) loop() {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	defer close(e.done)

	// Для Counter храним прошлое значение и прибавляем дельту
	var prev eventbus.Stats

	for {
		select {
		case <-ticker.C:
			prev = e.apply(prev)
		case <-e.quit:
			e.apply(prev)
			return
		}
	}
}

// apply переносит приращения статистики шины в метрики
func (e *Exporter) apply(prev eventbus.Stats) eventbus.Stats {
	if e.bus == nil {
		return prev
	}
	stats := e.bus.Metrics()

	if stats.Published > prev.Published {
		e.published.Add(float64(stats.Published - prev.Published))
	}
	if stats.Consumed > prev.Consumed {
		e.consumed.Add(float64(stats.Consumed - prev.Consumed))
	}
	if stats.Dropped > prev.Dropped {
		e.dropped.Add(float64(stats.Dropped - prev.Dropped))
	}
	e.inflight.Set(float64(stats.InFlight))

	return stats
}
