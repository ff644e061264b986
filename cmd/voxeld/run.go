package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/voxelcore/internal/engine"
	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/metrics"
	"github.com/annel0/voxelcore/internal/observability"
	"github.com/annel0/voxelcore/internal/render"
	"github.com/annel0/voxelcore/internal/streaming"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "запустить цикл кадров с движущимся наблюдателем",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "frames", Usage: "остановиться после N кадров (0 - до сигнала)"},
			&cli.Float64Flag{Name: "x", Usage: "начальная позиция наблюдателя по X"},
			&cli.Float64Flag{Name: "y", Value: 64, Usage: "начальная позиция наблюдателя по Y"},
			&cli.Float64Flag{Name: "z", Usage: "начальная позиция наблюдателя по Z"},
			&cli.Float64Flag{Name: "speed", Value: 8, Usage: "скорость наблюдателя вдоль X, блоков в секунду"},
			&cli.StringFlag{Name: "export-dir", Usage: "сохранять меши чанков в каталог (.obj.zst) вместо памяти"},
			&cli.Uint64Flag{Name: "stats-every", Value: 300, Usage: "логировать статистику каждые N кадров"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	s, err := loadSetup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Трассировка
	shutdownTelemetry, err := observability.InitTelemetry(ctx, s.cfg.Telemetry.GetServiceName(), s.cfg.Telemetry.Enabled)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("Ошибка остановки трассировки: %v", err)
		}
	}()

	// Ошибки фоновых задач
	fault, flush, err := initSentry(s.cfg.Sentry.GetDSN())
	if err != nil {
		return err
	}
	defer flush()

	// Шина событий
	bus := eventbus.NewMemoryBus(1024)
	defer bus.Close()
	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		return err
	}

	// Метрики
	reg := prometheus.NewRegistry()
	schedMetrics, err := metrics.NewScheduler(reg)
	if err != nil {
		return err
	}
	if addr := s.cfg.Metrics.GetAddr(); addr != "" {
		exporter, err := metrics.NewExporter(reg, reg, bus)
		if err != nil {
			return err
		}
		exporter.Start(addr)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = exporter.Stop(stopCtx)
		}()
		logging.Info("📊 Метрики Prometheus: http://%s/metrics", addr)
	}

	var backend render.Backend = render.NewMemory()
	if dir := c.String("export-dir"); dir != "" {
		obj, err := render.NewObjExporter(dir)
		if err != nil {
			return err
		}
		backend = obj
	}

	manager := s.newManager(ctx, managerDeps{
		backend: backend,
		bus:     bus,
		metrics: schedMetrics,
		tracer:  observability.Tracer(nil),
		fault:   fault,
	})

	sc := s.cfg.Streaming
	agent := streaming.NewAgent(manager, streaming.Options{
		LoadRadius:           sc.GetLoadRadius(),
		EvictionFactor:       sc.GetEvictionFactor(),
		WaitBetweenGenerates: sc.GetWaitBetweenGenerates(),
		WaitBetweenDeletes:   sc.GetWaitBetweenDeletes(),
	})
	observer := &engine.LinearObserver{
		Position: mgl32.Vec3{float32(c.Float64("x")), float32(c.Float64("y")), float32(c.Float64("z"))},
		Velocity: mgl32.Vec3{float32(c.Float64("speed")), 0, 0},
	}

	e := engine.New(manager, agent, observer, c.Uint64("stats-every"))
	defer e.Close()

	interval := time.Duration(float64(time.Second) / s.cfg.Scheduler.GetTargetFPS())
	logging.Info("🚀 Старт: радиус подгрузки %d, кадр %v", sc.GetLoadRadius(), interval)

	err = e.Run(ctx, interval, c.Uint64("frames"))
	st := manager.Stats()
	logging.Info("✅ Завершено: кадров %d, чанков %d, средний FPS %.1f", e.Frames(), st.Chunks, st.AverageFPS)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
