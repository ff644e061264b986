package main

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/voxelcore/internal/config"
	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/metrics"
	"github.com/annel0/voxelcore/internal/render"
	"github.com/annel0/voxelcore/internal/scheduler"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/definition"
	"github.com/annel0/voxelcore/internal/world/terrain"
	"github.com/getsentry/sentry-go"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/trace"
)

// setup - общие для команд конфигурация и описание мира
type setup struct {
	cfg   *config.Config
	world *definition.World
	seed  int64
}

func loadSetup(c *cli.Context) (*setup, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if path := c.String("world"); path != "" {
		cfg.World.Path = path
	}
	seed := cfg.World.Seed
	if c.IsSet("seed") {
		seed = c.Int64("seed")
	}

	def, err := definition.Load(cfg.World.GetWorldPath())
	if err != nil {
		return nil, err
	}
	logging.Info("🌍 Мир %q: высоты [%d, %d), чанк %v, биомов %d, зерно %d",
		def.Name, def.MinHeight, def.MaxHeight, def.ChunkSize, len(def.Biomes), seed)

	return &setup{cfg: cfg, world: def, seed: seed}, nil
}

// managerDeps - необязательные зависимости менеджера
type managerDeps struct {
	backend render.Backend
	bus     eventbus.EventBus
	metrics *metrics.Scheduler
	tracer  trace.Tracer
	fault   scheduler.FaultHandler
}

func (s *setup) newManager(ctx context.Context, deps managerDeps) *scheduler.Manager {
	sc := s.cfg.Scheduler
	opts := scheduler.Options{
		TargetFPS:                   sc.GetTargetFPS(),
		MaxThreads:                  sc.GetMaxThreads(),
		AsyncMeshing:                sc.AsyncMeshing,
		PauseMeshingWhileGenerating: sc.GetPauseMeshingWhileGenerating(),
		DrawUnloadedFaces:           sc.GetDrawUnloadedFaces(),
		Backend:                     deps.backend,
		Bus:                         deps.bus,
		Metrics:                     deps.metrics,
		Tracer:                      deps.tracer,
		FaultHandler:                deps.fault,
	}
	logging.Info("⚙️ Планировщик: %.0f FPS, потоков %d, асинхронные меши %v",
		opts.TargetFPS, opts.MaxThreads, opts.AsyncMeshing)

	return scheduler.NewManager(ctx, s.world, terrain.NewGenerator(s.world, s.seed), opts)
}

// initSentry включает отправку ошибок фоновых задач, если задан DSN.
// Возвращает обработчик ошибок (nil без DSN) и функцию сброса буфера.
func initSentry(dsn string) (scheduler.FaultHandler, func(), error) {
	if dsn == "" {
		return nil, func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
		return nil, nil, fmt.Errorf("ошибка инициализации Sentry: %w", err)
	}
	logging.Info("Sentry: отправка ошибок фоновых задач включена")

	handler := func(origin vec.Vec3, err error) {
		hub := sentry.CurrentHub().Clone()
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("chunk", origin.String())
		})
		hub.CaptureException(err)
	}
	flush := func() { sentry.Flush(5 * time.Second) }
	return handler, flush, nil
}
