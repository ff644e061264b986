package main

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/render"
	"github.com/annel0/voxelcore/internal/scheduler"
	"github.com/annel0/voxelcore/internal/streaming"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/urfave/cli/v2"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "сгенерировать область и сохранить меши чанков в .obj.zst",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "meshes", Usage: "каталог для мешей"},
			&cli.IntFlag{Name: "radius", Aliases: []string{"r"}, Value: 2, Usage: "радиус области в столбцах чанков"},
			&cli.IntFlag{Name: "x", Usage: "центр области по X (в блоках)"},
			&cli.IntFlag{Name: "z", Usage: "центр области по Z (в блоках)"},
			&cli.DurationFlag{Name: "timeout", Value: 2 * time.Minute, Usage: "предельное время генерации"},
		},
		Action: export,
	}
}

func export(c *cli.Context) error {
	s, err := loadSetup(c)
	if err != nil {
		return err
	}

	obj, err := render.NewObjExporter(c.String("out"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	manager := s.newManager(ctx, managerDeps{backend: obj})
	defer manager.Close()

	center := manager.ToColumn(vec.Vec3{X: c.Int("x"), Z: c.Int("z")})
	size := s.world.ChunkSize
	for _, offset := range streaming.LoadOrder(c.Int("radius")) {
		manager.LoadColumn(vec.Vec2{X: center.X + offset.X*size.X, Z: center.Z + offset.Z*size.Z})
	}
	logging.Info("📦 Экспорт %d столбцов вокруг %v в %s", manager.Stats().LoadQueue, center, c.String("out"))

	start := time.Now()
	last := start
	for !idle(manager.Stats()) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("экспорт не завершён: %w", ctx.Err())
		default:
		}

		now := time.Now()
		if err := manager.Tick(ctx, now.Sub(last)); err != nil {
			return err
		}
		last = now
		if manager.Stats().JobsInFlight > 0 {
			time.Sleep(time.Millisecond)
		}
	}

	logging.Info("✅ Экспортировано чанков: %d за %v", manager.Stats().Chunks, time.Since(start).Round(time.Millisecond))
	return nil
}

// idle - очереди пусты и фоновых задач нет
func idle(s scheduler.Stats) bool {
	return s.LoadQueue == 0 && s.PendingJobs == 0 && s.RebuildQueue == 0 && s.JobsInFlight == 0 && !s.Generating
}
