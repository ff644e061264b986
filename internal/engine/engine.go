// Package engine связывает наблюдателя, агент подгрузки и менеджер чанков
// в однопоточный цикл кадров.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/scheduler"
	"github.com/annel0/voxelcore/internal/streaming"
)

// Engine выполняет кадры: менеджер чанков, затем агент подгрузки.
// Все методы вызываются из одной горутины.
type Engine struct {
	manager  *scheduler.Manager
	agent    *streaming.Agent
	observer Observer
	logger   *logging.Logger

	frames        uint64
	statsInterval uint64
	lastFrame     time.Time
}

// New создаёт движок. statsInterval - как часто (в кадрах) логировать статистику; 0 отключает.
func New(manager *scheduler.Manager, agent *streaming.Agent, observer Observer, statsInterval uint64) *Engine {
	return &Engine{
		manager:       manager,
		agent:         agent,
		observer:      observer,
		logger:        logging.GetEngineLogger(),
		statsInterval: statsInterval,
	}
}

// Manager возвращает менеджер чанков
func (e *Engine) Manager() *scheduler.Manager { return e.manager }

// Frames возвращает количество выполненных кадров
func (e *Engine) Frames() uint64 { return e.frames }

// Frame выполняет один кадр длительностью dt
func (e *Engine) Frame(ctx context.Context, dt time.Duration) error {
	e.frames++
	pos := e.observer.Observe(dt)

	var errs []error
	if err := e.manager.Tick(ctx, dt); err != nil {
		errs = append(errs, err)
	}
	if err := e.agent.Tick(pos); err != nil {
		errs = append(errs, err)
	}

	if e.statsInterval > 0 && e.frames%e.statsInterval == 0 {
		s := e.manager.Stats()
		e.logger.Info("Кадр %d: позиция %v, FPS %.1f, чанков %d, очередь загрузки %d, перестройки %d, задач %d",
			e.frames, pos, s.AverageFPS, s.Chunks, s.LoadQueue, s.RebuildQueue, s.JobsInFlight)
	}
	return errors.Join(errs...)
}

// Run крутит кадры с интервалом interval, пока не отменён ctx
// или не выполнено maxFrames кадров (0 - без ограничения).
// Ошибки кадров логируются и не прерывают цикл.
func (e *Engine) Run(ctx context.Context, interval time.Duration, maxFrames uint64) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.lastFrame = time.Now()
	e.logger.Info("Цикл кадров запущен (интервал %v)", interval)

	for maxFrames == 0 || e.frames < maxFrames {
		select {
		case <-ctx.Done():
			e.logger.Info("Цикл кадров остановлен после %d кадров", e.frames)
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(e.lastFrame)
			e.lastFrame = now
			if err := e.Frame(ctx, dt); err != nil {
				e.logger.Error("Ошибка кадра %d: %v", e.frames, err)
			}
		}
	}

	e.logger.Info("Выполнено %d кадров", e.frames)
	return nil
}

// Close останавливает фоновые задачи менеджера
func (e *Engine) Close() {
	e.manager.Close()
}
