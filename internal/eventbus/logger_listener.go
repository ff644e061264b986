package eventbus

import (
	"context"

	"github.com/annel0/voxelcore/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог.
// Функция неблокирующая.
func StartLoggingListener(bus EventBus) (Subscription, error) {
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		if ev.EventType == ChunkFailed {
			logging.Warn("[EventBus] %s %s src=%s chunk=%v err=%s", ev.ID, ev.EventType, ev.Source, ev.Chunk.Origin, ev.Chunk.Error)
			return
		}
		logging.Debug("[EventBus] %s %s src=%s chunk=%v state=%s quads=%d",
			ev.ID, ev.EventType, ev.Source, ev.Chunk.Origin, ev.Chunk.State, ev.Chunk.Quads)
	})
	if err != nil {
		return nil, err
	}
	logging.Info("LoggingListener: подписка на все события активирована")
	return sub, nil
}
