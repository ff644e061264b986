package engine

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Observer - источник позиции наблюдателя (камера, игрок)
type Observer interface {
	// Observe возвращает позицию наблюдателя в кадре длительностью dt
	Observe(dt time.Duration) mgl32.Vec3
}

// StaticObserver стоит на месте
type StaticObserver mgl32.Vec3

func (s StaticObserver) Observe(time.Duration) mgl32.Vec3 {
	return mgl32.Vec3(s)
}

// LinearObserver движется с постоянной скоростью (блоков в секунду)
type LinearObserver struct {
	Position mgl32.Vec3
	Velocity mgl32.Vec3
}

func (l *LinearObserver) Observe(dt time.Duration) mgl32.Vec3 {
	l.Position = l.Position.Add(l.Velocity.Mul(float32(dt.Seconds())))
	return l.Position
}
