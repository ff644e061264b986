// Package physics - запросы к сетке блоков: луч и коллизии коллайдеров.
package physics

import (
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Hit - результат пересечения луча с блоком
type Hit struct {
	Cell     vec.Vec3 // Ячейка блока, в который попал луч
	Normal   vec.Vec3 // Нормаль грани попадания; нулевая, если луч начался внутри блока
	Distance float32
}

// Adjacent возвращает ячейку перед гранью попадания (туда ставится новый блок)
func (h Hit) Adjacent() vec.Vec3 {
	return h.Cell.Add(h.Normal)
}

// Raycast проходит по ячейкам вдоль луча (алгоритм Amanatides-Woo)
// и возвращает первый непустой блок не дальше maxDistance.
func Raycast(src BlockSource, origin, dir mgl32.Vec3, maxDistance float32) (Hit, bool) {
	if dir.Len() == 0 || maxDistance <= 0 {
		return Hit{}, false
	}
	dir = dir.Normalize()

	cell := floorCell(origin)
	var step [3]int
	var tMax, tDelta [3]float32
	for i := 0; i < 3; i++ {
		pos := float32(component(cell, i))
		switch {
		case dir[i] > 0:
			step[i] = 1
			tMax[i] = (pos + 1 - origin[i]) / dir[i]
			tDelta[i] = 1 / dir[i]
		case dir[i] < 0:
			step[i] = -1
			tMax[i] = (origin[i] - pos) / -dir[i]
			tDelta[i] = -1 / dir[i]
		default:
			tMax[i] = math32.Inf(1)
			tDelta[i] = math32.Inf(1)
		}
	}

	var normal vec.Vec3
	var distance float32
	for distance <= maxDistance {
		if b := src.BlockAt(cell); b != nil && b.Definition != nil {
			return Hit{Cell: cell, Normal: normal, Distance: distance}, true
		}

		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}

		distance = tMax[axis]
		tMax[axis] += tDelta[axis]
		normal = vec.Vec3{}
		switch axis {
		case 0:
			cell.X += step[0]
			normal.X = -step[0]
		case 1:
			cell.Y += step[1]
			normal.Y = -step[1]
		case 2:
			cell.Z += step[2]
			normal.Z = -step[2]
		}
	}
	return Hit{}, false
}

func component(v vec.Vec3, i int) int {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}
