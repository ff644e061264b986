package engine

import (
	"github.com/annel0/voxelcore/internal/physics"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/go-gl/mathgl/mgl32"
)

// Reach - дальность луча выбора блока
const Reach float32 = 100

// Target возвращает блок, на который смотрит луч из origin в направлении dir
func (e *Engine) Target(origin, dir mgl32.Vec3) (physics.Hit, bool) {
	return physics.Raycast(e.manager, origin, dir, Reach)
}

// DestroyBlock убирает блок под лучом; меши перестраиваются сразу
func (e *Engine) DestroyBlock(origin, dir mgl32.Vec3) (vec.Vec3, bool, error) {
	hit, ok := e.Target(origin, dir)
	if !ok {
		return vec.Vec3{}, false, nil
	}
	if _, err := e.manager.SetBlockAt(hit.Cell, nil, true); err != nil {
		return hit.Cell, false, err
	}
	return hit.Cell, true, nil
}

// PlaceBlock ставит блок перед гранью под лучом.
// Блок не ставится в ячейку, которую занимает body.
func (e *Engine) PlaceBlock(origin, dir mgl32.Vec3, def block.Definition, body physics.Box) (vec.Vec3, bool, error) {
	hit, ok := e.Target(origin, dir)
	if !ok || hit.Normal == (vec.Vec3{}) {
		return vec.Vec3{}, false, nil
	}

	cell := hit.Adjacent()
	if body.Overlaps(physics.CellBox(cell)) {
		return cell, false, nil
	}
	if e.manager.Index().ChunkAt(cell) == nil {
		return cell, false, nil
	}
	if _, err := e.manager.SetBlockAt(cell, block.New(def), true); err != nil {
		return cell, false, err
	}
	return cell, true, nil
}
