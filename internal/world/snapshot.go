package world

import (
	"fmt"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/mesh"
)

// MeshOptions - параметры построения меша
type MeshOptions struct {
	Atlas        mesh.Atlas
	SubMeshCount int
	// DrawUnloadedFaces - рисовать грани на границе с незагруженным соседом
	DrawUnloadedFaces bool
}

// Snapshot - неизменяемая копия сетки чанка с рамкой в одну ячейку из соседей.
// Снимок снимается в потоке кадра и может обрабатываться в фоне.
type Snapshot struct {
	origin vec.Vec3
	size   vec.Vec3
	padded vec.Vec3
	cells  []*block.Block
	loaded []bool
	draw   bool
}

// Snapshot копирует сетку чанка и граничные ячейки соседей
func (c *Chunk) Snapshot(drawUnloadedFaces bool) (*Snapshot, error) {
	if c.blocks == nil || !c.state.HasGrid() {
		return nil, fmt.Errorf("%w: %v", ErrGridUninitialized, c)
	}

	padded := c.size.Add(vec.Vec3{X: 2, Y: 2, Z: 2})
	s := &Snapshot{
		origin: c.origin,
		size:   c.size,
		padded: padded,
		cells:  make([]*block.Block, padded.Volume()),
		loaded: make([]bool, padded.Volume()),
		draw:   drawUnloadedFaces,
	}

	// Кэш соседей по началу, чтобы не ходить в индекс на каждую ячейку
	neighbors := make(map[vec.Vec3]*Chunk)
	for x := -1; x <= c.size.X; x++ {
		for z := -1; z <= c.size.Z; z++ {
			for y := -1; y <= c.size.Y; y++ {
				local := vec.Vec3{X: x, Y: y, Z: z}
				i := s.cellIndex(local)

				if c.Contains(local) {
					s.cells[i] = c.blocks[c.cellIndex(local)]
					s.loaded[i] = true
					continue
				}
				if c.index == nil {
					continue
				}

				world := local.Add(c.origin)
				origin := c.index.ToChunkOrigin(world)
				n, cached := neighbors[origin]
				if !cached {
					n = c.index.Get(origin)
					neighbors[origin] = n
				}
				if n == nil || n.blocks == nil || !n.state.HasGrid() {
					continue
				}
				s.cells[i] = n.blockAtLocal(world.Sub(origin))
				s.loaded[i] = true
			}
		}
	}
	return s, nil
}

func (s *Snapshot) cellIndex(local vec.Vec3) int {
	return ((local.X+1)*s.padded.Z+(local.Z+1))*s.padded.Y + (local.Y + 1)
}

// Origin возвращает начало чанка снимка
func (s *Snapshot) Origin() vec.Vec3 { return s.origin }

// BlockAt возвращает блок по локальной позиции, включая рамку.
// loaded == false для ячеек незагруженных соседей и вне рамки.
func (s *Snapshot) BlockAt(local vec.Vec3) (*block.Block, bool) {
	if local.X < -1 || local.X > s.size.X ||
		local.Y < -1 || local.Y > s.size.Y ||
		local.Z < -1 || local.Z > s.size.Z {
		return nil, false
	}
	i := s.cellIndex(local)
	return s.cells[i], s.loaded[i]
}

// DrawUnloadedFaces возвращает политику для незагруженных соседей
func (s *Snapshot) DrawUnloadedFaces() bool {
	return s.draw
}

// BuildMesh строит меш с отсечением граней. Не меняет состояние чанка.
func (s *Snapshot) BuildMesh(atlas mesh.Atlas, subMeshCount int) *mesh.Data {
	data := mesh.NewData(subMeshCount)
	for x := 0; x < s.size.X; x++ {
		for z := 0; z < s.size.Z; z++ {
			for y := 0; y < s.size.Y; y++ {
				pos := vec.Vec3{X: x, Y: y, Z: z}
				b := s.cells[s.cellIndex(pos)]
				if b == nil || b.Definition == nil {
					continue
				}
				b.Definition.AddMeshData(pos, data, s, atlas, b)
			}
		}
	}
	return data
}

// BuildMesh снимает снимок и строит меш в текущем потоке
func (c *Chunk) BuildMesh(opts MeshOptions) (*mesh.Data, error) {
	s, err := c.Snapshot(opts.DrawUnloadedFaces)
	if err != nil {
		return nil, err
	}
	return s.BuildMesh(opts.Atlas, opts.SubMeshCount), nil
}
