// Package world хранит чанки мира: индекс, сетку блоков, состояния
// и построение меша с отсечением граней.
package world

import (
	"fmt"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
)

// Chunk - участок мира фиксированного размера.
// Сетка блоков меняется только из потока кадра; фоновые задачи работают
// с независимыми буферами и снимками.
type Chunk struct {
	origin vec.Vec3
	size   vec.Vec3
	blocks []*block.Block // nil-блок - воздух, индекс (x*size.Z + z)*size.Y + y
	index  *Index         // Соседей ищем через индекс, не храним ссылки

	state        State
	needsRebuild bool
	busy         bool // Задача построения меша в работе
}

// NewChunk создаёт пустой чанк
func NewChunk(origin, size vec.Vec3, index *Index) *Chunk {
	return &Chunk{
		origin: origin,
		size:   size,
		blocks: make([]*block.Block, size.Volume()),
		index:  index,
		state:  Unloaded,
	}
}

// Origin возвращает начало чанка в мировых координатах
func (c *Chunk) Origin() vec.Vec3 { return c.origin }

// Size возвращает размер чанка
func (c *Chunk) Size() vec.Vec3 { return c.size }

// Column возвращает координаты столбца чанка
func (c *Chunk) Column() vec.Vec2 { return c.origin.Column() }

// State возвращает текущее состояние
func (c *Chunk) State() State { return c.state }

// Transition переводит чанк в новое состояние
func (c *Chunk) Transition(to State) error {
	if !c.state.CanTransition(to) {
		return fmt.Errorf("%w: %v -> %v в чанке %v", ErrInvalidTransition, c.state, to, c.origin)
	}
	c.state = to
	return nil
}

// NeedsRebuild сообщает, устарел ли меш чанка
func (c *Chunk) NeedsRebuild() bool { return c.needsRebuild }

// SetNeedsRebuild помечает (или снимает пометку) необходимость перестройки меша
func (c *Chunk) SetNeedsRebuild(v bool) { c.needsRebuild = v }

// Busy сообщает, выполняется ли для чанка фоновое построение меша
func (c *Chunk) Busy() bool { return c.busy }

// SetBusy выставляет флаг фоновой задачи
func (c *Chunk) SetBusy(v bool) { c.busy = v }

// Contains проверяет, лежит ли локальная позиция внутри чанка
func (c *Chunk) Contains(local vec.Vec3) bool {
	return local.X >= 0 && local.X < c.size.X &&
		local.Y >= 0 && local.Y < c.size.Y &&
		local.Z >= 0 && local.Z < c.size.Z
}

func (c *Chunk) cellIndex(local vec.Vec3) int {
	return (local.X*c.size.Z+local.Z)*c.size.Y + local.Y
}

func (c *Chunk) blockAtLocal(local vec.Vec3) *block.Block {
	if c.blocks == nil || !c.Contains(local) {
		return nil
	}
	return c.blocks[c.cellIndex(local)]
}

// resolve переводит позицию в пару (локальная, мировая)
func (c *Chunk) resolve(pos vec.Vec3, worldPos bool) (local, world vec.Vec3) {
	if worldPos {
		return pos.Sub(c.origin), pos
	}
	return pos, pos.Add(c.origin)
}

// BlockAt возвращает блок по локальной (worldPos=false) или мировой позиции.
// Позиции вне чанка разрешаются через индекс.
func (c *Chunk) BlockAt(pos vec.Vec3, worldPos bool) *block.Block {
	local, world := c.resolve(pos, worldPos)
	if c.Contains(local) {
		return c.blockAtLocal(local)
	}
	if c.index == nil {
		return nil
	}
	return c.index.BlockAt(world)
}

// SetBlockAt ставит блок и возвращает прежний вместе со списком чанков,
// помеченных для перестройки: сам чанк и соседи через грани, на которых лежит ячейка.
// Позиции вне чанка перенаправляются через индекс.
func (c *Chunk) SetBlockAt(pos vec.Vec3, b *block.Block, worldPos bool) (*block.Block, []*Chunk) {
	local, world := c.resolve(pos, worldPos)
	if !c.Contains(local) {
		if c.index == nil {
			return nil, nil
		}
		return c.index.SetBlockAt(world, b)
	}
	if c.blocks == nil {
		c.blocks = make([]*block.Block, c.size.Volume())
	}

	i := c.cellIndex(local)
	prev := c.blocks[i]
	c.blocks[i] = b

	c.needsRebuild = true
	marked := []*Chunk{c}
	if c.index == nil {
		return prev, marked
	}

	for _, dir := range c.boundaryDirections(local) {
		if n := c.index.Neighbor(c.origin, dir); n != nil {
			n.needsRebuild = true
			marked = append(marked, n)
		}
	}
	return prev, marked
}

// boundaryDirections возвращает направления граней чанка, на которых лежит ячейка
func (c *Chunk) boundaryDirections(local vec.Vec3) []vec.Direction {
	var dirs []vec.Direction
	if local.X == 0 {
		dirs = append(dirs, vec.Left)
	}
	if local.X == c.size.X-1 {
		dirs = append(dirs, vec.Right)
	}
	if local.Y == 0 {
		dirs = append(dirs, vec.Down)
	}
	if local.Y == c.size.Y-1 {
		dirs = append(dirs, vec.Up)
	}
	if local.Z == 0 {
		dirs = append(dirs, vec.Back)
	}
	if local.Z == c.size.Z-1 {
		dirs = append(dirs, vec.Forward)
	}
	return dirs
}

// Fill заполняет сетку из источника, адресуемого мировыми координатами.
// Используется для переноса результата фоновой генерации.
func (c *Chunk) Fill(source func(pos vec.Vec3) *block.Block) {
	if c.blocks == nil {
		c.blocks = make([]*block.Block, c.size.Volume())
	}
	for x := 0; x < c.size.X; x++ {
		for z := 0; z < c.size.Z; z++ {
			for y := 0; y < c.size.Y; y++ {
				local := vec.Vec3{X: x, Y: y, Z: z}
				c.blocks[c.cellIndex(local)] = source(local.Add(c.origin))
			}
		}
	}
}

// Count возвращает количество непустых ячеек
func (c *Chunk) Count() int {
	n := 0
	for _, b := range c.blocks {
		if b != nil {
			n++
		}
	}
	return n
}

func (c *Chunk) String() string {
	return fmt.Sprintf("Chunk%v[%v]", c.origin, c.state)
}
