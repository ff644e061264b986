package terrain

import (
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
)

// BlockSetter принимает блоки, которые ставит генератор (мировые координаты)
type BlockSetter interface {
	SetBlock(pos vec.Vec3, b *block.Block)
}

// ColumnBuffer - независимый результат генерации одного столбца чанков.
// Фоновая задача заполняет буфер, а планировщик переносит его в чанки
// в основном потоке.
type ColumnBuffer struct {
	Origin    vec.Vec2 // Мировые координаты угла столбца
	Size      vec.Vec3 // Размер чанка
	MinHeight int
	MaxHeight int
	Heights   []int // Итоговая высота для каждого столбца блоков, индекс x*Size.Z + z

	blocks []*block.Block
}

// NewColumnBuffer создаёт пустой буфер столбца
func NewColumnBuffer(origin vec.Vec2, size vec.Vec3, minHeight, maxHeight int) *ColumnBuffer {
	height := maxHeight - minHeight
	if height < 0 {
		height = 0
	}
	return &ColumnBuffer{
		Origin:    origin,
		Size:      size,
		MinHeight: minHeight,
		MaxHeight: maxHeight,
		Heights:   make([]int, size.X*size.Z),
		blocks:    make([]*block.Block, size.X*size.Z*height),
	}
}

func (c *ColumnBuffer) index(pos vec.Vec3) (int, bool) {
	x := pos.X - c.Origin.X
	z := pos.Z - c.Origin.Z
	y := pos.Y - c.MinHeight
	if x < 0 || x >= c.Size.X || z < 0 || z >= c.Size.Z || y < 0 || pos.Y >= c.MaxHeight {
		return 0, false
	}
	height := c.MaxHeight - c.MinHeight
	return (x*c.Size.Z+z)*height + y, true
}

// SetBlock записывает блок; позиции вне столбца отбрасываются
func (c *ColumnBuffer) SetBlock(pos vec.Vec3, b *block.Block) {
	if i, ok := c.index(pos); ok {
		c.blocks[i] = b
	}
}

// BlockAt возвращает блок по мировой позиции или nil
func (c *ColumnBuffer) BlockAt(pos vec.Vec3) *block.Block {
	if i, ok := c.index(pos); ok {
		return c.blocks[i]
	}
	return nil
}

// HeightAt возвращает итоговую высоту столбца блоков (мировые x, z)
func (c *ColumnBuffer) HeightAt(x, z int) int {
	lx, lz := x-c.Origin.X, z-c.Origin.Z
	if lx < 0 || lx >= c.Size.X || lz < 0 || lz >= c.Size.Z {
		return c.MinHeight
	}
	return c.Heights[lx*c.Size.Z+lz]
}

// Count возвращает количество непустых ячеек
func (c *ColumnBuffer) Count() int {
	n := 0
	for _, b := range c.blocks {
		if b != nil {
			n++
		}
	}
	return n
}
