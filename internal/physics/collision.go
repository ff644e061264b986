package physics

import (
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// BlockSource - источник блоков по мировой позиции
type BlockSource interface {
	BlockAt(pos vec.Vec3) *block.Block
}

// Box - выровненный по осям параллелепипед [Min, Max)
type Box struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewBox создаёт коллайдер размером size, стоящий нижним центром в feet
func NewBox(feet, size mgl32.Vec3) Box {
	half := mgl32.Vec3{size.X() / 2, 0, size.Z() / 2}
	return Box{
		Min: feet.Sub(half),
		Max: feet.Add(mgl32.Vec3{half.X(), size.Y(), half.Z()}),
	}
}

// CellBox возвращает коллайдер ячейки сетки
func CellBox(cell vec.Vec3) Box {
	lo := mgl32.Vec3{float32(cell.X), float32(cell.Y), float32(cell.Z)}
	return Box{Min: lo, Max: lo.Add(mgl32.Vec3{1, 1, 1})}
}

// Translate сдвигает коллайдер
func (b Box) Translate(delta mgl32.Vec3) Box {
	return Box{Min: b.Min.Add(delta), Max: b.Max.Add(delta)}
}

// Overlaps проверяет пересечение двух коллайдеров (касание не считается)
func (b Box) Overlaps(other Box) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] <= other.Min[i] || b.Min[i] >= other.Max[i] {
			return false
		}
	}
	return true
}

// Cells возвращает ячейки сетки, которые пересекает коллайдер
func (b Box) Cells() []vec.Vec3 {
	lo := floorCell(b.Min)
	hi := vec.Vec3{
		X: int(math32.Ceil(b.Max.X())) - 1,
		Y: int(math32.Ceil(b.Max.Y())) - 1,
		Z: int(math32.Ceil(b.Max.Z())) - 1,
	}

	var cells []vec.Vec3
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				cells = append(cells, vec.Vec3{X: x, Y: y, Z: z})
			}
		}
	}
	return cells
}

// IsSolidBlock сообщает, мешает ли блок движению: хотя бы одна грань непрозрачна
func IsSolidBlock(b *block.Block) bool {
	if b == nil || b.Definition == nil {
		return false
	}
	for _, dir := range vec.Directions {
		if b.Definition.IsSolid(dir) {
			return true
		}
	}
	return false
}

// Collides проверяет, пересекает ли коллайдер твёрдый блок
func Collides(src BlockSource, box Box) bool {
	for _, cell := range box.Cells() {
		if IsSolidBlock(src.BlockAt(cell)) {
			return true
		}
	}
	return false
}

// CanMoveTo проверяет, может ли коллайдер сместиться на delta, не войдя в твёрдый блок
func CanMoveTo(src BlockSource, box Box, delta mgl32.Vec3) bool {
	return !Collides(src, box.Translate(delta))
}

func floorCell(p mgl32.Vec3) vec.Vec3 {
	return vec.Vec3{
		X: int(math32.Floor(p.X())),
		Y: int(math32.Floor(p.Y())),
		Z: int(math32.Floor(p.Z())),
	}
}
