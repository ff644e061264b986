// Package block описывает типы вокселей: общие неизменяемые определения
// и лёгкие экземпляры блоков, которые хранятся в чанках.
package block

import (
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/mesh"
)

// Definition определяет возможности типа блока.
// Новые формы блоков добавляются новой реализацией интерфейса.
type Definition interface {
	// Identifier возвращает уникальный строковый идентификатор типа.
	Identifier() string

	// Textures возвращает текстуры, которые использует тип (для проверки атласа).
	Textures() []string

	// IsSolid сообщает, непрозрачна ли грань dir.
	IsSolid(dir vec.Direction) bool

	// AddMeshData добавляет геометрию экземпляра b, стоящего в локальной позиции pos.
	AddMeshData(pos vec.Vec3, data *mesh.Data, n Neighborhood, atlas mesh.Atlas, b *Block)
}

// Neighborhood даёт определению блока доступ к соседним ячейкам при построении меша.
type Neighborhood interface {
	// BlockAt возвращает блок по локальной позиции (может выходить за границы чанка).
	// loaded == false означает, что соседний чанк не загружен.
	BlockAt(local vec.Vec3) (b *Block, loaded bool)

	// DrawUnloadedFaces определяет политику для граней на границе с незагруженным чанком.
	DrawUnloadedFaces() bool
}

// FaceVisible решает, рисовать ли грань dir блока в позиции pos:
// грань видна, если соседняя ячейка пуста или её противоположная грань не сплошная.
func FaceVisible(n Neighborhood, pos vec.Vec3, dir vec.Direction) bool {
	adjacent, loaded := n.BlockAt(pos.Add(dir.Offset()))
	if !loaded {
		return n.DrawUnloadedFaces()
	}
	if adjacent == nil || adjacent.Definition == nil {
		return true
	}
	return !adjacent.Definition.IsSolid(dir.Opposite())
}
