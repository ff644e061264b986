// Package mesh содержит буфер геометрии чанка, который передаётся
// внешнему бэкенду отрисовки и коллизий.
package mesh

import (
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
)

// Rect описывает прямоугольник текстуры в нормализованных UV координатах
type Rect struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
	W float32 `yaml:"w"`
	H float32 `yaml:"h"`
}

// Atlas отображает идентификатор текстуры в её прямоугольник на листе
type Atlas map[string]Rect

// Lookup возвращает прямоугольник текстуры. Пустой идентификатор даёт нулевой прямоугольник.
func (a Atlas) Lookup(texture string) (Rect, bool) {
	if texture == "" {
		return Rect{}, true
	}
	r, ok := a[texture]
	return r, ok
}

// quadCorners - вершины грани единичного куба [0,1]^3 для каждого направления.
// Порядок вершин согласован с разбиением (0,1,2), (1,3,2), так что все грани
// имеют одинаковый обход при взгляде снаружи.
var quadCorners = [vec.DirectionCount][4]mgl32.Vec3{
	vec.Forward: {{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1}},
	vec.Back:    {{1, 0, 0}, {0, 0, 0}, {1, 1, 0}, {0, 1, 0}},
	vec.Right:   {{1, 0, 1}, {1, 0, 0}, {1, 1, 1}, {1, 1, 0}},
	vec.Left:    {{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 1, 1}},
	vec.Up:      {{1, 1, 0}, {0, 1, 0}, {1, 1, 1}, {0, 1, 1}},
	vec.Down:    {{1, 0, 1}, {0, 0, 1}, {1, 0, 0}, {0, 0, 0}},
}

// Data - буфер геометрии: вершины, треугольники по сабмешам и UV
type Data struct {
	Vertices  []mgl32.Vec3
	Triangles [][]int32
	UV        []mgl32.Vec2
}

// NewData создаёт пустой буфер с указанным числом сабмешей
func NewData(subMeshCount int) *Data {
	d := &Data{}
	d.SetSubMeshCount(subMeshCount)
	return d
}

// SubMeshCount возвращает количество сабмешей
func (d *Data) SubMeshCount() int {
	return len(d.Triangles)
}

// SetSubMeshCount расширяет или обрезает список сабмешей
func (d *Data) SetSubMeshCount(n int) {
	if n < 1 {
		n = 1
	}
	for len(d.Triangles) < n {
		d.Triangles = append(d.Triangles, nil)
	}
	d.Triangles = d.Triangles[:n]
}

// AddVertex добавляет вершину
func (d *Data) AddVertex(v mgl32.Vec3) {
	d.Vertices = append(d.Vertices, v)
}

// AddTriangle добавляет индекс в сабмеш; индексы несуществующих сабмешей игнорируются
func (d *Data) AddTriangle(subMesh int, index int32) {
	if subMesh < 0 || subMesh >= len(d.Triangles) {
		return
	}
	d.Triangles[subMesh] = append(d.Triangles[subMesh], index)
}

// AddUV добавляет текстурную координату
func (d *Data) AddUV(uv mgl32.Vec2) {
	d.UV = append(d.UV, uv)
}

// AddQuad добавляет грань вокселя в позиции pos (локальные координаты чанка)
func (d *Data) AddQuad(pos vec.Vec3, subMesh int, dir vec.Direction, uv Rect) {
	if subMesh >= len(d.Triangles) {
		d.SetSubMeshCount(subMesh + 1)
	}
	if subMesh < 0 {
		subMesh = 0
	}

	origin := mgl32.Vec3{float32(pos.X), float32(pos.Y), float32(pos.Z)}
	for _, corner := range quadCorners[dir] {
		d.Vertices = append(d.Vertices, origin.Add(corner))
	}

	n := int32(len(d.Vertices))
	d.Triangles[subMesh] = append(d.Triangles[subMesh],
		n-4, n-3, n-2,
		n-3, n-1, n-2,
	)

	d.UV = append(d.UV,
		mgl32.Vec2{uv.X + uv.W, uv.Y},
		mgl32.Vec2{uv.X, uv.Y},
		mgl32.Vec2{uv.X + uv.W, uv.Y + uv.H},
		mgl32.Vec2{uv.X, uv.Y + uv.H},
	)
}

// AddCube добавляет все шесть граней без отсечения
func (d *Data) AddCube(pos vec.Vec3, subMesh int, uvs [vec.DirectionCount]Rect) {
	for _, dir := range vec.Directions {
		d.AddQuad(pos, subMesh, dir, uvs[dir])
	}
}

// QuadCount возвращает количество граней в буфере
func (d *Data) QuadCount() int {
	return len(d.Vertices) / 4
}

// TriangleCount возвращает количество треугольников по всем сабмешам
func (d *Data) TriangleCount() int {
	total := 0
	for _, tris := range d.Triangles {
		total += len(tris) / 3
	}
	return total
}

// IsEmpty сообщает, что в буфере нет геометрии
func (d *Data) IsEmpty() bool {
	return len(d.Vertices) == 0
}
