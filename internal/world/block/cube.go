package block

import (
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/mesh"
)

// Face описывает одну грань куба
type Face struct {
	Solid   bool   `yaml:"solid"`
	Texture string `yaml:"texture"`
	SubMesh int    `yaml:"submesh"`
}

// Cube - блок в форме полного куба с независимыми гранями
type Cube struct {
	ID        string
	EmptyMesh bool // Блок участвует в отсечении, но не даёт геометрии
	Faces     [vec.DirectionCount]Face
}

// NewCube создаёт куб с одинаковыми гранями
func NewCube(id string, face Face) *Cube {
	c := &Cube{ID: id}
	for i := range c.Faces {
		c.Faces[i] = face
	}
	return c
}

// Identifier возвращает идентификатор типа
func (c *Cube) Identifier() string {
	return c.ID
}

// Textures возвращает текстуры граней в порядке направлений
func (c *Cube) Textures() []string {
	textures := make([]string, 0, len(c.Faces))
	for _, f := range c.Faces {
		textures = append(textures, f.Texture)
	}
	return textures
}

// IsSolid сообщает, непрозрачна ли грань
func (c *Cube) IsSolid(dir vec.Direction) bool {
	if dir >= vec.DirectionCount {
		return false
	}
	return c.Faces[dir].Solid
}

// MaxSubMesh возвращает наибольший индекс сабмеша среди граней
func (c *Cube) MaxSubMesh() int {
	max := 0
	for _, f := range c.Faces {
		if f.SubMesh > max {
			max = f.SubMesh
		}
	}
	return max
}

// AddMeshData добавляет видимые грани куба
func (c *Cube) AddMeshData(pos vec.Vec3, data *mesh.Data, n Neighborhood, atlas mesh.Atlas, b *Block) {
	if c.EmptyMesh {
		return
	}

	for _, dir := range vec.Directions {
		if !FaceVisible(n, pos, dir) {
			continue
		}
		face := c.Faces[dir]
		uv, _ := atlas.Lookup(face.Texture)
		data.AddQuad(pos, face.SubMesh, dir, uv)
	}
}
