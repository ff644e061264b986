package block

import (
	"testing"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapNeighborhood - окружение на карте позиций для тестов
type mapNeighborhood struct {
	blocks   map[vec.Vec3]*Block
	unloaded map[vec.Vec3]bool
	draw     bool
}

func (m mapNeighborhood) BlockAt(local vec.Vec3) (*Block, bool) {
	if m.unloaded[local] {
		return nil, false
	}
	return m.blocks[local], true
}

func (m mapNeighborhood) DrawUnloadedFaces() bool { return m.draw }

func TestCubeIsolatedEmitsAllFaces(t *testing.T) {
	stone := NewCube("stone", Face{Solid: true, Texture: "stone"})
	n := mapNeighborhood{blocks: map[vec.Vec3]*Block{}}
	data := mesh.NewData(1)

	stone.AddMeshData(vec.Vec3{}, data, n, mesh.Atlas{"stone": {W: 1, H: 1}}, New(stone))

	assert.Equal(t, 6, data.QuadCount())
}

func TestCubeFaceCullingRule(t *testing.T) {
	stone := NewCube("stone", Face{Solid: true})
	glass := NewCube("glass", Face{Solid: false})
	// Полублок: сплошной только снизу
	slab := NewCube("slab", Face{Solid: false})
	slab.Faces[vec.Down].Solid = true

	center := vec.Vec3{X: 1, Y: 1, Z: 1}
	cases := []struct {
		name     string
		neighbor *Block
		dir      vec.Direction
		visible  bool
	}{
		{"воздух", nil, vec.Up, true},
		{"камень", New(stone), vec.Up, false},
		{"стекло", New(glass), vec.Up, true},
		{"полублок сверху закрывает", New(slab), vec.Up, false},
		{"полублок сбоку не закрывает", New(slab), vec.Right, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := mapNeighborhood{blocks: map[vec.Vec3]*Block{
				center.Add(c.dir.Offset()): c.neighbor,
			}}
			assert.Equal(t, c.visible, FaceVisible(n, center, c.dir))
		})
	}
}

func TestFaceVisibleUnloadedPolicy(t *testing.T) {
	pos := vec.Vec3{}
	unloaded := map[vec.Vec3]bool{pos.Add(vec.Forward.Offset()): true}

	draw := mapNeighborhood{unloaded: unloaded, draw: true}
	cull := mapNeighborhood{unloaded: unloaded, draw: false}

	assert.True(t, FaceVisible(draw, pos, vec.Forward))
	assert.False(t, FaceVisible(cull, pos, vec.Forward))
}

func TestCubeEmptyMesh(t *testing.T) {
	air := NewCube("barrier", Face{Solid: true})
	air.EmptyMesh = true
	data := mesh.NewData(1)

	air.AddMeshData(vec.Vec3{}, data, mapNeighborhood{}, mesh.Atlas{}, New(air))
	assert.True(t, data.IsEmpty())
}

func TestCubeSubMeshPerFace(t *testing.T) {
	grass := NewCube("grass", Face{Solid: true, Texture: "dirt"})
	grass.Faces[vec.Up] = Face{Solid: true, Texture: "grass_top", SubMesh: 1}
	data := mesh.NewData(2)

	grass.AddMeshData(vec.Vec3{}, data, mapNeighborhood{}, mesh.Atlas{}, New(grass))

	assert.Len(t, data.Triangles[0], 5*6)
	assert.Len(t, data.Triangles[1], 6)
	assert.Equal(t, 1, grass.MaxSubMesh())
	assert.Equal(t, []string{"dirt", "dirt", "dirt", "dirt", "grass_top", "dirt"}, grass.Textures())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewCube("stone", Face{Solid: true})))
	require.NoError(t, r.Register(NewCube("dirt", Face{Solid: true})))

	assert.Error(t, r.Register(NewCube("stone", Face{})), "повторная регистрация должна давать ошибку")
	assert.Error(t, r.Register(NewCube("", Face{})))

	b, ok := r.NewBlock("dirt")
	require.True(t, ok)
	assert.Equal(t, "dirt", b.Identifier())

	_, ok = r.NewBlock("lava")
	assert.False(t, ok)

	assert.Equal(t, []string{"dirt", "stone"}, r.Identifiers())
	assert.Equal(t, 2, r.Len())

	var nilBlock *Block
	assert.Equal(t, "", nilBlock.Identifier())
}
