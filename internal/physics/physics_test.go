package physics

import (
	"testing"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	stone  = block.New(block.NewCube("stone", block.Face{Solid: true}))
	flower = block.New(block.NewCube("flower", block.Face{Solid: false}))
)

type grid map[vec.Vec3]*block.Block

func (g grid) BlockAt(pos vec.Vec3) *block.Block { return g[pos] }

func TestRaycast(t *testing.T) {
	g := grid{
		{X: 0, Y: 2, Z: 0}:   stone,
		{X: 2, Y: 0, Z: 0}:   stone,
		{X: -1, Y: 0, Z: -4}: flower,
	}

	tests := []struct {
		name     string
		origin   mgl32.Vec3
		dir      mgl32.Vec3
		cell     vec.Vec3
		normal   vec.Vec3
		distance float32
	}{
		{"вниз", mgl32.Vec3{0.5, 10.5, 0.5}, mgl32.Vec3{0, -1, 0}, vec.Vec3{Y: 2}, vec.Vec3{Y: 1}, 7.5},
		{"вдоль X", mgl32.Vec3{-3.5, 0.5, 0.5}, mgl32.Vec3{1, 0, 0}, vec.Vec3{X: 2}, vec.Vec3{X: -1}, 5.5},
		{"отрицательные координаты", mgl32.Vec3{-0.5, 0.5, -0.5}, mgl32.Vec3{0, 0, -1}, vec.Vec3{X: -1, Z: -4}, vec.Vec3{Z: 1}, 2.5},
		{"изнутри блока", mgl32.Vec3{2.5, 0.5, 0.5}, mgl32.Vec3{0, 1, 0}, vec.Vec3{X: 2}, vec.Vec3{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := Raycast(g, tt.origin, tt.dir, 100)
			require.True(t, ok)
			assert.Equal(t, tt.cell, hit.Cell)
			assert.Equal(t, tt.normal, hit.Normal)
			assert.InDelta(t, tt.distance, hit.Distance, 1e-4)
		})
	}
}

func TestRaycastMiss(t *testing.T) {
	g := grid{{X: 0, Y: 2, Z: 0}: stone}

	_, ok := Raycast(g, mgl32.Vec3{0.5, 10.5, 0.5}, mgl32.Vec3{0, -1, 0}, 3)
	assert.False(t, ok, "блок дальше предела")

	_, ok = Raycast(g, mgl32.Vec3{0.5, 10.5, 0.5}, mgl32.Vec3{0, 1, 0}, 100)
	assert.False(t, ok)

	_, ok = Raycast(g, mgl32.Vec3{}, mgl32.Vec3{}, 100)
	assert.False(t, ok)
}

func TestHitAdjacent(t *testing.T) {
	hit := Hit{Cell: vec.Vec3{X: 1, Y: 2, Z: 3}, Normal: vec.Vec3{Y: 1}}
	assert.Equal(t, vec.Vec3{X: 1, Y: 3, Z: 3}, hit.Adjacent())
}

func TestBoxCells(t *testing.T) {
	box := NewBox(mgl32.Vec3{0.5, 1, 0.5}, mgl32.Vec3{0.6, 1.8, 0.6})
	assert.Equal(t, []vec.Vec3{{X: 0, Y: 1, Z: 0}, {X: 0, Y: 2, Z: 0}}, box.Cells())

	assert.Equal(t, []vec.Vec3{{X: -1, Y: 0, Z: -1}}, CellBox(vec.Vec3{X: -1, Z: -1}).Cells())
}

func TestBoxOverlaps(t *testing.T) {
	a := CellBox(vec.Vec3{})
	assert.False(t, a.Overlaps(CellBox(vec.Vec3{X: 1})), "касание гранями")
	assert.True(t, a.Overlaps(Box{Min: mgl32.Vec3{0.5, 0.5, 0.5}, Max: mgl32.Vec3{2, 2, 2}}))
	assert.True(t, a.Overlaps(a))
}

func TestCollision(t *testing.T) {
	g := grid{
		{X: 1, Y: 1, Z: 0}: stone,
		{X: 0, Y: 1, Z: 1}: flower,
	}
	box := NewBox(mgl32.Vec3{0.5, 1, 0.5}, mgl32.Vec3{0.6, 1.8, 0.6})

	assert.False(t, Collides(g, box))
	assert.False(t, CanMoveTo(g, box, mgl32.Vec3{1, 0, 0}))
	assert.True(t, CanMoveTo(g, box, mgl32.Vec3{0, 0, 1}), "цветок не мешает движению")
	assert.True(t, CanMoveTo(g, box, mgl32.Vec3{-1, 0, 0}))

	assert.True(t, IsSolidBlock(stone))
	assert.False(t, IsSolidBlock(flower))
	assert.False(t, IsSolidBlock(nil))
}
