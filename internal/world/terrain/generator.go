// Package terrain заполняет столбцы мира блоками по стеку слоёв биома.
package terrain

import (
	"fmt"
	"math"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/definition"
	"github.com/annel0/voxelcore/internal/world/noise"
)

const (
	// Масштаб поля влажности
	moistureScale = 500.0
	// Смещение по Y для шума Chance-слоёв, чтобы он не совпадал с шумом высот
	chanceNoiseY = -10555
)

// Generator строит ландшафт. Безопасен для одновременного использования
// из нескольких горутин, если безопасны его источники шума.
type Generator struct {
	world    *definition.World
	height   noise.Sampler
	moisture noise.Sampler
	logger   *logging.Logger
}

// NewGenerator создаёт генератор с шумом Перлина из параметров мира
func NewGenerator(world *definition.World, seed int64) *Generator {
	return NewGeneratorWithSamplers(world,
		noise.NewPerlin(seed, world.Noise),
		noise.NewPerlin(seed+1, world.Noise))
}

// NewGeneratorWithSamplers создаёт генератор с заданными источниками шума
func NewGeneratorWithSamplers(world *definition.World, height, moisture noise.Sampler) *Generator {
	return &Generator{
		world:    world,
		height:   height,
		moisture: moisture,
		logger:   logging.GetTerrainLogger(),
	}
}

// World возвращает описание мира генератора
func (g *Generator) World() *definition.World {
	return g.world
}

// Moisture возвращает влажность столбца блоков в [0, 1]
func (g *Generator) Moisture(x, z int) float64 {
	return noise.ToUnit(g.moisture.Noise2D(float64(x)/moistureScale, float64(z)/moistureScale))
}

// GenerateChunkColumn генерирует все столбцы блоков столбца чанков с углом origin
// в независимый буфер. При ошибке конфигурации буфер не возвращается.
func (g *Generator) GenerateChunkColumn(origin vec.Vec2) (*ColumnBuffer, error) {
	w := g.world
	buf := NewColumnBuffer(origin, w.ChunkSize, w.MinHeight, w.MaxHeight)

	for x := origin.X; x < origin.X+w.ChunkSize.X; x++ {
		for z := origin.Z; z < origin.Z+w.ChunkSize.Z; z++ {
			height, err := g.GenerateColumn(x, z, buf)
			if err != nil {
				return nil, fmt.Errorf("столбец %v: %w", origin, err)
			}
			buf.Heights[(x-origin.X)*w.ChunkSize.Z+(z-origin.Z)] = height
		}
	}
	return buf, nil
}

// GenerateColumn применяет стек слоёв биома к столбцу блоков (x, z)
// и возвращает итоговую высоту.
func (g *Generator) GenerateColumn(x, z int, out BlockSetter) (int, error) {
	height := g.world.MinHeight

	moisture := g.Moisture(x, z)
	biome := g.world.FindBiome(moisture)
	if biome == nil {
		return height, fmt.Errorf("%w: нет биома для влажности %.3f", definition.ErrConfiguration, moisture)
	}

	for i, layer := range biome.Layers {
		if layer == nil {
			g.logger.Error("Слой %d биома %q отсутствует", i, biome.Name)
			return height, fmt.Errorf("%w: биом %q: слой %d отсутствует", definition.ErrConfiguration, biome.Name, i)
		}
		if layer.Type == definition.Structure {
			continue
		}
		height = g.ApplyLayer(layer, x, z, height, out)
	}
	return height, nil
}

// ApplyLayer применяет один слой к столбцу и возвращает новую высоту курсора
func (g *Generator) ApplyLayer(layer *definition.Layer, x, z, height int, out BlockSetter) int {
	switch layer.Type {
	case definition.Chance:
		if g.Shape(x, chanceNoiseY, z, 1, 100, 1) < layer.Chance {
			out.SetBlock(vec.Vec3{X: x, Y: height, Z: z}, block.New(layer.Block))
			return height + 1
		}
		return height

	case definition.Absolute:
		target := g.world.MinHeight + layer.BaseHeight +
			g.Shape(x, 0, z, layer.Frequency, layer.Amplitude, layer.Exponent)
		for y := g.world.MinHeight; y < target; y++ {
			out.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, block.New(layer.Block))
		}
		if target > height {
			return target
		}
		return height

	case definition.Additive, definition.Surface:
		thickness := layer.BaseHeight +
			g.Shape(x, 0, z, layer.Frequency, layer.Amplitude, layer.Exponent)
		if thickness < 0 {
			thickness = 0
		}
		for y := height; y < height+thickness; y++ {
			out.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, block.New(layer.Block))
		}
		return height + thickness
	}

	return height
}

// Shape возвращает floor(((n + 1) * max/2) ^ power), где n - шум в (x/scale, y/scale, z/scale)
func (g *Generator) Shape(x, y, z int, scale float64, max int, power float64) int {
	n := g.height.Noise3D(float64(x)/scale, float64(y)/scale, float64(z)/scale)
	v := (noise.Clamp(n) + 1) * (float64(max) / 2)
	if power != 1 {
		v = math.Pow(v, power)
	}
	return int(math.Floor(v))
}
