// Package definition описывает мир: блоки, атлас текстур, слои и биомы.
package definition

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"github.com/annel0/voxelcore/internal/world/noise"
)

// ErrConfiguration - ошибка в описании мира
var ErrConfiguration = errors.New("ошибка конфигурации мира")

// World - загруженное и проверенное описание мира
type World struct {
	Name         string
	MinHeight    int
	MaxHeight    int
	ChunkSize    vec.Vec3
	SubMeshCount int
	Noise        noise.Settings
	Atlas        mesh.Atlas
	Registry     *block.Registry
	Biomes       []*Biome
	DefaultBiome *Biome
}

// ChunksPerColumn возвращает количество чанков в вертикальном столбце
func (w *World) ChunksPerColumn() int {
	if w.ChunkSize.Y <= 0 {
		return 0
	}
	return (w.MaxHeight - w.MinHeight) / w.ChunkSize.Y
}

// FindBiome возвращает первый биом, содержащий влажность, иначе биом по умолчанию.
// nil означает, что подходящего биома нет.
func (w *World) FindBiome(moisture float64) *Biome {
	// Значение 1 попадает в последний интервал [x, 1)
	if moisture >= 1 {
		moisture = math.Nextafter(1, 0)
	}
	for _, b := range w.Biomes {
		if b != nil && b.Contains(moisture) {
			return b
		}
	}
	return w.DefaultBiome
}

// Blocks возвращает уникальные типы блоков всех биомов
func (w *World) Blocks() []block.Definition {
	seen := make(map[string]bool)
	var defs []block.Definition
	biomes := append([]*Biome{}, w.Biomes...)
	if w.DefaultBiome != nil {
		biomes = append(biomes, w.DefaultBiome)
	}
	for _, b := range biomes {
		if b == nil {
			continue
		}
		for _, def := range b.Blocks() {
			if seen[def.Identifier()] {
				continue
			}
			seen[def.Identifier()] = true
			defs = append(defs, def)
		}
	}
	return defs
}

// Validate проверяет инварианты описания мира
func (w *World) Validate() error {
	if w.ChunkSize.X <= 0 || w.ChunkSize.Y <= 0 || w.ChunkSize.Z <= 0 {
		return fmt.Errorf("%w: некорректный размер чанка %v", ErrConfiguration, w.ChunkSize)
	}
	if w.MaxHeight <= w.MinHeight {
		return fmt.Errorf("%w: max_height (%d) должен быть больше min_height (%d)",
			ErrConfiguration, w.MaxHeight, w.MinHeight)
	}
	if (w.MaxHeight-w.MinHeight)%w.ChunkSize.Y != 0 {
		return fmt.Errorf("%w: диапазон высот %d..%d не кратен высоте чанка %d",
			ErrConfiguration, w.MinHeight, w.MaxHeight, w.ChunkSize.Y)
	}
	if w.MinHeight%w.ChunkSize.Y != 0 {
		return fmt.Errorf("%w: min_height %d не кратен высоте чанка %d",
			ErrConfiguration, w.MinHeight, w.ChunkSize.Y)
	}
	if w.SubMeshCount < 1 {
		return fmt.Errorf("%w: submeshes должно быть не меньше 1", ErrConfiguration)
	}

	for _, b := range w.Biomes {
		if err := w.validateBiome(b); err != nil {
			return err
		}
	}
	if w.DefaultBiome != nil {
		if err := w.validateBiome(w.DefaultBiome); err != nil {
			return err
		}
	}

	if w.DefaultBiome == nil {
		if gap, ok := w.moistureGap(); ok {
			return fmt.Errorf("%w: влажность %.3f не покрыта ни одним биомом, биом по умолчанию не задан",
				ErrConfiguration, gap)
		}
	}

	return w.validateBlocks()
}

func (w *World) validateBiome(b *Biome) error {
	if b == nil {
		return fmt.Errorf("%w: пустой биом", ErrConfiguration)
	}
	if b.MoistureMax <= b.MoistureMin {
		return fmt.Errorf("%w: биом %q: пустой интервал влажности [%v, %v)",
			ErrConfiguration, b.Name, b.MoistureMin, b.MoistureMax)
	}
	for i, layer := range b.Layers {
		if err := ValidateLayer(layer); err != nil {
			return fmt.Errorf("биом %q, слой %d: %w", b.Name, i, err)
		}
	}
	return nil
}

// ValidateLayer проверяет параметры одного слоя
func ValidateLayer(l *Layer) error {
	if l == nil {
		return fmt.Errorf("%w: слой отсутствует", ErrConfiguration)
	}
	if l.Type == Structure {
		return nil
	}
	if l.Block == nil {
		return fmt.Errorf("%w: слой %q без блока", ErrConfiguration, l.Name)
	}
	if l.Type == Chance {
		if l.Chance < 0 || l.Chance > 100 {
			return fmt.Errorf("%w: слой %q: chance %d вне [0, 100]", ErrConfiguration, l.Name, l.Chance)
		}
		return nil
	}
	if l.Frequency <= 0 {
		return fmt.Errorf("%w: слой %q: frequency должна быть положительной", ErrConfiguration, l.Name)
	}
	if l.Amplitude < 0 || l.BaseHeight < 0 {
		return fmt.Errorf("%w: слой %q: отрицательная высота", ErrConfiguration, l.Name)
	}
	if l.Exponent <= 0 {
		return fmt.Errorf("%w: слой %q: exponent должен быть положительным", ErrConfiguration, l.Name)
	}
	return nil
}

// moistureGap ищет непокрытую биомами точку в [0, 1)
func (w *World) moistureGap() (float64, bool) {
	intervals := make([][2]float64, 0, len(w.Biomes))
	for _, b := range w.Biomes {
		intervals = append(intervals, [2]float64{b.MoistureMin, b.MoistureMax})
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i][0] < intervals[j][0] })

	covered := 0.0
	for _, in := range intervals {
		if in[0] > covered {
			return covered, true
		}
		if in[1] > covered {
			covered = in[1]
		}
		if covered >= 1 {
			return 0, false
		}
	}
	return covered, true
}

// validateBlocks проверяет, что атлас покрывает все текстуры, а сабмеши в пределах меша
func (w *World) validateBlocks() error {
	for _, def := range w.Blocks() {
		for _, tex := range def.Textures() {
			if _, ok := w.Atlas.Lookup(tex); !ok {
				return fmt.Errorf("%w: блок %q: текстура %q отсутствует в атласе",
					ErrConfiguration, def.Identifier(), tex)
			}
		}
		if cube, ok := def.(*block.Cube); ok && cube.MaxSubMesh() >= w.SubMeshCount {
			return fmt.Errorf("%w: блок %q использует сабмеш %d, доступно %d",
				ErrConfiguration, def.Identifier(), cube.MaxSubMesh(), w.SubMeshCount)
		}
	}
	return nil
}
