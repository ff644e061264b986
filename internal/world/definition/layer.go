package definition

import (
	"fmt"
	"strings"

	"github.com/annel0/voxelcore/internal/world/block"
)

// LayerType - вид слоя в стеке биома
type LayerType uint8

const (
	// Absolute заполняет столбец от минимальной высоты мира до высоты из шума
	Absolute LayerType = iota
	// Additive добавляет полосу толщиной из шума поверх текущей высоты
	Additive
	// Surface ведёт себя как Additive, отмечает верхний слой
	Surface
	// Chance с вероятностью ставит один блок на текущей высоте
	Chance
	// Structure зарезервирован под многоколоночные объекты и пропускается
	Structure
)

var layerTypeNames = map[LayerType]string{
	Absolute:  "absolute",
	Additive:  "additive",
	Surface:   "surface",
	Chance:    "chance",
	Structure: "structure",
}

func (t LayerType) String() string {
	if name, ok := layerTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("LayerType(%d)", uint8(t))
}

// ParseLayerType разбирает название вида слоя
func ParseLayerType(s string) (LayerType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range layerTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: неизвестный вид слоя %q", ErrConfiguration, s)
}

// Layer - одно правило вертикального стека биома
type Layer struct {
	Name       string
	Type       LayerType
	Block      block.Definition
	BaseHeight int     // Минимальная высота (толщина) слоя
	Frequency  float64 // Расстояние между пиками
	Amplitude  int     // Максимальная высота пиков
	Exponent   float64 // Степень, в которую возводится высота
	Chance     int     // Порог появления для Chance, в процентах [0, 100)
}

// Biome выбирается по влажности столбца
type Biome struct {
	Name        string
	MoistureMin float64
	MoistureMax float64
	Layers      []*Layer
}

// Contains проверяет попадание влажности в [min, max)
func (b *Biome) Contains(moisture float64) bool {
	return moisture >= b.MoistureMin && moisture < b.MoistureMax
}

// Blocks возвращает уникальные типы блоков слоёв биома в порядке появления
func (b *Biome) Blocks() []block.Definition {
	seen := make(map[string]bool)
	var defs []block.Definition
	for _, layer := range b.Layers {
		if layer == nil || layer.Block == nil {
			continue
		}
		id := layer.Block.Identifier()
		if seen[id] {
			continue
		}
		seen[id] = true
		defs = append(defs, layer.Block)
	}
	return defs
}
