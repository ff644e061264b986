// Package noise предоставляет когерентный шум для генерации ландшафта.
package noise

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Sampler - источник когерентного шума со значениями в [-1, 1].
// Реализации должны быть безопасны для одновременного чтения из нескольких горутин.
type Sampler interface {
	Noise2D(x, y float64) float64
	Noise3D(x, y, z float64) float64
}

// Settings - параметры фрактального шума
type Settings struct {
	Octaves    int     `yaml:"octaves"`
	Gain       float64 `yaml:"gain"`
	Lacunarity float64 `yaml:"lacunarity"`
	Frequency  float64 `yaml:"frequency"`
}

// DefaultSettings возвращает параметры по умолчанию
func DefaultSettings() Settings {
	return Settings{
		Octaves:    5,
		Gain:       0.5,
		Lacunarity: 2,
		Frequency:  1,
	}
}

// withDefaults подставляет значения по умолчанию вместо нулевых
func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.Octaves <= 0 {
		s.Octaves = def.Octaves
	}
	if s.Gain <= 0 {
		s.Gain = def.Gain
	}
	if s.Lacunarity <= 0 {
		s.Lacunarity = def.Lacunarity
	}
	if s.Frequency <= 0 {
		s.Frequency = def.Frequency
	}
	return s
}

// Шум Перлина равен нулю в узлах решётки, а координаты столбцов целые.
// Смещаем выборку внутрь ячейки.
const (
	offsetX = 0.371
	offsetY = 0.619
	offsetZ = 0.137
)

// Perlin - фрактальный шум Перлина на основе go-perlin
type Perlin struct {
	generator *perlin.Perlin
	settings  Settings
	norm      float64
}

// NewPerlin создаёт генератор с указанным сидом
func NewPerlin(seed int64, settings Settings) *Perlin {
	settings = settings.withDefaults()

	// go-perlin делит каждую следующую октаву на alpha и умножает частоту на beta
	alpha := 1 / settings.Gain
	beta := settings.Lacunarity

	// Сумма амплитуд октав для нормализации в [-1, 1]
	norm := 0.0
	amp := 1.0
	for i := 0; i < settings.Octaves; i++ {
		norm += amp
		amp *= settings.Gain
	}

	return &Perlin{
		generator: perlin.NewPerlin(alpha, beta, int32(settings.Octaves), seed),
		settings:  settings,
		norm:      norm,
	}
}

// Settings возвращает итоговые параметры генератора
func (p *Perlin) Settings() Settings {
	return p.settings
}

// Noise2D возвращает значение шума в точке (x, y)
func (p *Perlin) Noise2D(x, y float64) float64 {
	f := p.settings.Frequency
	return p.normalize(p.generator.Noise2D(x*f+offsetX, y*f+offsetY))
}

// Noise3D возвращает значение шума в точке (x, y, z)
func (p *Perlin) Noise3D(x, y, z float64) float64 {
	f := p.settings.Frequency
	return p.normalize(p.generator.Noise3D(x*f+offsetX, y*f+offsetY, z*f+offsetZ))
}

func (p *Perlin) normalize(v float64) float64 {
	if p.norm > 0 {
		v /= p.norm
	}
	return Clamp(v)
}

// Flat - постоянный шум, используется для плоских миров и тестов
type Flat struct {
	Value float64
}

func (f Flat) Noise2D(x, y float64) float64 {
	return Clamp(f.Value)
}

func (f Flat) Noise3D(x, y, z float64) float64 {
	return Clamp(f.Value)
}

// Clamp ограничивает значение диапазоном [-1, 1]
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// ToUnit переводит значение из [-1, 1] в [0, 1]
func ToUnit(v float64) float64 {
	return (Clamp(v) + 1) / 2
}
