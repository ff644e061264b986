package definition

import (
	"fmt"
	"os"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"github.com/annel0/voxelcore/internal/world/noise"
	"gopkg.in/yaml.v3"
)

// document - YAML представление описания мира
type document struct {
	Name         string               `yaml:"name"`
	MinHeight    int                  `yaml:"min_height"`
	MaxHeight    int                  `yaml:"max_height"`
	ChunkSize    sizeDoc              `yaml:"chunk_size"`
	SubMeshes    int                  `yaml:"submeshes"`
	Noise        noise.Settings       `yaml:"noise"`
	Textures     map[string]mesh.Rect `yaml:"textures"`
	Blocks       []blockDoc           `yaml:"blocks"`
	Layers       []layerDoc           `yaml:"layers"`
	Biomes       []biomeDoc           `yaml:"biomes"`
	DefaultBiome string               `yaml:"default_biome"`
}

type sizeDoc struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

type blockDoc struct {
	ID        string                `yaml:"id"`
	Shape     string                `yaml:"shape"`
	Solid     *bool                 `yaml:"solid"`
	Texture   string                `yaml:"texture"`
	SubMesh   int                   `yaml:"submesh"`
	EmptyMesh bool                  `yaml:"empty_mesh"`
	Faces     map[string]block.Face `yaml:"faces"`
}

type layerDoc struct {
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	Block      string  `yaml:"block"`
	BaseHeight int     `yaml:"base_height"`
	Frequency  float64 `yaml:"frequency"`
	Amplitude  int     `yaml:"amplitude"`
	Exponent   float64 `yaml:"exponent"`
	Chance     int     `yaml:"chance"`
}

type biomeDoc struct {
	Name        string   `yaml:"name"`
	MoistureMin float64  `yaml:"moisture_min"`
	MoistureMax float64  `yaml:"moisture_max"`
	Layers      []string `yaml:"layers"`
}

// Load читает описание мира из YAML файла
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение описания мира: %w", err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// Parse разбирает и проверяет описание мира
func Parse(data []byte) (*World, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	w := &World{
		Name:         doc.Name,
		MinHeight:    doc.MinHeight,
		MaxHeight:    doc.MaxHeight,
		ChunkSize:    vec.Vec3{X: doc.ChunkSize.X, Y: doc.ChunkSize.Y, Z: doc.ChunkSize.Z},
		SubMeshCount: doc.SubMeshes,
		Noise:        doc.Noise,
		Atlas:        mesh.Atlas(doc.Textures),
		Registry:     block.NewRegistry(),
	}
	if w.ChunkSize == (vec.Vec3{}) {
		w.ChunkSize = vec.Vec3{X: 16, Y: 16, Z: 16}
	}
	if w.SubMeshCount == 0 {
		w.SubMeshCount = 1
	}
	if w.Atlas == nil {
		w.Atlas = mesh.Atlas{}
	}

	for _, bd := range doc.Blocks {
		def, err := bd.build()
		if err != nil {
			return nil, err
		}
		if err := w.Registry.Register(def); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}

	layers := make(map[string]*Layer, len(doc.Layers))
	for _, ld := range doc.Layers {
		layer, err := ld.build(w.Registry)
		if err != nil {
			return nil, err
		}
		if _, exists := layers[layer.Name]; exists {
			return nil, fmt.Errorf("%w: слой %q объявлен дважды", ErrConfiguration, layer.Name)
		}
		layers[layer.Name] = layer
	}

	biomes := make(map[string]*Biome, len(doc.Biomes))
	for _, bd := range doc.Biomes {
		biome := &Biome{
			Name:        bd.Name,
			MoistureMin: bd.MoistureMin,
			MoistureMax: bd.MoistureMax,
		}
		for _, name := range bd.Layers {
			layer, ok := layers[name]
			if !ok {
				return nil, fmt.Errorf("%w: биом %q ссылается на неизвестный слой %q",
					ErrConfiguration, bd.Name, name)
			}
			biome.Layers = append(biome.Layers, layer)
		}
		biomes[biome.Name] = biome
		w.Biomes = append(w.Biomes, biome)
	}

	if doc.DefaultBiome != "" {
		biome, ok := biomes[doc.DefaultBiome]
		if !ok {
			return nil, fmt.Errorf("%w: неизвестный биом по умолчанию %q", ErrConfiguration, doc.DefaultBiome)
		}
		w.DefaultBiome = biome
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (bd blockDoc) build() (block.Definition, error) {
	if bd.Shape != "" && bd.Shape != "cube" {
		return nil, fmt.Errorf("%w: блок %q: неизвестная форма %q", ErrConfiguration, bd.ID, bd.Shape)
	}

	solid := true
	if bd.Solid != nil {
		solid = *bd.Solid
	}
	cube := block.NewCube(bd.ID, block.Face{Solid: solid, Texture: bd.Texture, SubMesh: bd.SubMesh})
	cube.EmptyMesh = bd.EmptyMesh

	for name, face := range bd.Faces {
		dir, ok := vec.ParseDirection(name)
		if !ok {
			return nil, fmt.Errorf("%w: блок %q: неизвестная грань %q", ErrConfiguration, bd.ID, name)
		}
		cube.Faces[dir] = face
	}
	return cube, nil
}

func (ld layerDoc) build(registry *block.Registry) (*Layer, error) {
	t, err := ParseLayerType(ld.Type)
	if err != nil {
		return nil, fmt.Errorf("слой %q: %w", ld.Name, err)
	}

	layer := &Layer{
		Name:       ld.Name,
		Type:       t,
		BaseHeight: ld.BaseHeight,
		Frequency:  ld.Frequency,
		Amplitude:  ld.Amplitude,
		Exponent:   ld.Exponent,
		Chance:     ld.Chance,
	}
	if layer.Frequency == 0 {
		layer.Frequency = 10
	}
	if layer.Exponent == 0 {
		layer.Exponent = 1
	}

	if t != Structure {
		def, ok := registry.Get(ld.Block)
		if !ok {
			return nil, fmt.Errorf("%w: слой %q ссылается на неизвестный блок %q",
				ErrConfiguration, ld.Name, ld.Block)
		}
		layer.Block = def
	}
	return layer, nil
}
