package world

import (
	"fmt"
	"sync"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/block"
)

// Index - пространственный индекс чанков: начало чанка -> чанк.
// Единственный источник истины о существовании чанка.
type Index struct {
	size   vec.Vec3
	chunks map[vec.Vec3]*Chunk
	mu     sync.RWMutex
}

// NewIndex создаёт индекс для чанков размера size
func NewIndex(size vec.Vec3) *Index {
	return &Index{
		size:   size,
		chunks: make(map[vec.Vec3]*Chunk),
	}
}

// ChunkSize возвращает размер чанка
func (idx *Index) ChunkSize() vec.Vec3 {
	return idx.size
}

// ToChunkOrigin переводит мировую позицию в начало содержащего её чанка
func (idx *Index) ToChunkOrigin(pos vec.Vec3) vec.Vec3 {
	return pos.FloorDiv(idx.size).Mul(idx.size)
}

// IsAligned проверяет, что позиция является началом чанка
func (idx *Index) IsAligned(origin vec.Vec3) bool {
	return idx.ToChunkOrigin(origin) == origin
}

// Get возвращает чанк по началу или nil
func (idx *Index) Get(origin vec.Vec3) *Chunk {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.chunks[origin]
}

// Has проверяет наличие чанка
func (idx *Index) Has(origin vec.Vec3) bool {
	return idx.Get(origin) != nil
}

// Insert регистрирует чанк
func (idx *Index) Insert(origin vec.Vec3, c *Chunk) error {
	if !idx.IsAligned(origin) {
		return fmt.Errorf("%w: %v", ErrMisalignedOrigin, origin)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.chunks[origin]; exists {
		return fmt.Errorf("%w: %v", ErrOriginOccupied, origin)
	}
	idx.chunks[origin] = c
	return nil
}

// Create создаёт пустой чанк и регистрирует его
func (idx *Index) Create(origin vec.Vec3) (*Chunk, error) {
	c := NewChunk(origin, idx.size, idx)
	if err := idx.Insert(origin, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Remove удаляет чанк и возвращает его (nil, если чанка не было)
func (idx *Index) Remove(origin vec.Vec3) *Chunk {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	c, exists := idx.chunks[origin]
	if !exists {
		return nil
	}
	delete(idx.chunks, origin)
	return c
}

// Len возвращает количество чанков
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}

// Origins возвращает копию списка начал чанков (порядок не определён)
func (idx *Index) Origins() []vec.Vec3 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	origins := make([]vec.Vec3, 0, len(idx.chunks))
	for origin := range idx.chunks {
		origins = append(origins, origin)
	}
	return origins
}

// ChunkAt возвращает чанк, содержащий мировую позицию
func (idx *Index) ChunkAt(pos vec.Vec3) *Chunk {
	return idx.Get(idx.ToChunkOrigin(pos))
}

// BlockAt возвращает блок по мировой позиции; nil, если чанка нет
func (idx *Index) BlockAt(pos vec.Vec3) *block.Block {
	c := idx.ChunkAt(pos)
	if c == nil {
		return nil
	}
	return c.blockAtLocal(pos.Sub(c.origin))
}

// SetBlockAt ставит блок по мировой позиции.
// Возвращает прежний блок и чанки, помеченные для перестройки; без чанка ничего не делает.
func (idx *Index) SetBlockAt(pos vec.Vec3, b *block.Block) (*block.Block, []*Chunk) {
	c := idx.ChunkAt(pos)
	if c == nil {
		return nil, nil
	}
	return c.SetBlockAt(pos, b, true)
}

// Neighbor возвращает соседний чанк в направлении dir
func (idx *Index) Neighbor(origin vec.Vec3, dir vec.Direction) *Chunk {
	return idx.Get(idx.neighborOrigin(origin, dir))
}

func (idx *Index) neighborOrigin(origin vec.Vec3, dir vec.Direction) vec.Vec3 {
	return origin.Add(dir.Offset().Mul(idx.size))
}

// AdjacentOrigins возвращает начала шести соседних чанков в порядке направлений
func (idx *Index) AdjacentOrigins(origin vec.Vec3) [vec.DirectionCount]vec.Vec3 {
	var origins [vec.DirectionCount]vec.Vec3
	for _, dir := range vec.Directions {
		origins[dir] = idx.neighborOrigin(origin, dir)
	}
	return origins
}
