// Package render - граница с внешним бэкендом отрисовки и коллизий.
package render

import (
	"sort"
	"sync"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/mesh"
)

// Backend принимает готовые меши чанков. Вершины мешей заданы в локальных
// координатах чанка, origin - смещение чанка в мире.
type Backend interface {
	Upload(origin vec.Vec3, data *mesh.Data) error
	Remove(origin vec.Vec3)
}

// Memory хранит последние загруженные меши в памяти
type Memory struct {
	mu      sync.RWMutex
	meshes  map[vec.Vec3]*mesh.Data
	uploads int
}

// NewMemory создаёт пустой бэкенд в памяти
func NewMemory() *Memory {
	return &Memory{meshes: make(map[vec.Vec3]*mesh.Data)}
}

// Upload сохраняет меш чанка
func (m *Memory) Upload(origin vec.Vec3, data *mesh.Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meshes[origin] = data
	m.uploads++
	return nil
}

// Remove удаляет меш чанка
func (m *Memory) Remove(origin vec.Vec3) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.meshes, origin)
}

// Mesh возвращает меш чанка
func (m *Memory) Mesh(origin vec.Vec3) (*mesh.Data, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.meshes[origin]
	return data, ok
}

// Len возвращает количество мешей
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.meshes)
}

// Uploads возвращает общее количество загрузок
func (m *Memory) Uploads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uploads
}

// Origins возвращает начала чанков с мешами в детерминированном порядке
func (m *Memory) Origins() []vec.Vec3 {
	m.mu.RLock()
	origins := make([]vec.Vec3, 0, len(m.meshes))
	for o := range m.meshes {
		origins = append(origins, o)
	}
	m.mu.RUnlock()

	sort.Slice(origins, func(i, j int) bool {
		a, b := origins[i], origins[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return origins
}

// TotalQuads возвращает суммарное число квадратов
func (m *Memory) TotalQuads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, data := range m.meshes {
		n += data.QuadCount()
	}
	return n
}
