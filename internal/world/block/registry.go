package block

import (
	"fmt"
	"sort"
	"sync"
)

// Registry хранит определения блоков на всё время работы процесса
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]Definition
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]Definition),
	}
}

// Register добавляет определение в реестр
func (r *Registry) Register(def Definition) error {
	if def == nil || def.Identifier() == "" {
		return fmt.Errorf("определение блока без идентификатора")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[def.Identifier()]; exists {
		return fmt.Errorf("блок %q уже зарегистрирован", def.Identifier())
	}
	r.definitions[def.Identifier()] = def
	return nil
}

// Get возвращает определение по идентификатору
func (r *Registry) Get(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, exists := r.definitions[id]
	return def, exists
}

// NewBlock создаёт экземпляр блока по идентификатору типа
func (r *Registry) NewBlock(id string) (*Block, bool) {
	def, exists := r.Get(id)
	if !exists {
		return nil, false
	}
	return New(def), true
}

// Identifiers возвращает отсортированный список зарегистрированных идентификаторов
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.definitions))
	for id := range r.definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len возвращает количество зарегистрированных определений
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.definitions)
}
