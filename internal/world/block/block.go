package block

// Block - экземпляр блока в ячейке чанка.
// Пока хранит только ссылку на определение; nil-блок означает воздух.
type Block struct {
	Definition Definition
}

// New создаёт экземпляр блока указанного типа
func New(def Definition) *Block {
	return &Block{Definition: def}
}

// Identifier возвращает идентификатор типа или пустую строку для nil
func (b *Block) Identifier() string {
	if b == nil || b.Definition == nil {
		return ""
	}
	return b.Definition.Identifier()
}
