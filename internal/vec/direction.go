package vec

// Direction задаёт одну из шести осевых граней вокселя.
// Порядок совпадает с порядком граней куба в определениях блоков.
type Direction uint8

const (
	Forward Direction = iota // +Z
	Back                     // -Z
	Right                    // +X
	Left                     // -X
	Up                       // +Y
	Down                     // -Y

	DirectionCount // всегда последний
)

// Directions перечисляет все направления в каноническом порядке
var Directions = [DirectionCount]Direction{Forward, Back, Right, Left, Up, Down}

var directionOffsets = [DirectionCount]Vec3{
	Forward: {Z: 1},
	Back:    {Z: -1},
	Right:   {X: 1},
	Left:    {X: -1},
	Up:      {Y: 1},
	Down:    {Y: -1},
}

var directionNames = [DirectionCount]string{"forward", "back", "right", "left", "up", "down"}

// Offset возвращает единичный сдвиг в сторону грани
func (d Direction) Offset() Vec3 {
	return directionOffsets[d]
}

// Opposite возвращает противоположную грань
func (d Direction) Opposite() Direction {
	// Пары идут подряд: Forward/Back, Right/Left, Up/Down
	return d ^ 1
}

// String возвращает имя грани, как оно пишется в YAML
func (d Direction) String() string {
	if d >= DirectionCount {
		return "unknown"
	}
	return directionNames[d]
}

// ParseDirection разбирает имя грани
func ParseDirection(s string) (Direction, bool) {
	for i, name := range directionNames {
		if name == s {
			return Direction(i), true
		}
	}
	return 0, false
}
