package vec

import "fmt"

// Vec3 представляет трехмерный вектор с целочисленными координатами
type Vec3 struct {
	X int
	Y int
	Z int
}

// Column отбрасывает высоту и возвращает координаты колонны
func (v Vec3) Column() Vec2 {
	return Vec2{X: v.X, Z: v.Z}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Mul покомпонентно умножает векторы
func (v Vec3) Mul(other Vec3) Vec3 {
	return Vec3{
		X: v.X * other.X,
		Y: v.Y * other.Y,
		Z: v.Z * other.Z,
	}
}

// FloorDiv покомпонентно делит с округлением вниз
func (v Vec3) FloorDiv(size Vec3) Vec3 {
	return Vec3{
		X: FloorDiv(v.X, size.X),
		Y: FloorDiv(v.Y, size.Y),
		Z: FloorDiv(v.Z, size.Z),
	}
}

// Volume возвращает произведение компонент
func (v Vec3) Volume() int {
	return v.X * v.Y * v.Z
}

// String нужен для логов и метаданных событий
func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}
