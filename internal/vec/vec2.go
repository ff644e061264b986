package vec

import "math"

// Vec2 представляет горизонтальные координаты колонны (X, Z)
type Vec2 struct {
	X, Z int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Z: v.Z + other.Z}
}

// Manhattan возвращает манхэттенское расстояние от начала координат
func (v Vec2) Manhattan() int {
	return Abs(v.X) + Abs(v.Z)
}

// WithY поднимает колонну в трёхмерные координаты с указанной высотой
func (v Vec2) WithY(y int) Vec3 {
	return Vec3{X: v.X, Y: y, Z: v.Z}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dz := float64(v.Z - other.Z)
	return math.Sqrt(dx*dx + dz*dz)
}

// Abs возвращает модуль целого числа
func Abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// FloorDiv делит с округлением вниз, чтобы отрицательные координаты
// попадали в правильный чанк (-1 / 16 == -1, а не 0)
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod возвращает неотрицательный остаток для положительного делителя
func FloorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}
