package world

import "errors"

var (
	// ErrOriginOccupied - в индексе уже есть чанк с таким началом
	ErrOriginOccupied = errors.New("начало чанка уже занято")
	// ErrMisalignedOrigin - начало не кратно размеру чанка
	ErrMisalignedOrigin = errors.New("начало чанка не кратно его размеру")
	// ErrGridUninitialized - сетка блоков чанка ещё не готова для построения меша
	ErrGridUninitialized = errors.New("сетка блоков чанка не инициализирована")
	// ErrInvalidTransition - недопустимый переход состояния чанка
	ErrInvalidTransition = errors.New("недопустимый переход состояния чанка")
)
