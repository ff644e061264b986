package world

import (
	"fmt"
)

// State - состояние жизненного цикла чанка
type State uint8

const (
	Unloaded State = iota
	Loading
	Generated
	MeshReady
	Loaded
	Failed
	MarkedForDeletion
)

var stateNames = [...]string{
	Unloaded:          "unloaded",
	Loading:           "loading",
	Generated:         "generated",
	MeshReady:         "mesh_ready",
	Loaded:            "loaded",
	Failed:            "failed",
	MarkedForDeletion: "marked_for_deletion",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Разрешённые переходы. Переход в MarkedForDeletion разрешён из любого состояния.
// В Failed чанк попадает при сбое генерации или фонового построения меша.
var transitions = map[State][]State{
	Unloaded:  {Loading},
	Loading:   {Generated, Failed},
	Generated: {MeshReady, Failed},
	MeshReady: {Loaded, Failed},
	Loaded:    {MeshReady, Failed},
}

// CanTransition проверяет, допустим ли переход s -> to
func (s State) CanTransition(to State) bool {
	if to == MarkedForDeletion {
		return s != MarkedForDeletion
	}
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// HasGrid сообщает, заполнена ли сетка блоков в этом состоянии
func (s State) HasGrid() bool {
	switch s {
	case Generated, MeshReady, Loaded:
		return true
	}
	return false
}
