package world

import (
	"encoding/json"
	"fmt"

	"github.com/annel0/voxcity/internal/vec"
)

// Direction задает вертикальную грань структуры, к которой прислонена рампа.
// Оси: север = +Y, юг = -Y, восток = +X, запад = -X.
type Direction int

const (
	DirectionSouth Direction = iota
	DirectionWest
	DirectionNorth
	DirectionEast
)

// String возвращает строковое представление направления
func (d Direction) String() string {
	switch d {
	case DirectionSouth:
		return "south"
	case DirectionWest:
		return "west"
	case DirectionNorth:
		return "north"
	case DirectionEast:
		return "east"
	default:
		return "unknown"
	}
}

// ParseDirection разбирает направление из строки снапшота
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "south":
		return DirectionSouth, nil
	case "west":
		return DirectionWest, nil
	case "north":
		return DirectionNorth, nil
	case "east":
		return DirectionEast, nil
	default:
		return 0, fmt.Errorf("неизвестное направление рампы: %q", s)
	}
}

// Outward возвращает единичный шаг наружу от грани (нормаль в плане XY)
func (d Direction) Outward() vec.Vec2 {
	switch d {
	case DirectionSouth:
		return vec.Vec2{X: 0, Y: -1}
	case DirectionWest:
		return vec.Vec2{X: -1, Y: 0}
	case DirectionNorth:
		return vec.Vec2{X: 0, Y: 1}
	case DirectionEast:
		return vec.Vec2{X: 1, Y: 0}
	default:
		return vec.Vec2{}
	}
}

// MarshalJSON сериализует направление строкой ("south", "west", ...)
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON разбирает направление из строки
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Ramp — наклонный элемент, соединяющий уровни. Неизменяемая запись:
// встроена рампа в стену (заменяет снесенный блок) или приставлена снаружи —
// решается при создании и больше не меняется.
type Ramp struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Z         int       `json:"z"`
	Direction Direction `json:"direction"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	IsShallow bool      `json:"isShallow"`
}

// Base возвращает базовую ячейку рампы
func (r Ramp) Base() vec.Vec3 {
	return vec.Vec3{X: r.X, Y: r.Y, Z: r.Z}
}
