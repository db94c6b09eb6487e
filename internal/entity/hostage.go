package entity

import (
	"github.com/annel0/voxcity/internal/protocol/events"
	"github.com/annel0/voxcity/internal/vec"
)

const (
	followSpeed    = 0.05 // Клеток за тик
	rescueRadius   = 1.5  // Дистанция до игрока, на которой заложник присоединяется
	followDistance = 1.2  // Ближе этой дистанции заложник не жмётся к игроку
)

// NewHostage создаёт заложника, ждущего спасения в указанной клетке
func NewHostage(id uint64, cell vec.Vec2) *Entity {
	e := NewEntity(id, TypeHostage, cell)
	e.Speed = followSpeed
	e.SetState(NewWaitingState())
	return e
}

// WaitingState - заложник ждёт, пока игрок подойдёт вплотную
type WaitingState struct {
	TimeInState float64
}

// NewWaitingState создаёт состояние ожидания спасения
func NewWaitingState() *WaitingState {
	return &WaitingState{}
}

func (s *WaitingState) Enter(entity *Entity) {
	s.TimeInState = 0
}

func (s *WaitingState) Update(entity *Entity, worldAPI WorldAPI) State {
	s.TimeInState += 1.0 / ticksPerSecond

	player := CellCenter(worldAPI.PlayerCell())
	if entity.Pos.DistanceTo(player) <= rescueRadius {
		worldAPI.Notify(events.HostageFollowing, entity)
		return NewFollowingState()
	}

	return s
}

func (s *WaitingState) Exit(entity *Entity) {}

func (s *WaitingState) Name() string { return "waiting" }

// FollowingState - заложник идёт за игроком до зоны эвакуации
type FollowingState struct {
	TimeInState float64
}

// NewFollowingState создаёт состояние следования за игроком
func NewFollowingState() *FollowingState {
	return &FollowingState{}
}

func (s *FollowingState) Enter(entity *Entity) {
	s.TimeInState = 0
}

func (s *FollowingState) Update(entity *Entity, worldAPI WorldAPI) State {
	s.TimeInState += 1.0 / ticksPerSecond

	// Дошли до зоны эвакуации — спасение засчитано
	if entity.Cell().Equals(worldAPI.ExtractionCell()) {
		worldAPI.Notify(events.HostageRescued, entity)
		return NewRescuedState()
	}

	// Держим дистанцию: не наступаем игроку на пятки
	player := worldAPI.PlayerCell()
	if entity.Pos.DistanceTo(CellCenter(player)) > followDistance {
		entity.AdvanceToward(worldAPI, player)
	}

	return s
}

func (s *FollowingState) Exit(entity *Entity) {}

func (s *FollowingState) Name() string { return "following" }

// RescuedState - терминальное состояние: заложник эвакуирован
type RescuedState struct {
	TimeInState float64
}

// NewRescuedState создаёт терминальное состояние спасённого заложника
func NewRescuedState() *RescuedState {
	return &RescuedState{}
}

func (s *RescuedState) Enter(entity *Entity) {
	s.TimeInState = 0
}

func (s *RescuedState) Update(entity *Entity, worldAPI WorldAPI) State {
	s.TimeInState += 1.0 / ticksPerSecond
	return s
}

func (s *RescuedState) Exit(entity *Entity) {}

func (s *RescuedState) Name() string { return "rescued" }
