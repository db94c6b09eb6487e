package entity

import (
	"github.com/annel0/voxcity/internal/protocol/events"
	"github.com/annel0/voxcity/internal/vec"
)

const (
	patrolSpeed    = 0.04 // Клеток за тик
	chaseSpeed     = 0.07
	giveUpAfterSec = 3.0 // Сколько секунд преследовать потерянного игрока
)

// NewEnemyBall создаёт шар-часовой, обходящий маршрут route по кругу.
// Первая точка маршрута — пост; пустой маршрут оставляет часового стоять.
func NewEnemyBall(id uint64, route []vec.Vec2) *Entity {
	start := vec.Vec2{}
	if len(route) > 0 {
		start = route[0]
	}

	e := NewEntity(id, TypeEnemyBall, start)
	e.Speed = patrolSpeed
	e.SetState(NewPatrolState(route))
	return e
}

// PatrolState - обход маршрута до обнаружения игрока
type PatrolState struct {
	Route       []vec.Vec2
	Index       int
	TimeInState float64
}

// NewPatrolState создаёт состояние обхода маршрута
func NewPatrolState(route []vec.Vec2) *PatrolState {
	return &PatrolState{
		Route: route,
		Index: 0,
	}
}

func (s *PatrolState) Enter(entity *Entity) {
	s.TimeInState = 0
	entity.Speed = patrolSpeed
}

func (s *PatrolState) Update(entity *Entity, worldAPI WorldAPI) State {
	s.TimeInState += 1.0 / ticksPerSecond

	// Игрок в прямой видимости — тревога и погоня
	if worldAPI.SeesPlayer(entity.Cell()) {
		worldAPI.Notify(events.EnemySpotted, entity)
		return NewChaseState(s)
	}

	if len(s.Route) == 0 {
		return s
	}

	// Достигли точки маршрута — идём к следующей по кругу
	if entity.AdvanceToward(worldAPI, s.Route[s.Index]) {
		s.Index = (s.Index + 1) % len(s.Route)
	}

	return s
}

func (s *PatrolState) Exit(entity *Entity) {}

func (s *PatrolState) Name() string { return "patrol" }

// ChaseState - преследование игрока, пока тот в прямой видимости
type ChaseState struct {
	Resume      *PatrolState // Маршрут, к которому вернёмся после погони
	TimeInState float64
	LostFor     float64 // Секунд без прямой видимости
}

// NewChaseState создаёт состояние погони с возвратом к маршруту resume
func NewChaseState(resume *PatrolState) *ChaseState {
	return &ChaseState{Resume: resume}
}

func (s *ChaseState) Enter(entity *Entity) {
	s.TimeInState = 0
	s.LostFor = 0
	entity.Speed = chaseSpeed
}

func (s *ChaseState) Update(entity *Entity, worldAPI WorldAPI) State {
	s.TimeInState += 1.0 / ticksPerSecond

	if worldAPI.SeesPlayer(entity.Cell()) {
		s.LostFor = 0
	} else {
		s.LostFor += 1.0 / ticksPerSecond
		if s.LostFor >= giveUpAfterSec {
			return NewReturnState(s.Resume)
		}
	}

	entity.AdvanceToward(worldAPI, worldAPI.PlayerCell())
	return s
}

func (s *ChaseState) Exit(entity *Entity) {}

func (s *ChaseState) Name() string { return "chase" }

// ReturnState - возврат к прерванному маршруту после потери игрока
type ReturnState struct {
	Resume      *PatrolState
	TimeInState float64
}

// NewReturnState создаёт состояние возврата к маршруту resume
func NewReturnState(resume *PatrolState) *ReturnState {
	return &ReturnState{Resume: resume}
}

func (s *ReturnState) Enter(entity *Entity) {
	s.TimeInState = 0
	entity.Speed = patrolSpeed
}

func (s *ReturnState) Update(entity *Entity, worldAPI WorldAPI) State {
	s.TimeInState += 1.0 / ticksPerSecond

	// Игрок снова на виду — погоня возобновляется
	if worldAPI.SeesPlayer(entity.Cell()) {
		worldAPI.Notify(events.EnemySpotted, entity)
		return NewChaseState(s.Resume)
	}

	if s.Resume == nil || len(s.Resume.Route) == 0 {
		return NewPatrolState(nil)
	}

	// Возвращаемся к очередной точке прерванного маршрута
	if entity.AdvanceToward(worldAPI, s.Resume.Route[s.Resume.Index]) {
		return s.Resume
	}

	return s
}

func (s *ReturnState) Exit(entity *Entity) {}

func (s *ReturnState) Name() string { return "return" }
