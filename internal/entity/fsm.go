package entity

import (
	"github.com/annel0/voxcity/internal/physics"
	"github.com/annel0/voxcity/internal/vec"
)

// Симуляция идёт с фиксированным шагом 60 тиков в секунду
const ticksPerSecond = 60.0

// EntityType различает виды сущностей
type EntityType uint16

const (
	TypePlayer EntityType = iota + 1
	TypeEnemyBall
	TypeHostage
)

// String возвращает имя типа сущности
func (t EntityType) String() string {
	switch t {
	case TypePlayer:
		return "player"
	case TypeEnemyBall:
		return "enemy_ball"
	case TypeHostage:
		return "hostage"
	default:
		return "unknown"
	}
}

// State представляет состояние конечного автомата
type State interface {
	Enter(entity *Entity)
	Update(entity *Entity, worldAPI WorldAPI) State
	Exit(entity *Entity)
	Name() string
}

// WorldAPI представляет интерфейс для взаимодействия сущности с миром
type WorldAPI interface {
	// CanStep проверяет шаг между соседними клетками
	CanStep(from, to vec.Vec2) bool
	// StepToward возвращает следующую проходимую клетку в сторону цели
	StepToward(from, to vec.Vec2) vec.Vec2
	// SurfaceHeight возвращает уровень поверхности клетки
	SurfaceHeight(pos vec.Vec2) int
	// PlayerCell возвращает клетку игрока
	PlayerCell() vec.Vec2
	// SeesPlayer проверяет прямую видимость игрока из клетки
	SeesPlayer(from vec.Vec2) bool
	// ExtractionCell возвращает клетку зоны эвакуации
	ExtractionCell() vec.Vec2
	// Notify публикует игровое событие от имени сущности
	Notify(event string, e *Entity)
}

// Entity представляет сущность с конечным автоматом
type Entity struct {
	ID           uint64
	Type         EntityType
	Pos          vec.Vec2Float // непрерывная позиция, центр клетки — x+0.5
	Level        int           // уровень поверхности под сущностью
	Speed        float64       // клеток за тик
	Collider     *physics.BoxCollider
	CurrentState State
	Data         map[string]interface{}
}

// NewEntity создаёт новую сущность в центре указанной клетки
func NewEntity(id uint64, entityType EntityType, cell vec.Vec2) *Entity {
	return &Entity{
		ID:           id,
		Type:         entityType,
		Pos:          CellCenter(cell),
		Speed:        0.05, // Клеток за тик
		Collider:     physics.NewBoxCollider(1, 1),
		CurrentState: nil,
		Data:         make(map[string]interface{}),
	}
}

// CellCenter возвращает центр клетки в непрерывных координатах
func CellCenter(cell vec.Vec2) vec.Vec2Float {
	return vec.Vec2Float{X: float64(cell.X) + 0.5, Y: float64(cell.Y) + 0.5}
}

// Cell возвращает клетку, в которой находится сущность
func (e *Entity) Cell() vec.Vec2 {
	return physics.CellOf(e.Pos)
}

// Update обновляет состояние сущности
func (e *Entity) Update(worldAPI WorldAPI) {
	if e.CurrentState != nil {
		newState := e.CurrentState.Update(e, worldAPI)
		if newState != e.CurrentState {
			e.CurrentState.Exit(e)
			e.CurrentState = newState
			e.CurrentState.Enter(e)
		}
	}
}

// SetState устанавливает новое состояние сущности
func (e *Entity) SetState(state State) {
	if e.CurrentState != nil {
		e.CurrentState.Exit(e)
	}

	e.CurrentState = state

	if e.CurrentState != nil {
		e.CurrentState.Enter(e)
	}
}

// StateName возвращает имя текущего состояния для логов и телеметрии
func (e *Entity) StateName() string {
	if e.CurrentState == nil {
		return "none"
	}
	return e.CurrentState.Name()
}

// Advance плавно ведёт сущность к центру клетки next со скоростью Speed.
// Возвращает true в момент прибытия; уровень обновляется на прибытии.
func (e *Entity) Advance(worldAPI WorldAPI, next vec.Vec2) bool {
	center := CellCenter(next)
	delta := center.Sub(e.Pos)
	dist := delta.Length()

	if dist <= e.Speed {
		e.Pos = center
		e.Level = worldAPI.SurfaceHeight(next)
		return true
	}

	e.Pos = e.Pos.Add(delta.Mul(e.Speed / dist))
	return false
}

// AdvanceToward делает жадный шаг к цели: выбирает следующую клетку через
// StepToward и ведёт сущность к её центру. Возвращает true, когда сущность
// стоит в центре целевой клетки.
func (e *Entity) AdvanceToward(worldAPI WorldAPI, goal vec.Vec2) bool {
	cell := e.Cell()
	if cell.Equals(goal) {
		return e.Advance(worldAPI, goal)
	}

	next := worldAPI.StepToward(cell, goal)
	if next.Equals(cell) {
		// Пути нет, стоим на месте
		return false
	}

	e.Advance(worldAPI, next)
	return false
}
