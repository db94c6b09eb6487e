// Package game связывает сетку, физику, сущности и камеру в игровую
// сессию с фиксированным шагом 60 тиков в секунду. Сессия реализует
// entity.WorldAPI и отдаёт хосту готовую трансформацию камеры за тик.
package game

import (
	"context"

	"github.com/annel0/voxcity/internal/camera"
	"github.com/annel0/voxcity/internal/entity"
	"github.com/annel0/voxcity/internal/eventbus"
	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/physics"
	"github.com/annel0/voxcity/internal/protocol/events"
	"github.com/annel0/voxcity/internal/vec"
	"github.com/annel0/voxcity/internal/world"
)

const (
	tickRate = 60.0
	tickDT   = 1.0 / tickRate

	// viewDistance ограничивает прямую видимость часовых, в клетках
	viewDistance = 14.0

	// eyeHeight поднимает точку взгляда над поверхностью
	eyeHeight = 0.5

	eventSource = "game-session"
)

// SessionConfig описывает параметры игровой сессии
type SessionConfig struct {
	MapName    string
	Camera     camera.CameraConfig
	PlayerCell vec.Vec2
	Extraction vec.Vec2
}

// Session — одна игровая сессия: мир, сущности и камера
type Session struct {
	cfg  SessionConfig
	grid *world.VoxelGrid
	phys *physics.GridPhysics
	rig  *camera.Rig

	player   *entity.Entity
	entities []*entity.Entity
	nextID   uint64

	tick    uint64
	rescued int
	caught  bool
	ended   bool
}

// NewSession создаёт сессию на готовой сетке. Сетка не копируется:
// на время сессии она принадлежит сессии.
func NewSession(grid *world.VoxelGrid, cfg SessionConfig) *Session {
	s := &Session{
		cfg:    cfg,
		grid:   grid,
		phys:   physics.NewGridPhysics(grid),
		nextID: 2,
	}

	s.player = entity.NewEntity(1, entity.TypePlayer, cfg.PlayerCell)
	s.player.Collider = physics.NewBoxCollider(0.8, 0.8)
	s.player.Level = s.phys.SurfaceHeight(cfg.PlayerCell)

	s.rig = camera.NewRig(cfg.Camera, s.cameraQuery)

	s.publish(events.SessionStarted, map[string]interface{}{
		"map":    cfg.MapName,
		"width":  grid.Width(),
		"height": grid.Height(),
	}, 4)
	logging.Info("🎮 Сессия на карте «%s» начата (%dx%d)", cfg.MapName, grid.Width(), grid.Height())

	return s
}

// cameraQuery проверяет прямую видимость цели из текущей позиции камеры.
// До первого размещения камеры считаем цель видимой.
func (s *Session) cameraQuery(target vec.Vec3Float) (bool, error) {
	if s.tick <= 1 {
		return true, nil
	}
	camPos := s.rig.Placer.Position()
	return s.grid.HasLineOfSight(camPos.ToVec3(), target.ToVec3()), nil
}

// AddEnemy добавляет шара-часового с маршрутом route
func (s *Session) AddEnemy(route []vec.Vec2) *entity.Entity {
	e := entity.NewEnemyBall(s.nextID, route)
	s.nextID++
	s.entities = append(s.entities, e)
	return e
}

// AddHostage добавляет заложника в клетку cell
func (s *Session) AddHostage(cell vec.Vec2) *entity.Entity {
	e := entity.NewHostage(s.nextID, cell)
	s.nextID++
	s.entities = append(s.entities, e)
	return e
}

// MovePlayer пытается сдвинуть игрока на delta за тик. Переход между
// клетками подчиняется правилам шага (рампы, спуски), дополнительно
// коллайдер игрока не должен задевать стены выше нового уровня.
func (s *Session) MovePlayer(delta vec.Vec2Float) bool {
	desired := s.player.Pos.Add(delta)
	cur := s.player.Cell()
	targetCell := physics.CellOf(desired)

	if !targetCell.Equals(cur) && !s.phys.CanStep(cur, targetCell) {
		return false
	}

	newLevel := s.phys.SurfaceHeight(targetCell)
	if !physics.CanMoveToPosition(desired, s.player.Collider, s.phys.WalkableFor(newLevel)) {
		return false
	}

	s.player.Pos = desired
	s.player.Level = newLevel
	return true
}

// Tick продвигает сессию на один тик и возвращает трансформацию камеры
func (s *Session) Tick() camera.CameraTransform {
	s.tick++

	for _, e := range s.entities {
		e.Update(s)
	}

	s.checkCapture()

	focus := vec.Vec3Float{
		X: s.player.Pos.X,
		Y: s.player.Pos.Y,
		Z: float64(s.player.Level) + eyeHeight,
	}
	return s.rig.Tick(tickDT, focus)
}

// checkCapture проверяет, догнал ли кто-то из часовых игрока
func (s *Session) checkCapture() {
	if s.caught {
		return
	}

	for _, e := range s.entities {
		if e.Type != entity.TypeEnemyBall {
			continue
		}
		if e.Level != s.player.Level {
			continue
		}
		if physics.CheckBoxCollision(e.Pos, e.Collider, s.player.Pos, s.player.Collider) {
			s.caught = true
			s.publish(events.PlayerCaught, s.entityData(e), 6)
			logging.Info("💥 Часовой %d догнал игрока на тике %d", e.ID, s.tick)
			return
		}
	}
}

// SetCameraConfig вливает новую конфигурацию камеры на лету
func (s *Session) SetCameraConfig(cfg camera.CameraConfig) error {
	if err := s.rig.SetConfig(cfg); err != nil {
		return err
	}
	s.cfg.Camera = cfg
	return nil
}

// End завершает сессию и публикует итог
func (s *Session) End() {
	if s.ended {
		return
	}
	s.ended = true

	s.publish(events.SessionEnded, map[string]interface{}{
		"map":     s.cfg.MapName,
		"ticks":   s.tick,
		"rescued": s.rescued,
		"caught":  s.caught,
	}, 4)
	logging.Info("👋 Сессия на карте «%s» завершена: тиков %d, спасено %d", s.cfg.MapName, s.tick, s.rescued)
}

// --- Опрос состояния ---

// Player возвращает сущность игрока
func (s *Session) Player() *entity.Entity { return s.player }

// Entities возвращает все сущности, кроме игрока
func (s *Session) Entities() []*entity.Entity { return s.entities }

// Grid возвращает сетку сессии
func (s *Session) Grid() *world.VoxelGrid { return s.grid }

// Camera возвращает камерную сборку сессии
func (s *Session) Camera() *camera.Rig { return s.rig }

// Rescued возвращает число спасённых заложников
func (s *Session) Rescued() int { return s.rescued }

// Caught сообщает, пойман ли игрок
func (s *Session) Caught() bool { return s.caught }

// TickCount возвращает число прошедших тиков
func (s *Session) TickCount() uint64 { return s.tick }

// RemainingHostages возвращает число ещё не спасённых заложников
func (s *Session) RemainingHostages() int {
	n := 0
	for _, e := range s.entities {
		if e.Type == entity.TypeHostage && e.StateName() != "rescued" {
			n++
		}
	}
	return n
}

// --- entity.WorldAPI ---

// CanStep проверяет шаг между соседними клетками
func (s *Session) CanStep(from, to vec.Vec2) bool {
	return s.phys.CanStep(from, to)
}

// StepToward возвращает следующую проходимую клетку в сторону цели
func (s *Session) StepToward(from, to vec.Vec2) vec.Vec2 {
	return s.phys.StepToward(from, to)
}

// SurfaceHeight возвращает уровень поверхности клетки
func (s *Session) SurfaceHeight(pos vec.Vec2) int {
	return s.phys.SurfaceHeight(pos)
}

// PlayerCell возвращает клетку игрока
func (s *Session) PlayerCell() vec.Vec2 {
	return s.player.Cell()
}

// SeesPlayer проверяет прямую видимость игрока из клетки from
func (s *Session) SeesPlayer(from vec.Vec2) bool {
	if entity.CellCenter(from).DistanceTo(s.player.Pos) > viewDistance {
		return false
	}

	eye := vec.Vec3{X: from.X, Y: from.Y, Z: s.phys.SurfaceHeight(from)}
	playerEye := vec.Vec3{X: s.player.Cell().X, Y: s.player.Cell().Y, Z: s.player.Level}
	return s.grid.HasLineOfSight(eye, playerEye)
}

// ExtractionCell возвращает клетку зоны эвакуации
func (s *Session) ExtractionCell() vec.Vec2 {
	return s.cfg.Extraction
}

// Notify публикует игровое событие от имени сущности
func (s *Session) Notify(event string, e *entity.Entity) {
	switch event {
	case events.HostageRescued:
		s.rescued++
		logging.Info("✅ Заложник %d спасён (%d всего)", e.ID, s.rescued)
	case events.EnemySpotted:
		logging.Info("🚨 Часовой %d заметил игрока", e.ID)
	}

	s.publish(event, s.entityData(e), 5)
}

// entityData собирает полезную нагрузку события сущности
func (s *Session) entityData(e *entity.Entity) map[string]interface{} {
	cell := e.Cell()
	return map[string]interface{}{
		"entityId": e.ID,
		"type":     e.Type.String(),
		"state":    e.StateName(),
		"x":        cell.X,
		"y":        cell.Y,
		"level":    e.Level,
		"map":      s.cfg.MapName,
	}
}

func (s *Session) publish(name string, data map[string]interface{}, priority int) {
	if err := eventbus.PublishEvent(context.Background(), eventSource, events.New(name, data), priority); err != nil {
		logging.Warn("Не удалось опубликовать событие %s: %v", name, err)
	}
}
