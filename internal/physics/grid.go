package physics

import (
	"github.com/annel0/voxcity/internal/vec"
	"github.com/annel0/voxcity/internal/world"
)

// GridPhysics отвечает на вопросы проходимости поверх воксельной сетки.
// Модель дискретная: сущность стоит на вершине колонки. Подъём на один
// уровень возможен только через рампу на одной из двух клеток шага,
// спуск и ход по ровному свободны, подъём на два и больше запрещён.
//
// Встроенные рампы генератора вырезают клетку стены, поэтому колонка
// рампы всегда ровно на уровень ниже соседней ступени: лестница из рамп
// проходится серией шагов +1.
type GridPhysics struct {
	grid *world.VoxelGrid
}

// NewGridPhysics создаёт слой проходимости над сеткой
func NewGridPhysics(grid *world.VoxelGrid) *GridPhysics {
	return &GridPhysics{grid: grid}
}

// Grid возвращает подлежащую сетку
func (p *GridPhysics) Grid() *world.VoxelGrid {
	return p.grid
}

// InBounds проверяет, что клетка лежит внутри сетки
func (p *GridPhysics) InBounds(pos vec.Vec2) bool {
	return pos.X >= 0 && pos.X < p.grid.Width() &&
		pos.Y >= 0 && pos.Y < p.grid.Height()
}

// SurfaceHeight возвращает уровень поверхности колонки (0 — земля)
func (p *GridPhysics) SurfaceHeight(pos vec.Vec2) int {
	return p.grid.ColumnHeight(pos.X, pos.Y)
}

// RampOnSurface возвращает рампу, лежащую на вершине колонки, или nil
func (p *GridPhysics) RampOnSurface(pos vec.Vec2) *world.Ramp {
	r, ok := p.grid.RampAt(pos.X, pos.Y, p.SurfaceHeight(pos))
	if !ok {
		return nil
	}
	return &r
}

// CanStep проверяет шаг между двумя клетками. Соседство не проверяется:
// вызывающий шагает по одной клетке за раз.
func (p *GridPhysics) CanStep(from, to vec.Vec2) bool {
	if !p.InBounds(to) {
		return false
	}

	climb := p.SurfaceHeight(to) - p.SurfaceHeight(from)
	if climb <= 0 {
		return true
	}
	if climb > 1 {
		return false
	}

	// Подъём на уровень: нужна рампа на исходной или целевой клетке
	return p.RampOnSurface(from) != nil || p.RampOnSurface(to) != nil
}

// StepToward возвращает следующую клетку жадного шага из from в сторону to.
// Сначала пробуется доминирующая ось, затем вторая; если обе заблокированы,
// сущность остаётся на месте.
func (p *GridPhysics) StepToward(from, to vec.Vec2) vec.Vec2 {
	if from.Equals(to) {
		return from
	}

	stepX := vec.Vec2{X: from.X + sign(to.X-from.X), Y: from.Y}
	stepY := vec.Vec2{X: from.X, Y: from.Y + sign(to.Y-from.Y)}

	candidates := []vec.Vec2{stepX, stepY}
	if abs(to.Y-from.Y) > abs(to.X-from.X) {
		candidates = []vec.Vec2{stepY, stepX}
	}

	for _, c := range candidates {
		if c.Equals(from) {
			continue
		}
		if p.CanStep(from, c) {
			return c
		}
	}

	return from
}

// WalkableFor возвращает проверку клеток для CanMoveToPosition: клетка
// проходима, если её поверхность не выше уровня сущности
func (p *GridPhysics) WalkableFor(level int) func(vec.Vec2) bool {
	return func(pos vec.Vec2) bool {
		if !p.InBounds(pos) {
			return false
		}
		return p.SurfaceHeight(pos) <= level
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
