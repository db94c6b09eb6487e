package physics

import (
	"math"

	"github.com/annel0/voxcity/internal/vec"
)

// BoxCollider представляет прямоугольный коллайдер, выровненный по осям.
// Сущности движутся непрерывно, поэтому размеры вещественные.
type BoxCollider struct {
	Width  float64 // Ширина в клетках
	Height float64 // Глубина в клетках
}

// NewBoxCollider создаёт новый коллайдер с указанными размерами
func NewBoxCollider(width, height float64) *BoxCollider {
	return &BoxCollider{
		Width:  width,
		Height: height,
	}
}

// IsPointInside проверяет, находится ли точка внутри коллайдера
func (bc *BoxCollider) IsPointInside(colliderPos, point vec.Vec2Float) bool {
	halfWidth := bc.Width / 2
	halfHeight := bc.Height / 2

	return point.X >= colliderPos.X-halfWidth &&
		point.X < colliderPos.X+halfWidth &&
		point.Y >= colliderPos.Y-halfHeight &&
		point.Y < colliderPos.Y+halfHeight
}

// CheckBoxCollision проверяет пересечение двух коллайдеров
func CheckBoxCollision(pos1 vec.Vec2Float, collider1 *BoxCollider, pos2 vec.Vec2Float, collider2 *BoxCollider) bool {
	halfWidth1 := collider1.Width / 2
	halfHeight1 := collider1.Height / 2
	halfWidth2 := collider2.Width / 2
	halfHeight2 := collider2.Height / 2

	return pos1.X+halfWidth1 > pos2.X-halfWidth2 &&
		pos1.X-halfWidth1 < pos2.X+halfWidth2 &&
		pos1.Y+halfHeight1 > pos2.Y-halfHeight2 &&
		pos1.Y-halfHeight1 < pos2.Y+halfHeight2
}

// FootprintCells возвращает клетки сетки, накрытые коллайдером в позиции pos.
// Интервалы полуоткрытые: грань, лежащая ровно на границе клетки, соседнюю
// клетку не накрывает, поэтому коллайдер 1x1 в центре клетки занимает её одну.
func FootprintCells(pos vec.Vec2Float, collider *BoxCollider) []vec.Vec2 {
	halfWidth := collider.Width / 2
	halfHeight := collider.Height / 2

	minX := int(math.Floor(pos.X - halfWidth))
	maxX := lastCovered(pos.X + halfWidth)
	minY := int(math.Floor(pos.Y - halfHeight))
	maxY := lastCovered(pos.Y + halfHeight)

	// Вырожденный коллайдер на границе клетки накрывает хотя бы одну
	if maxX < minX {
		maxX = minX
	}
	if maxY < minY {
		maxY = minY
	}

	cells := make([]vec.Vec2, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			cells = append(cells, vec.Vec2{X: x, Y: y})
		}
	}
	return cells
}

// lastCovered возвращает последнюю клетку, накрытую полуоткрытым интервалом
// с правой гранью edge
func lastCovered(edge float64) int {
	c := int(math.Floor(edge))
	if float64(c) == edge {
		c--
	}
	return c
}

// CellOf возвращает клетку сетки, в которую попадает вещественная точка
func CellOf(p vec.Vec2Float) vec.Vec2 {
	return vec.Vec2{
		X: int(math.Floor(p.X)),
		Y: int(math.Floor(p.Y)),
	}
}

// CanMoveToPosition проверяет, может ли сущность с указанным коллайдером
// занять позицию. cellChecker решает, проходима ли клетка сетки; проверяются
// все клетки под корпусом коллайдера, так что корпус, зацепивший углом
// соседнюю клетку, упирается в неё целиком.
func CanMoveToPosition(newPos vec.Vec2Float, collider *BoxCollider, cellChecker func(vec.Vec2) bool) bool {
	for _, cell := range FootprintCells(newPos, collider) {
		if !cellChecker(cell) {
			return false
		}
	}
	return true
}
