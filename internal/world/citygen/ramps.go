package citygen

import (
	"github.com/annel0/voxcity/internal/world"
)

// placeLevelRamp ставит сегмент рампы шириной width на грани dir уровня
// пирамиды с началом (ox,oy) и стороной side.
//
// Координата вдоль нормали грани: для встроенной рампы — крайняя занятая
// ячейка грани на этом уровне, для приставной — на одну ячейку наружу.
// Координаты вдоль грани центрируются формулой centerIndex - width/2 + i
// с целочисленным усечением: для четной ширины центрирование асимметрично,
// смещено к младшей стороне. Это поведение зафиксировано тестами.
//
// Встроенная рампа сносит ячейку стены перед добавлением записи — рампа
// физически замещает сегмент стены. Ячейки, выпавшие за границы сетки,
// молча отбрасываются вместе с записью рампы.
func placeLevelRamp(g *world.VoxelGrid, ox, oy, side, level int, dir world.Direction, width int, embedded bool, totalHeight int, shallow bool) {
	for i := 0; i < width; i++ {
		var cx, cy int

		switch dir {
		case world.DirectionSouth:
			cx = ox + side/2 - width/2 + i
			cy = oy
			if !embedded {
				cy = oy - 1
			}
		case world.DirectionNorth:
			cx = ox + side/2 - width/2 + i
			cy = oy + side - 1
			if !embedded {
				cy = oy + side
			}
		case world.DirectionWest:
			cx = ox
			if !embedded {
				cx = ox - 1
			}
			cy = oy + side/2 - width/2 + i
		case world.DirectionEast:
			cx = ox + side - 1
			if !embedded {
				cx = ox + side
			}
			cy = oy + side/2 - width/2 + i
		default:
			continue
		}

		if cx < 0 || cx >= g.Width() || cy < 0 || cy >= g.Height() || level < 0 || level >= g.Levels() {
			continue
		}

		if embedded {
			g.SetBlock(cx, cy, level, false)
		}

		g.AddRamp(world.Ramp{
			X:         cx,
			Y:         cy,
			Z:         level,
			Direction: dir,
			Width:     width,
			Height:    totalHeight,
			IsShallow: shallow,
		})
	}
}
