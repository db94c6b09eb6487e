package citygen

import (
	"github.com/annel0/voxcity/internal/util"
	"github.com/annel0/voxcity/internal/world"
)

// GenerateRuins строит «руины»: структуры рассеяны по полю шума Перлина.
// Якоря структур идут по решетке с шагом 4, тип и высота структуры
// выводятся из значения шума в якоре. Один и тот же сид всегда дает
// одну и ту же карту. Рамп рецепт не ставит.
func GenerateRuins(width, height int, seed int64) (*world.VoxelGrid, []world.Ramp) {
	g := world.NewVoxelGrid(width, height, recipeLevels)
	buildPerimeterWall(g)

	noise := util.NewNoiseField(seed)
	const scale = 0.08

	for y := 2; y < height-2; y += 4 {
		for x := 2; x < width-2; x += 4 {
			v := noise.At(float64(x)*scale, float64(y)*scale)

			switch {
			case v > 0.80:
				h := 2 + int((v-0.80)*25)
				if h > recipeLevels-1 {
					h = recipeLevels - 1
				}
				Tower(g, x, y, h, 2)
			case v > 0.72:
				Platform(g, x, y, 3, 3, 2)
			case v > 0.65:
				Pyramid(g, x, y)
			}
		}
	}

	return g, g.Ramps()
}
