package citygen

import (
	"fmt"

	"github.com/annel0/voxcity/internal/world"
)

// Имена рецептов для конфигурации, REST API и CLI
const (
	RecipeClassic   = "classic"
	RecipeScattered = "scattered"
	RecipeRuins     = "ruins"
)

// recipeLevels — вертикальный размер карт, которые строят рецепты
const recipeLevels = 6

// Generate строит карту именованным рецептом. seed используется только
// рецептом ruins, остальные детерминированы без сида.
func Generate(recipe string, width, height int, seed int64) (*world.VoxelGrid, []world.Ramp, error) {
	switch recipe {
	case RecipeClassic:
		g, ramps := GenerateClassic(width, height)
		return g, ramps, nil
	case RecipeScattered:
		g, ramps := GenerateScattered(width, height)
		return g, ramps, nil
	case RecipeRuins:
		g, ramps := GenerateRuins(width, height, seed)
		return g, ramps, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный рецепт карты: %q", recipe)
	}
}

// Recipes возвращает список известных рецептов
func Recipes() []string {
	return []string{RecipeClassic, RecipeScattered, RecipeRuins}
}

// buildPerimeterWall обводит карту стеной высотой в один блок (только z=0)
func buildPerimeterWall(g *world.VoxelGrid) {
	w, h := g.Width(), g.Height()
	for x := 0; x < w; x++ {
		g.SetBlock(x, 0, 0, true)
		g.SetBlock(x, h-1, 0, true)
	}
	for y := 0; y < h; y++ {
		g.SetBlock(0, y, 0, true)
		g.SetBlock(w-1, y, 0, true)
	}
}

// GenerateClassic строит карту «стена по периметру + центральный
// пирамидальный комплекс»: большая встроенная пирамида в центре, башни по
// углам, платформы-мосты, четыре малые пирамиды у периметра, две широкие
// пирамиды по бокам центра, платформы разной высоты, арки и малые башни.
// Детерминирован: одинаковые размеры всегда дают одинаковую карту.
func GenerateClassic(width, height int) (*world.VoxelGrid, []world.Ramp) {
	g := world.NewVoxelGrid(width, height, recipeLevels)
	buildPerimeterWall(g)

	cx := width / 2
	cy := height / 2

	// Центральный комплекс
	StepPyramid(g, cx-6, cy-6, 12, world.DirectionSouth, 2, true)

	// Башни по углам
	Tower(g, 2, 2, 5, 3)
	Tower(g, width-5, 2, 5, 3)
	Tower(g, 2, height-5, 5, 3)
	Tower(g, width-5, height-5, 5, 3)

	// Платформы-мосты от угловых башен внутрь
	Platform(g, 5, 2, 7, 3, 2)
	Platform(g, width-12, 2, 7, 3, 2)
	Platform(g, 5, height-5, 7, 3, 2)
	Platform(g, width-12, height-5, 7, 3, 2)

	// Малые пирамиды у периметра, рампы смотрят к центру
	StepPyramid(g, cx-4, 3, 8, world.DirectionNorth, 1, false)
	StepPyramid(g, cx-4, height-11, 8, world.DirectionSouth, 1, false)
	StepPyramid(g, 3, cy-4, 8, world.DirectionEast, 1, false)
	StepPyramid(g, width-11, cy-4, 8, world.DirectionWest, 1, false)

	// Широкие пирамиды по бокам центрального комплекса
	WideStepPyramid(g, cx-17, cy-5, 10, world.DirectionEast, 2, false)
	WideStepPyramid(g, cx+7, cy-5, 10, world.DirectionWest, 2, false)

	// Платформы среднего поля разной высоты
	Platform(g, cx-10, cy-14, 5, 4, 1)
	Platform(g, cx+6, cy-14, 5, 4, 2)
	Platform(g, cx-10, cy+10, 5, 4, 3)
	Platform(g, cx+6, cy+10, 4, 4, 4)

	// Арки
	Arch(g, cx-14, cy+2)
	Arch(g, cx+10, cy-2)
	Arch(g, cx-2, cy+12)

	// Малые башни при угловых
	Tower(g, 6, 6, 3, 2)
	Tower(g, width-8, 6, 3, 2)
	Tower(g, 6, height-8, 3, 2)
	Tower(g, width-8, height-8, 3, 2)

	return g, g.Ramps()
}

// GenerateScattered строит карту «рассеянные структуры»: та же стена по
// периметру и плотный набор структур по фиксированным координатам с
// чередованием встроенных/приставных рамп и их ширины. Детерминирован.
// Раскладка рассчитана на 60×60, на меньших картах края гасятся сеткой.
func GenerateScattered(width, height int) (*world.VoxelGrid, []world.Ramp) {
	g := world.NewVoxelGrid(width, height, recipeLevels)
	buildPerimeterWall(g)

	// Северо-западный квартал
	StepPyramid(g, 8, 8, 12, world.DirectionSouth, 2, true)
	Stairs(g, 2, 14, 6, world.DirectionSouth)
	Pyramid(g, 18, 2)
	Arch(g, 26, 14)

	// Северо-восточный квартал
	WideStepPyramid(g, 30, 6, 12, world.DirectionEast, 2, false)
	StepPyramid(g, 44, 10, 8, world.DirectionNorth, 1, false)
	Tower(g, 50, 4, 5, 3)
	Platform(g, 54, 18, 3, 6, 1)

	// Средняя полоса
	Tower(g, 4, 24, 5, 3)
	Pyramid(g, 14, 26)
	Platform(g, 22, 24, 6, 4, 2)
	Stairs(g, 34, 26, 5, world.DirectionEast)
	Arch(g, 44, 24)
	Pyramid(g, 50, 30)

	// Юго-западный квартал
	StepPyramid(g, 6, 38, 10, world.DirectionEast, 2, false)
	Stairs(g, 10, 52, 4, world.DirectionNorth)
	Platform(g, 18, 54, 8, 3, 3)

	// Юго-восточный квартал
	WideStepPyramid(g, 24, 36, 16, world.DirectionSouth, 2, true)
	Tower(g, 46, 40, 6, 4)
	StepPyramid(g, 42, 50, 6, world.DirectionWest, 1, true)
	Arch(g, 32, 54)
	Tower(g, 52, 52, 4, 2)

	return g, g.Ramps()
}
