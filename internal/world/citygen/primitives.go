// Package citygen строит воксельные города: библиотека конструктивных
// примитивов (башни, платформы, лестницы, арки, пирамиды) поверх
// world.VoxelGrid и именованные рецепты, собирающие из примитивов целую
// карту. Все примитивы — тотальные функции: вырожденные размеры дают
// пустые циклы, выход за край карты гасится пермиссивной сеткой.
package citygen

import (
	"github.com/annel0/voxcity/internal/world"
)

// fillBox заполняет прямоугольный объем [x..x+w-1]×[y..y+d-1]×[z0..z1]
func fillBox(g *world.VoxelGrid, x, y, w, d, z0, z1 int) {
	for dz := z0; dz <= z1; dz++ {
		for dy := 0; dy < d; dy++ {
			for dx := 0; dx < w; dx++ {
				g.SetBlock(x+dx, y+dy, dz, true)
			}
		}
	}
}

// Tower ставит сплошную башню baseSize×baseSize высотой height.
// (x,y) — угол основания с минимальными координатами.
func Tower(g *world.VoxelGrid, x, y, height, baseSize int) {
	fillBox(g, x, y, baseSize, baseSize, 0, height-1)
}

// Platform ставит сплошную платформу width×depth высотой height
func Platform(g *world.VoxelGrid, x, y, width, depth, height int) {
	fillBox(g, x, y, width, depth, 0, height-1)
}

// Stairs строит восходящую лестницу из сплошных колонн: колонна i вдоль
// направления dir имеет высоту min(i+1, levels-1). Верхний уровень сетки
// лестница никогда не занимает.
func Stairs(g *world.VoxelGrid, x, y, length int, dir world.Direction) {
	step := dir.Outward()
	for i := 0; i < length; i++ {
		cx := x + step.X*i
		cy := y + step.Y*i
		h := i + 1
		if max := g.Levels() - 1; h > max {
			h = max
		}
		for z := 0; z < h; z++ {
			g.SetBlock(cx, cy, z, true)
		}
	}
}

// Arch строит проходную арку: сплошной куб 4×4×4, сквозь который по оси X
// прорезан туннель шириной 4, глубиной 2 (средние позиции 1–2 по Y)
// и высотой 2 (z=0..1).
func Arch(g *world.VoxelGrid, x, y int) {
	fillBox(g, x, y, 4, 4, 0, 3)
	for dz := 0; dz <= 1; dz++ {
		for dy := 1; dy <= 2; dy++ {
			for dx := 0; dx < 4; dx++ {
				g.SetBlock(x+dx, y+dy, dz, false)
			}
		}
	}
}

// Pyramid строит трехъярусную пирамиду старого образца: основание 5×3,
// концентрический ярус 3×3 и вершина 1×1. Без рамп.
func Pyramid(g *world.VoxelGrid, x, y int) {
	fillBox(g, x, y, 5, 3, 0, 0)
	fillBox(g, x+1, y, 3, 3, 1, 1)
	g.SetBlock(x+2, y+1, 2, true)
}

// StepPyramid строит ступенчатую пирамиду: уровень L — центрированный
// квадрат со стороной size-2L на высоте L, смещенный внутрь на L по обеим
// осям. После постройки на каждом уровне ставится рампа ширины rampWidth
// на грани rampDir. Соседние уровни отступают на 1 ячейку, поэтому рампы
// образуют лестницу с уклоном 1:1.
func StepPyramid(g *world.VoxelGrid, x, y, size int, rampDir world.Direction, rampWidth int, embedded bool) {
	buildStepPyramid(g, x, y, size, 2, rampDir, rampWidth, embedded, false)
}

// WideStepPyramid строит широкую ступенчатую пирамиду: уровень L сжимается
// на 4 (по 2 с каждой стороны), плато шире, а рампы помечаются пологими —
// грань отступает на 2 ячейки на уровень, уклон 2:1.
func WideStepPyramid(g *world.VoxelGrid, x, y, size int, rampDir world.Direction, rampWidth int, embedded bool) {
	buildStepPyramid(g, x, y, size, 4, rampDir, rampWidth, embedded, true)
}

// buildStepPyramid — общий колодец обеих пирамид. shrink — на сколько
// сжимается сторона на каждом уровне (2 или 4).
func buildStepPyramid(g *world.VoxelGrid, x, y, size, shrink int, rampDir world.Direction, rampWidth int, embedded bool, shallow bool) {
	inset := shrink / 2
	actual := stepPyramidHeight(size, shrink)

	// Сначала все уровни целиком
	for level := 0; level < actual; level++ {
		side := size - shrink*level
		ox := x + inset*level
		oy := y + inset*level
		fillBox(g, ox, oy, side, side, level, level)
	}

	// Затем рампы: по одной постановке на уровень
	for level := 0; level < actual; level++ {
		side := size - shrink*level
		ox := x + inset*level
		oy := y + inset*level
		placeLevelRamp(g, ox, oy, side, level, rampDir, rampWidth, embedded, actual, shallow)
	}
}

// stepPyramidHeight возвращает фактическую высоту пирамиды: число уровней
// с положительной стороной до исчерпания size.
func stepPyramidHeight(size, shrink int) int {
	h := 0
	for size-shrink*h > 0 {
		h++
	}
	return h
}
