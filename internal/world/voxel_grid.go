package world

// VoxelGrid — трехмерная булева сетка занятости города плюс плоский список рамп.
// Хранение — один непрерывный массив с индексом x + y*width + z*width*height.
// Сетка строится один раз при генерации/загрузке и после передачи наружу
// не мутируется; блокировок нет, весь доступ — из одного потока тика.
//
// Все операции чтения и записи проверяют границы: чтение вне сетки возвращает
// false, запись вне сетки — тихий no-op. Это контракт, а не защита: примитивы
// генерации опираются на него, чтобы свободно выходить за край карты.
type VoxelGrid struct {
	width  int
	height int
	levels int
	cells  []bool
	ramps  []Ramp
}

// NewVoxelGrid создает пустую сетку width×height×levels.
// Отрицательные размеры приводятся к нулю.
func NewVoxelGrid(width, height, levels int) *VoxelGrid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if levels < 0 {
		levels = 0
	}
	return &VoxelGrid{
		width:  width,
		height: height,
		levels: levels,
		cells:  make([]bool, width*height*levels),
	}
}

// Width возвращает горизонтальный размер по X
func (g *VoxelGrid) Width() int { return g.width }

// Height возвращает горизонтальный размер по Y
func (g *VoxelGrid) Height() int { return g.height }

// Levels возвращает число вертикальных уровней
func (g *VoxelGrid) Levels() int { return g.levels }

func (g *VoxelGrid) inBounds(x, y, z int) bool {
	return x >= 0 && x < g.width &&
		y >= 0 && y < g.height &&
		z >= 0 && z < g.levels
}

func (g *VoxelGrid) index(x, y, z int) int {
	return x + y*g.width + z*g.width*g.height
}

// SetBlock ставит или убирает блок. Вне границ — no-op.
func (g *VoxelGrid) SetBlock(x, y, z int, present bool) {
	if !g.inBounds(x, y, z) {
		return
	}
	g.cells[g.index(x, y, z)] = present
}

// Occupied сообщает занятость ячейки. Вне границ — всегда false.
func (g *VoxelGrid) Occupied(x, y, z int) bool {
	if !g.inBounds(x, y, z) {
		return false
	}
	return g.cells[g.index(x, y, z)]
}

// AddRamp добавляет рампу в список. Список очищается только заменой сетки.
func (g *VoxelGrid) AddRamp(r Ramp) {
	g.ramps = append(g.ramps, r)
}

// Ramps возвращает список рамп в порядке добавления.
// Слайс принадлежит сетке, вызывающий не должен его менять.
func (g *VoxelGrid) Ramps() []Ramp {
	return g.ramps
}

// RampAt ищет рампу, чья базовая ячейка совпадает с (x,y,z)
func (g *VoxelGrid) RampAt(x, y, z int) (Ramp, bool) {
	for _, r := range g.ramps {
		if r.X == x && r.Y == y && r.Z == z {
			return r, true
		}
	}
	return Ramp{}, false
}

// ColumnHeight возвращает высоту колонны: индекс верхнего занятого уровня + 1,
// 0 для пустой колонны. Вне горизонтальных границ — 0.
func (g *VoxelGrid) ColumnHeight(x, y int) int {
	for z := g.levels - 1; z >= 0; z-- {
		if g.Occupied(x, y, z) {
			return z + 1
		}
	}
	return 0
}

// CountOccupied возвращает число занятых ячеек (статистика для логов и CLI)
func (g *VoxelGrid) CountOccupied() int {
	count := 0
	for _, c := range g.cells {
		if c {
			count++
		}
	}
	return count
}

// Clone возвращает глубокую копию сетки для передачи в другой поток
func (g *VoxelGrid) Clone() *VoxelGrid {
	cp := &VoxelGrid{
		width:  g.width,
		height: g.height,
		levels: g.levels,
		cells:  make([]bool, len(g.cells)),
		ramps:  make([]Ramp, len(g.ramps)),
	}
	copy(cp.cells, g.cells)
	copy(cp.ramps, g.ramps)
	return cp
}
