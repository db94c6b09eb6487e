package world

import "github.com/annel0/voxcity/internal/vec"

// lineIterator3D шагает по ячейкам сетки вдоль трехмерного отрезка
// (алгоритм Брезенхэма с доминантной осью и двумя термами ошибки).
type lineIterator3D struct {
	cur, target vec.Vec3
	dx, dy, dz  int
	sx, sy, sz  int
	errXY       int
	errXZ       int
	dominant    int // 0=X, 1=Y, 2=Z
	started     bool
}

func newLineIterator3D(from, to vec.Vec3) *lineIterator3D {
	it := &lineIterator3D{cur: from, target: to}

	it.dx = absInt(to.X - from.X)
	it.dy = absInt(to.Y - from.Y)
	it.dz = absInt(to.Z - from.Z)

	it.sx = stepSign(from.X, to.X)
	it.sy = stepSign(from.Y, to.Y)
	it.sz = stepSign(from.Z, to.Z)

	// Доминантная ось и начальные термы ошибки
	switch {
	case it.dx >= it.dy && it.dx >= it.dz:
		it.dominant = 0
		it.errXY = it.dx / 2
		it.errXZ = it.dx / 2
	case it.dy >= it.dx && it.dy >= it.dz:
		it.dominant = 1
		it.errXY = it.dy / 2
		it.errXZ = it.dy / 2
	default:
		it.dominant = 2
		it.errXY = it.dz / 2
		it.errXZ = it.dz / 2
	}

	return it
}

// next продвигает итератор; false — когда цель достигнута.
// Первый вызов возвращает стартовую ячейку.
func (it *lineIterator3D) next() bool {
	if !it.started {
		it.started = true
		return true
	}

	if it.cur.Equals(it.target) {
		return false
	}

	switch it.dominant {
	case 0: // X доминирует
		it.cur.X += it.sx
		it.errXY += it.dy
		if it.errXY >= it.dx {
			it.cur.Y += it.sy
			it.errXY -= it.dx
		}
		it.errXZ += it.dz
		if it.errXZ >= it.dx {
			it.cur.Z += it.sz
			it.errXZ -= it.dx
		}

	case 1: // Y доминирует
		it.cur.Y += it.sy
		it.errXY += it.dx
		if it.errXY >= it.dy {
			it.cur.X += it.sx
			it.errXY -= it.dy
		}
		it.errXZ += it.dz
		if it.errXZ >= it.dy {
			it.cur.Z += it.sz
			it.errXZ -= it.dy
		}

	case 2: // Z доминирует
		it.cur.Z += it.sz
		it.errXY += it.dx
		if it.errXY >= it.dz {
			it.cur.X += it.sx
			it.errXY -= it.dz
		}
		it.errXZ += it.dy
		if it.errXZ >= it.dz {
			it.cur.Y += it.sy
			it.errXZ -= it.dz
		}
	}

	return true
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func stepSign(from, to int) int {
	if from < to {
		return 1
	}
	return -1
}

// Raycast идет по отрезку от from к to и возвращает первую занятую ячейку
// строго между концами. Сами концы не проверяются: сущность в целевой
// ячейке не должна загораживать луч на саму себя.
func (g *VoxelGrid) Raycast(from, to vec.Vec3) (vec.Vec3, bool) {
	it := newLineIterator3D(from, to)
	for it.next() {
		cell := it.cur
		if cell.Equals(from) || cell.Equals(to) {
			continue
		}
		if g.Occupied(cell.X, cell.Y, cell.Z) {
			return cell, true
		}
	}
	return vec.Vec3{}, false
}

// HasLineOfSight сообщает, свободна ли прямая между двумя ячейками
func (g *VoxelGrid) HasLineOfSight(a, b vec.Vec3) bool {
	_, hit := g.Raycast(a, b)
	return !hit
}
