package citygen

import (
	"github.com/annel0/voxcity/internal/world"
)

// BitmaskLevels — число уровней, кодируемых битовой маской ячейки (z=0..8)
const BitmaskLevels = 9

// LoadBitmask декодирует карту из целочисленных масок: rows[y][x],
// бит z маски — занятость уровня z: occupied(x,y,z) = (mask >> z) & 1.
// Чистое декодирование, рамп не порождает. Неровные строки дополняются
// пустотой до самой длинной.
func LoadBitmask(rows [][]uint16) *world.VoxelGrid {
	height := len(rows)
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	g := world.NewVoxelGrid(width, height, BitmaskLevels)
	for y, row := range rows {
		for x, mask := range row {
			for z := 0; z < BitmaskLevels; z++ {
				if (mask>>z)&1 == 1 {
					g.SetBlock(x, y, z, true)
				}
			}
		}
	}
	return g
}
