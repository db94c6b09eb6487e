package citygen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBitmask_Decode(t *testing.T) {
	// Тест декодирования масок: бит z — занятость уровня z
	rows := [][]uint16{
		{1, 3},   // (0,0): z0; (1,0): z0,z1
		{0, 65},  // (0,1): пусто; (1,1): z0 и z6
		{256, 0}, // (0,2): только z8
	}

	g := LoadBitmask(rows)

	require.Equal(t, 2, g.Width(), "Ширина — самая длинная строка")
	require.Equal(t, 3, g.Height(), "Высота — число строк")
	require.Equal(t, 9, g.Levels(), "Маска кодирует 9 уровней")

	assert.True(t, g.Occupied(0, 0, 0), "Маска 1 — занят только z0")
	assert.False(t, g.Occupied(0, 0, 1), "Маска 1 — выше пусто")

	assert.True(t, g.Occupied(1, 0, 0), "Маска 3 — занят z0")
	assert.True(t, g.Occupied(1, 0, 1), "Маска 3 — занят z1")
	assert.False(t, g.Occupied(1, 0, 2), "Маска 3 — z2 пуст")

	assert.False(t, g.Occupied(0, 1, 0), "Маска 0 — колонна пуста")

	assert.True(t, g.Occupied(1, 1, 0), "Маска 65 — занят z0")
	assert.False(t, g.Occupied(1, 1, 3), "Маска 65 — середина пуста")
	assert.True(t, g.Occupied(1, 1, 6), "Маска 65 — занят z6")

	assert.True(t, g.Occupied(0, 2, 8), "Маска 256 — занят верхний уровень z8")
	assert.False(t, g.Occupied(0, 2, 0), "Маска 256 — низ пуст")

	assert.Empty(t, g.Ramps(), "Загрузчик масок не порождает рамп")
}

func TestLoadBitmask_FullColumn(t *testing.T) {
	// Тест полной колонны: маска 511 занимает все 9 уровней
	g := LoadBitmask([][]uint16{{511}})

	for z := 0; z < 9; z++ {
		assert.True(t, g.Occupied(0, 0, z), "Маска 511 занимает уровень %d", z)
	}
}

func TestLoadBitmask_RaggedRows(t *testing.T) {
	// Тест неровных строк: короткие строки дополняются пустотой
	rows := [][]uint16{
		{1, 1, 1},
		{1},
	}

	g := LoadBitmask(rows)

	require.Equal(t, 3, g.Width(), "Ширина — по самой длинной строке")
	assert.True(t, g.Occupied(0, 1, 0), "Начало короткой строки занято")
	assert.False(t, g.Occupied(1, 1, 0), "Хвост короткой строки пуст")
	assert.False(t, g.Occupied(2, 1, 0), "Хвост короткой строки пуст")
}

func TestLoadBitmask_Empty(t *testing.T) {
	// Тест пустого входа
	g := LoadBitmask(nil)

	assert.Equal(t, 0, g.Width(), "Пустой вход — пустая сетка")
	assert.Equal(t, 0, g.Height(), "Пустой вход — пустая сетка")
	assert.False(t, g.Occupied(0, 0, 0), "Чтение пустой сетки безопасно")
}
