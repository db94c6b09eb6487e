package world

import (
	"testing"

	"github.com/annel0/voxcity/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoxelGrid_Creation(t *testing.T) {
	// Тест создания пустой сетки
	g := NewVoxelGrid(10, 8, 6)

	require.NotNil(t, g, "Сетка должна быть создана")
	assert.Equal(t, 10, g.Width(), "Ширина должна совпадать")
	assert.Equal(t, 8, g.Height(), "Глубина должна совпадать")
	assert.Equal(t, 6, g.Levels(), "Число уровней должно совпадать")
	assert.Equal(t, 0, g.CountOccupied(), "Новая сетка должна быть пустой")
	assert.Empty(t, g.Ramps(), "Список рамп должен быть пустым")
}

func TestVoxelGrid_SetAndGet(t *testing.T) {
	// Тест установки и чтения блоков
	g := NewVoxelGrid(4, 4, 4)

	g.SetBlock(1, 2, 3, true)
	assert.True(t, g.Occupied(1, 2, 3), "Установленный блок должен читаться")
	assert.False(t, g.Occupied(2, 1, 3), "Соседняя ячейка должна быть пустой")

	g.SetBlock(1, 2, 3, false)
	assert.False(t, g.Occupied(1, 2, 3), "Снятый блок должен исчезнуть")
}

func TestVoxelGrid_BoundsSafety(t *testing.T) {
	// Тест пермиссивности границ: чтение вне сетки — false, запись — no-op
	g := NewVoxelGrid(6, 6, 3)

	outside := [][3]int{
		{-1, 0, 0}, {0, -1, 0}, {0, 0, -1},
		{6, 0, 0}, {0, 6, 0}, {0, 0, 3},
		{60, 60, 30}, {-60, -60, -30},
	}

	for _, c := range outside {
		assert.False(t, g.Occupied(c[0], c[1], c[2]),
			"Чтение вне границ (%d,%d,%d) должно возвращать false", c[0], c[1], c[2])
		g.SetBlock(c[0], c[1], c[2], true)
	}

	assert.Equal(t, 0, g.CountOccupied(), "Записи вне границ не должны менять сетку")
}

func TestVoxelGrid_ZeroSize(t *testing.T) {
	// Тест вырожденных размеров
	g := NewVoxelGrid(0, 0, 0)
	assert.False(t, g.Occupied(0, 0, 0), "Пустая сетка всегда возвращает false")
	g.SetBlock(0, 0, 0, true)
	assert.Equal(t, 0, g.CountOccupied(), "Запись в пустую сетку — no-op")

	neg := NewVoxelGrid(-5, 3, -1)
	assert.Equal(t, 0, neg.Width(), "Отрицательная ширина приводится к нулю")
	assert.Equal(t, 0, neg.Levels(), "Отрицательные уровни приводятся к нулю")
}

func TestVoxelGrid_Ramps(t *testing.T) {
	// Тест списка рамп: порядок добавления сохраняется
	g := NewVoxelGrid(8, 8, 4)

	r1 := Ramp{X: 1, Y: 2, Z: 0, Direction: DirectionSouth, Width: 2, Height: 3, IsShallow: false}
	r2 := Ramp{X: 3, Y: 4, Z: 1, Direction: DirectionEast, Width: 1, Height: 3, IsShallow: true}

	g.AddRamp(r1)
	g.AddRamp(r2)

	ramps := g.Ramps()
	require.Len(t, ramps, 2, "Должно быть две рампы")
	assert.Equal(t, r1, ramps[0], "Первая рампа должна сохранить порядок")
	assert.Equal(t, r2, ramps[1], "Вторая рампа должна сохранить порядок")

	found, ok := g.RampAt(3, 4, 1)
	require.True(t, ok, "Рампа по базовой ячейке должна находиться")
	assert.Equal(t, r2, found, "Найденная рампа должна совпадать")

	_, ok = g.RampAt(5, 5, 0)
	assert.False(t, ok, "Несуществующая рампа не должна находиться")
}

func TestVoxelGrid_ColumnHeight(t *testing.T) {
	// Тест высоты колонны
	g := NewVoxelGrid(4, 4, 6)

	assert.Equal(t, 0, g.ColumnHeight(2, 2), "Пустая колонна имеет высоту 0")

	g.SetBlock(2, 2, 0, true)
	g.SetBlock(2, 2, 1, true)
	g.SetBlock(2, 2, 4, true)
	assert.Equal(t, 5, g.ColumnHeight(2, 2), "Высота — верхний занятый уровень + 1")

	assert.Equal(t, 0, g.ColumnHeight(-1, 100), "Вне границ высота 0")
}

func TestVoxelGrid_Clone(t *testing.T) {
	// Тест независимости копии
	g := NewVoxelGrid(4, 4, 2)
	g.SetBlock(1, 1, 0, true)
	g.AddRamp(Ramp{X: 1, Y: 0, Z: 0, Direction: DirectionNorth, Width: 1, Height: 1})

	cp := g.Clone()
	require.True(t, cp.Occupied(1, 1, 0), "Копия должна содержать блоки оригинала")
	require.Len(t, cp.Ramps(), 1, "Копия должна содержать рампы оригинала")

	cp.SetBlock(2, 2, 1, true)
	cp.AddRamp(Ramp{X: 2, Y: 2, Z: 1})

	assert.False(t, g.Occupied(2, 2, 1), "Изменение копии не должно трогать оригинал")
	assert.Len(t, g.Ramps(), 1, "Рампы оригинала не должны меняться")
}

func TestDirection_Strings(t *testing.T) {
	// Тест сериализации направлений
	for _, d := range []Direction{DirectionSouth, DirectionWest, DirectionNorth, DirectionEast} {
		parsed, err := ParseDirection(d.String())
		require.NoError(t, err, "Направление %v должно разбираться из своей строки", d)
		assert.Equal(t, d, parsed, "Round-trip направления должен сохранять значение")
	}

	_, err := ParseDirection("up")
	assert.Error(t, err, "Неизвестная строка должна давать ошибку")
}

func TestDirection_Outward(t *testing.T) {
	// Тест нормалей граней
	assert.Equal(t, vec.Vec2{X: 0, Y: -1}, DirectionSouth.Outward(), "Юг — шаг в -Y")
	assert.Equal(t, vec.Vec2{X: -1, Y: 0}, DirectionWest.Outward(), "Запад — шаг в -X")
	assert.Equal(t, vec.Vec2{X: 0, Y: 1}, DirectionNorth.Outward(), "Север — шаг в +Y")
	assert.Equal(t, vec.Vec2{X: 1, Y: 0}, DirectionEast.Outward(), "Восток — шаг в +X")
}

func TestVoxelGrid_RaycastClear(t *testing.T) {
	// Тест луча по пустой сетке
	g := NewVoxelGrid(20, 20, 5)

	from := vec.Vec3{X: 1, Y: 1, Z: 1}
	to := vec.Vec3{X: 15, Y: 9, Z: 1}

	_, hit := g.Raycast(from, to)
	assert.False(t, hit, "Луч по пустой сетке не должен встречать препятствий")
	assert.True(t, g.HasLineOfSight(from, to), "Прямая видимость по пустой сетке")
}

func TestVoxelGrid_RaycastBlocked(t *testing.T) {
	// Тест перекрытого луча: стена поперек горизонтальной прямой
	g := NewVoxelGrid(20, 20, 5)
	for y := 0; y < 20; y++ {
		g.SetBlock(10, y, 1, true)
	}

	from := vec.Vec3{X: 2, Y: 5, Z: 1}
	to := vec.Vec3{X: 18, Y: 5, Z: 1}

	at, hit := g.Raycast(from, to)
	require.True(t, hit, "Луч должен упереться в стену")
	assert.Equal(t, vec.Vec3{X: 10, Y: 5, Z: 1}, at, "Точка попадания — ячейка стены")
	assert.False(t, g.HasLineOfSight(from, to), "Видимости через стену нет")
}

func TestVoxelGrid_RaycastIgnoresEndpoints(t *testing.T) {
	// Тест исключения концов: занятые концы отрезка не считаются препятствием
	g := NewVoxelGrid(10, 10, 3)
	g.SetBlock(1, 1, 0, true)
	g.SetBlock(8, 1, 0, true)

	from := vec.Vec3{X: 1, Y: 1, Z: 0}
	to := vec.Vec3{X: 8, Y: 1, Z: 0}

	assert.True(t, g.HasLineOfSight(from, to), "Концы отрезка не загораживают луч")
}

func TestVoxelGrid_RaycastDiagonal(t *testing.T) {
	// Тест диагонального луча с подъемом
	g := NewVoxelGrid(10, 10, 10)
	from := vec.Vec3{X: 0, Y: 0, Z: 0}
	to := vec.Vec3{X: 9, Y: 9, Z: 9}

	assert.True(t, g.HasLineOfSight(from, to), "Диагональ по пустой сетке свободна")

	// Блок на середине диагонали
	g.SetBlock(5, 5, 5, true)
	at, hit := g.Raycast(from, to)
	require.True(t, hit, "Диагональный луч должен упереться в блок")
	assert.Equal(t, vec.Vec3{X: 5, Y: 5, Z: 5}, at, "Попадание в центр диагонали")
}

// Benchmarks

func BenchmarkVoxelGrid_SetBlock(b *testing.B) {
	g := NewVoxelGrid(128, 128, 9)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.SetBlock(i%128, (i/128)%128, i%9, true)
	}
}

func BenchmarkVoxelGrid_Occupied(b *testing.B) {
	g := NewVoxelGrid(128, 128, 9)
	for x := 0; x < 128; x++ {
		for y := 0; y < 128; y++ {
			g.SetBlock(x, y, 0, (x+y)%2 == 0)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Occupied(i%128, (i/128)%128, 0)
	}
}

func BenchmarkVoxelGrid_Raycast(b *testing.B) {
	g := NewVoxelGrid(64, 64, 9)
	for y := 0; y < 64; y++ {
		g.SetBlock(32, y, 1, true)
	}
	from := vec.Vec3{X: 1, Y: 30, Z: 1}
	to := vec.Vec3{X: 62, Y: 33, Z: 1}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Raycast(from, to)
	}
}
