package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxcity/internal/world"
	"github.com/annel0/voxcity/internal/world/citygen"
)

func TestFromGrid_MaskEncoding(t *testing.T) {
	g := world.NewVoxelGrid(3, 2, 9)
	g.SetBlock(0, 0, 0, true)
	g.SetBlock(1, 0, 0, true)
	g.SetBlock(1, 0, 2, true)
	for z := 0; z < 9; z++ {
		g.SetBlock(2, 1, z, true)
	}

	snap := FromGrid("test", g)

	assert.Equal(t, "test", snap.Name)
	assert.Equal(t, 3, snap.Width)
	assert.Equal(t, 2, snap.Height)
	assert.Equal(t, citygen.BitmaskLevels, snap.MaxLevels)

	require.Len(t, snap.HeightMap, 2, "По строке маски на каждый ряд сетки")
	assert.Equal(t, uint16(1), snap.HeightMap[0][0], "Один блок на z=0 кодируется битом 0")
	assert.Equal(t, uint16(5), snap.HeightMap[0][1], "Блоки на z=0 и z=2 дают маску 0b101")
	assert.Equal(t, uint16(0), snap.HeightMap[0][2], "Пустая колонна кодируется нулём")
	assert.Equal(t, uint16(511), snap.HeightMap[1][2], "Полная колонна кодируется всеми девятью битами")

	assert.NotNil(t, snap.Blocks)
	assert.Empty(t, snap.Blocks, "Снимок сетки не порождает блоков старого формата")
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestSnapshot_RoundTrip(t *testing.T) {
	g, ramps := citygen.GenerateClassic(32, 32)

	snap := FromGrid("classic-32", g)
	data, err := snap.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	g2, err := decoded.ToGrid()
	require.NoError(t, err)

	assert.Equal(t, 32, g2.Width())
	assert.Equal(t, 32, g2.Height())
	assert.Equal(t, citygen.BitmaskLevels, g2.Levels(), "Загруженная сетка нормализована к потолку формата")

	// Занятость совпадает по всем кодируемым уровням. Чтение выше
	// шестого уровня исходной сетки выходит за её границы и даёт false,
	// что и должно совпасть с пустотой в загруженной.
	for z := 0; z < citygen.BitmaskLevels; z++ {
		for y := 0; y < 32; y++ {
			for x := 0; x < 32; x++ {
				require.Equal(t, g.Occupied(x, y, z), g2.Occupied(x, y, z),
					"Занятость (%d,%d,%d) не пережила цикл сериализации", x, y, z)
			}
		}
	}
	assert.Equal(t, ramps, g2.Ramps(), "Рампы должны пережить цикл сериализации")

	// Повторный снимок загруженной сетки стабилен
	snap2 := FromGrid(snap.Name, g2)
	assert.Equal(t, snap.HeightMap, snap2.HeightMap)
	assert.Equal(t, snap.Ramps, snap2.Ramps)
}

func TestToGrid_PadsShortRows(t *testing.T) {
	snap := &MapSnapshot{
		Name:      "pad",
		Width:     4,
		Height:    3,
		MaxLevels: 9,
		HeightMap: [][]uint16{{1}, {0, 3}},
	}

	g, err := snap.ToGrid()
	require.NoError(t, err)

	assert.Equal(t, 4, g.Width(), "Размер берётся из заголовка, а не из данных")
	assert.Equal(t, 3, g.Height())
	assert.True(t, g.Occupied(0, 0, 0))
	assert.True(t, g.Occupied(1, 1, 0))
	assert.True(t, g.Occupied(1, 1, 1))
	assert.False(t, g.Occupied(3, 2, 0), "Недостающие данные дополняются пустотой")
}

func TestToGrid_RejectsOversizedData(t *testing.T) {
	tooWide := &MapSnapshot{Name: "w", Width: 2, Height: 1, HeightMap: [][]uint16{{1, 2, 3}}}
	_, err := tooWide.ToGrid()
	assert.Error(t, err, "Строка длиннее заявленной ширины должна отклоняться")

	tooTall := &MapSnapshot{Name: "h", Width: 2, Height: 1, HeightMap: [][]uint16{{1}, {2}}}
	_, err = tooTall.ToGrid()
	assert.Error(t, err, "Строк больше заявленной высоты быть не должно")

	zeroWidth := &MapSnapshot{Name: "z", Width: 0, Height: 5}
	_, err = zeroWidth.ToGrid()
	assert.Error(t, err, "Нулевая ширина недопустима")
}

func TestToGrid_AppliesLegacyBlocksAndRamps(t *testing.T) {
	snap := &MapSnapshot{
		Name:   "legacy",
		Width:  4,
		Height: 4,
		Blocks: []LegacyBlock{{X: 1, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 1}, {X: 99, Y: 99, Z: 0}},
		Ramps: []world.Ramp{
			{X: 2, Y: 2, Z: 0, Direction: world.DirectionSouth, Width: 1, Height: 1},
		},
	}

	g, err := snap.ToGrid()
	require.NoError(t, err)

	assert.Equal(t, 2, g.ColumnHeight(1, 1), "Блоки старого формата ложатся поверх масок")
	assert.False(t, g.Occupied(99, 99, 0), "Блок вне сетки тихо игнорируется")

	r, ok := g.RampAt(2, 2, 0)
	require.True(t, ok, "Рампа из снимка должна попасть в сетку")
	assert.Equal(t, world.DirectionSouth, r.Direction)
}

func TestDecode_AcceptsConverterOutput(t *testing.T) {
	doc := `{
		"name": "Ant Attack Original",
		"width": 2,
		"height": 2,
		"maxLevels": 9,
		"heightMap": [[0, 15], [63, 31]],
		"blocks": [],
		"ramps": [],
		"createdAt": "2025-01-01T00:00:00Z"
	}`

	snap, err := Decode([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "Ant Attack Original", snap.Name)
	assert.Equal(t, 2025, snap.CreatedAt.Year())

	g, err := snap.ToGrid()
	require.NoError(t, err)
	assert.Equal(t, 0, g.ColumnHeight(0, 0))
	assert.Equal(t, 4, g.ColumnHeight(1, 0), "Маска 15 занимает уровни 0..3")
	assert.Equal(t, 6, g.ColumnHeight(0, 1), "Маска 63 занимает уровни 0..5")
	assert.Equal(t, 5, g.ColumnHeight(1, 1), "Маска 31 занимает уровни 0..4")
}

func TestDecode_RejectsInvalidDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"битый JSON", `{"name": "x"`},
		{"без имени", `{"width": 2, "height": 2, "maxLevels": 9, "heightMap": []}`},
		{"отрицательная ширина", `{"name": "m", "width": -5, "height": 2, "maxLevels": 9, "heightMap": []}`},
		{"maxLevels выше потолка", `{"name": "m", "width": 2, "height": 2, "maxLevels": 16, "heightMap": []}`},
		{"маска вне девяти бит", `{"name": "m", "width": 1, "height": 1, "maxLevels": 9, "heightMap": [[512]]}`},
		{"неизвестное направление рампы", `{"name": "m", "width": 1, "height": 1, "maxLevels": 9, "heightMap": [[0]],
			"ramps": [{"x": 0, "y": 0, "z": 0, "direction": "up", "width": 1}]}`},
		{"рампа шире двух клеток", `{"name": "m", "width": 1, "height": 1, "maxLevels": 9, "heightMap": [[0]],
			"ramps": [{"x": 0, "y": 0, "z": 0, "direction": "south", "width": 3}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.doc))
			assert.Error(t, err, "Невалидный документ обязан быть отклонён")
		})
	}
}

// Benchmarks

func BenchmarkSnapshot_Decode(b *testing.B) {
	g, _ := citygen.GenerateClassic(60, 60)
	data, err := FromGrid("bench", g).Encode()
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSnapshot_FromGrid(b *testing.B) {
	g, _ := citygen.GenerateClassic(60, 60)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FromGrid("bench", g)
	}
}
