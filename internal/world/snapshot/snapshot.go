// Package snapshot сериализует воксельные карты в переносимый JSON-формат.
//
// Формат повторяет обменный формат клиента: геометрия колонн кодируется
// 9-битными масками занятости уровней (heightMap), рампы и одиночные блоки
// старого формата хранятся отдельными списками. Входящие документы
// проверяются по JSON-схеме до разбора в структуры.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/annel0/voxcity/internal/world"
	"github.com/annel0/voxcity/internal/world/citygen"
)

// LegacyBlock — одиночный блок старого поблочного формата. Современные
// снимки кодируют геометрию масками и оставляют blocks пустым, но
// загрузчик по-прежнему применяет такие блоки поверх heightMap.
type LegacyBlock struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// MapSnapshot — снимок карты: заголовок с размерами, маски колонн,
// списки блоков и рамп, время создания.
type MapSnapshot struct {
	Name      string        `json:"name"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	MaxLevels int           `json:"maxLevels"`
	HeightMap [][]uint16    `json:"heightMap"`
	Blocks    []LegacyBlock `json:"blocks"`
	Ramps     []world.Ramp  `json:"ramps"`
	CreatedAt time.Time     `json:"createdAt"`
}

// snapshotSchema проверяет структуру документа до анмаршала: размеры
// положительные, маски в диапазоне 9 бит, направления рамп из словаря.
var snapshotSchema = jsonschema.MustCompileString("map_snapshot.schema.json", `{
	"type": "object",
	"required": ["name", "width", "height", "maxLevels", "heightMap"],
	"properties": {
		"name":      {"type": "string", "minLength": 1},
		"width":     {"type": "integer", "minimum": 1},
		"height":    {"type": "integer", "minimum": 1},
		"maxLevels": {"type": "integer", "minimum": 1, "maximum": 9},
		"heightMap": {
			"type": "array",
			"items": {
				"type": "array",
				"items": {"type": "integer", "minimum": 0, "maximum": 511}
			}
		},
		"blocks": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["x", "y", "z"],
				"properties": {
					"x": {"type": "integer", "minimum": 0},
					"y": {"type": "integer", "minimum": 0},
					"z": {"type": "integer", "minimum": 0}
				}
			}
		},
		"ramps": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["x", "y", "z", "direction", "width"],
				"properties": {
					"x":         {"type": "integer"},
					"y":         {"type": "integer"},
					"z":         {"type": "integer", "minimum": 0},
					"direction": {"enum": ["south", "west", "north", "east"]},
					"width":     {"type": "integer", "minimum": 1, "maximum": 2},
					"height":    {"type": "integer", "minimum": 0},
					"isShallow": {"type": "boolean"}
				}
			}
		},
		"createdAt": {"type": "string"}
	}
}`)

// FromGrid снимает текущее состояние сетки. В маски попадают только
// уровни 0..8: более высокие уровни формат не кодирует, и при
// сериализации они теряются.
func FromGrid(name string, g *world.VoxelGrid) *MapSnapshot {
	heightMap := make([][]uint16, g.Height())
	for y := 0; y < g.Height(); y++ {
		row := make([]uint16, g.Width())
		for x := 0; x < g.Width(); x++ {
			row[x] = columnMask(g, x, y)
		}
		heightMap[y] = row
	}

	ramps := make([]world.Ramp, len(g.Ramps()))
	copy(ramps, g.Ramps())

	return &MapSnapshot{
		Name:      name,
		Width:     g.Width(),
		Height:    g.Height(),
		MaxLevels: citygen.BitmaskLevels,
		HeightMap: heightMap,
		Blocks:    []LegacyBlock{},
		Ramps:     ramps,
		CreatedAt: time.Now().UTC(),
	}
}

// columnMask собирает 9-битную маску занятости колонны
func columnMask(g *world.VoxelGrid, x, y int) uint16 {
	var mask uint16
	for z := 0; z < citygen.BitmaskLevels; z++ {
		if g.Occupied(x, y, z) {
			mask |= 1 << z
		}
	}
	return mask
}

// ToGrid восстанавливает сетку из снимка. Сетка после загрузки всегда
// имеет 9 уровней независимо от вертикального размера исходной: это
// потолок формата масок. heightMap короче заявленных размеров
// дополняется пустыми колоннами, длиннее — отклоняется.
func (s *MapSnapshot) ToGrid() (*world.VoxelGrid, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("некорректные размеры карты %dx%d", s.Width, s.Height)
	}
	if len(s.HeightMap) > s.Height {
		return nil, fmt.Errorf("heightMap содержит %d строк при заявленной высоте %d", len(s.HeightMap), s.Height)
	}
	for y, row := range s.HeightMap {
		if len(row) > s.Width {
			return nil, fmt.Errorf("строка %d heightMap содержит %d колонн при заявленной ширине %d", y, len(row), s.Width)
		}
	}

	rows := make([][]uint16, s.Height)
	for y := range rows {
		rows[y] = make([]uint16, s.Width)
		if y < len(s.HeightMap) {
			copy(rows[y], s.HeightMap[y])
		}
	}
	g := citygen.LoadBitmask(rows)

	// Блоки старого формата ложатся поверх масок; выход за границы
	// сетка сама превращает в no-op.
	for _, b := range s.Blocks {
		g.SetBlock(b.X, b.Y, b.Z, true)
	}
	for _, r := range s.Ramps {
		g.AddRamp(r)
	}
	return g, nil
}

// Encode сериализует снимок в JSON
func (s *MapSnapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode разбирает снимок, предварительно проверив документ по схеме.
// Документ с неизвестными полями принимается, с нарушением структуры
// (отрицательные размеры, маска вне 9 бит, неизвестное направление
// рампы) — отклоняется до анмаршала.
func Decode(data []byte) (*MapSnapshot, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("снимок карты: некорректный JSON: %w", err)
	}
	if err := snapshotSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("снимок карты не прошёл проверку схемы: %w", err)
	}

	var snap MapSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("снимок карты: %w", err)
	}
	return &snap, nil
}
