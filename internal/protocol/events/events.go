// Package events содержит типы и имена игровых событий, гуляющих по шине.
// Имена двухуровневые, «область.событие»; подписчики фильтруются по области.
package events

import (
	"strings"
	"time"
)

// EventType представляет область события
type EventType string

const (
	// EventTypeSystem - системные события
	EventTypeSystem EventType = "system"
	// EventTypeMap - события карт
	EventTypeMap EventType = "map"
	// EventTypeCamera - события камеры
	EventTypeCamera EventType = "camera"
	// EventTypeEntity - события сущностей
	EventTypeEntity EventType = "entity"
	// EventTypeSession - события игровых сессий
	EventTypeSession EventType = "session"
)

const (
	// MapGenerated - карта сгенерирована и доступна в хранилище
	MapGenerated = "map.generated"
	// MapSaved - снапшот карты записан в хранилище
	MapSaved = "map.saved"
	// MapDeleted - карта удалена из хранилища
	MapDeleted = "map.deleted"

	// CameraConfigUpdated - конфигурация камеры обновлена администратором
	CameraConfigUpdated = "camera.config_updated"

	// EnemySpotted - часовой заметил игрока и начал преследование
	EnemySpotted = "entity.enemy_spotted"
	// PlayerCaught - часовой догнал игрока
	PlayerCaught = "entity.player_caught"
	// HostageFollowing - заложник присоединился к игроку
	HostageFollowing = "entity.hostage_following"
	// HostageRescued - заложник доведён до зоны эвакуации
	HostageRescued = "entity.hostage_rescued"

	// SessionStarted - игровая сессия начата
	SessionStarted = "session.started"
	// SessionEnded - игровая сессия завершена
	SessionEnded = "session.ended"
)

// Event представляет базовое событие
type Event struct {
	Type      EventType              `json:"type"`
	Name      string                 `json:"name"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// New создаёт событие с текущей меткой времени
func New(name string, data map[string]interface{}) Event {
	return Event{
		Type:      AreaOf(name),
		Name:      name,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// AreaOf возвращает область из двухуровневого имени события
func AreaOf(name string) EventType {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return EventType(name[:i])
	}
	return EventTypeSystem
}

// MapEvent — полезная нагрузка событий map.*: достаточно имени карты,
// снапшот подписчики поднимают из хранилища сами
type MapEvent struct {
	Name string `json:"name"`
}
