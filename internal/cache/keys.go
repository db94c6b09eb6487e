package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// Схема ключей кеша. Оба пространства живут в одном Redis DB,
// адаптеры Cold Storage по префиксу понимают, в какое хранилище идти.
const (
	mapKeyPrefix      = "map:"
	progressKeyPrefix = "progress:"
)

// MapKey строит ключ кеша для снапшота карты.
func MapKey(name string) string {
	return mapKeyPrefix + name
}

// ParseMapKey извлекает имя карты из ключа кеша.
// Возвращает false, если ключ не относится к картам.
func ParseMapKey(key string) (string, bool) {
	if !strings.HasPrefix(key, mapKeyPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(key, mapKeyPrefix)
	if name == "" {
		return "", false
	}
	return name, true
}

// ProgressKey строит ключ кеша для прогресса игрока на карте.
func ProgressKey(userID uint64, mapName string) string {
	return fmt.Sprintf("%s%d:%s", progressKeyPrefix, userID, mapName)
}

// ParseProgressKey извлекает идентификатор игрока и имя карты из ключа.
// Возвращает false, если ключ не относится к прогрессу.
func ParseProgressKey(key string) (uint64, string, bool) {
	if !strings.HasPrefix(key, progressKeyPrefix) {
		return 0, "", false
	}
	rest := strings.TrimPrefix(key, progressKeyPrefix)
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return 0, "", false
	}
	userID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || userID == 0 {
		return 0, "", false
	}
	return userID, parts[1], true
}
