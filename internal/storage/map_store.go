package storage

import (
	"regexp"

	"github.com/annel0/voxcity/internal/world"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

// MapStore определяет интерфейс постоянного хранилища карт.
// Реализуется MapStorage (BadgerDB) и файловым хранилищем из
// storage_adapter; кеш и REST-слой работают только через этот
// интерфейс, поэтому бэкенд выбирается конфигурацией.
type MapStore interface {
	// SaveMap сохраняет снапшот карты. Существующая карта с тем же
	// именем перезаписывается.
	SaveMap(snap *snapshot.MapSnapshot) error

	// LoadMap загружает снапшот карты по имени.
	// Возвращает ErrMapNotFound, если карты нет.
	LoadMap(name string) (*snapshot.MapSnapshot, error)

	// LoadGrid загружает карту и сразу разворачивает её в воксельную сетку.
	LoadGrid(name string) (*world.VoxelGrid, error)

	// HasMap проверяет наличие карты.
	HasMap(name string) (bool, error)

	// DeleteMap удаляет карту. Возвращает ErrMapNotFound, если карты нет.
	DeleteMap(name string) error

	// ListMaps возвращает имена всех карт в лексикографическом порядке.
	ListMaps() ([]string, error)
}

// Имя карты попадает в ключи кеша, имена файлов и URL, поэтому
// ограничено безопасным алфавитом.
var mapNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidMapName сообщает, допустимо ли имя карты: латиница, цифры,
// дефис и подчёркивание, от 1 до 64 символов, без ведущих спецсимволов.
func ValidMapName(name string) bool {
	return mapNameRe.MatchString(name)
}
