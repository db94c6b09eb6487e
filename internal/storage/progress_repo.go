package storage

import (
	"context"
	"time"
)

// PlayerProgress — итог игрока на карте: сколько заложников спасено,
// пойман ли игрок и сколько тиков длилась сессия.
type PlayerProgress struct {
	MapName   string    `json:"map_name"`
	Rescued   int       `json:"rescued"`
	Caught    bool      `json:"caught"`
	Ticks     uint64    `json:"ticks"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressRepo определяет интерфейс для сохранения и загрузки прогресса игроков.
// Прогресс привязан к UserID (постоянный идентификатор аккаунта) и имени карты,
// что позволяет хранить результаты между сессиями игры.
type ProgressRepo interface {
	// Save сохраняет итог игрока на карте progress.MapName.
	// Существующая запись для пары (userID, карта) перезаписывается.
	Save(ctx context.Context, userID uint64, progress PlayerProgress) error

	// Load загружает итог игрока на конкретной карте.
	// Возвращает false вторым результатом, если игрок на карте ещё не играл.
	Load(ctx context.Context, userID uint64, mapName string) (PlayerProgress, bool, error)

	// All возвращает все сохранённые итоги пользователя.
	All(ctx context.Context, userID uint64) ([]PlayerProgress, error)

	// Delete удаляет все итоги пользователя (для тестов или сброса).
	Delete(ctx context.Context, userID uint64) error

	// BatchSave сохраняет итоги нескольких игроков одновременно
	// (для автосохранения по завершении раунда).
	BatchSave(ctx context.Context, progress map[uint64]PlayerProgress) error
}
