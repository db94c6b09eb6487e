package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/storage"
)

// ProgressCache держит горячие записи прогресса игроков поверх
// ProgressRepo. Запись идёт в репозиторий синхронно, чтобы итог
// сессии не потерялся при падении узла; кеш ускоряет повторные
// чтения при выдаче таблиц и карточек игрока.
type ProgressCache struct {
	repo     CacheRepo
	progress storage.ProgressRepo
	ttl      time.Duration
}

// NewProgressCache создаёт кеш прогресса. ttl <= 0 заменяется на минуту.
func NewProgressCache(repo CacheRepo, progress storage.ProgressRepo, ttl time.Duration) *ProgressCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ProgressCache{
		repo:     repo,
		progress: progress,
		ttl:      ttl,
	}
}

// Save сохраняет итог игрока и обновляет кеш.
func (pc *ProgressCache) Save(ctx context.Context, userID uint64, p storage.PlayerProgress) error {
	if err := pc.progress.Save(ctx, userID, p); err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("кеш прогресса: сериализация: %w", err)
	}
	if err := pc.repo.Set(ctx, ProgressKey(userID, p.MapName), data, pc.ttl); err != nil {
		logging.Warn("Progress cache refresh failed for user %d: %v", userID, err)
	}
	return nil
}

// Load возвращает итог игрока на карте, при промахе поднимая его из
// репозитория. Вторым результатом сообщает, играл ли игрок на карте.
func (pc *ProgressCache) Load(ctx context.Context, userID uint64, mapName string) (storage.PlayerProgress, bool, error) {
	key := ProgressKey(userID, mapName)

	data, err := pc.repo.Get(ctx, key)
	if err == nil {
		var p storage.PlayerProgress
		if decErr := json.Unmarshal(data, &p); decErr == nil {
			return p, true, nil
		}
		_ = pc.repo.Delete(ctx, key)
	} else if !IsCacheMiss(err) {
		logging.Warn("Progress cache get failed for user %d: %v", userID, err)
	}

	p, found, err := pc.progress.Load(ctx, userID, mapName)
	if err != nil || !found {
		return storage.PlayerProgress{}, false, err
	}

	if data, encErr := json.Marshal(p); encErr == nil {
		_ = pc.repo.Set(ctx, key, data, pc.ttl)
	}
	return p, true, nil
}

// All возвращает итоги игрока по всем картам напрямую из репозитория.
// Списки не кешируются, они нужны только карточке игрока.
func (pc *ProgressCache) All(ctx context.Context, userID uint64) ([]storage.PlayerProgress, error) {
	return pc.progress.All(ctx, userID)
}

// Delete удаляет весь прогресс игрока и выбрасывает связанные записи
// из кеша.
func (pc *ProgressCache) Delete(ctx context.Context, userID uint64) error {
	list, err := pc.progress.All(ctx, userID)
	if err != nil {
		return err
	}
	if err := pc.progress.Delete(ctx, userID); err != nil {
		return err
	}
	for _, p := range list {
		if err := pc.repo.Delete(ctx, ProgressKey(userID, p.MapName)); err != nil {
			logging.Warn("Progress cache eviction failed for user %d map %s: %v", userID, p.MapName, err)
		}
	}
	return nil
}
