// Package storage_adapter связывает постоянные хранилища с интерфейсами
// кеша и даёт файловую реализацию MapStore для инструментов и
// одноузловых запусков без BadgerDB.
package storage_adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/annel0/voxcity/internal/cache"
	"github.com/annel0/voxcity/internal/storage"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

// SnapshotColdStorage адаптирует MapStore к cache.ColdStorage.
// Ключи кеша вида map:<имя> транслируются в операции хранилища карт,
// значениями служат закодированные снапшоты.
type SnapshotColdStorage struct {
	store storage.MapStore
}

var _ cache.ColdStorage = (*SnapshotColdStorage)(nil)

// NewSnapshotColdStorage оборачивает хранилище карт для использования
// за кешем. Хранилище остаётся во владении вызывающего, Close адаптера
// его не закрывает.
func NewSnapshotColdStorage(store storage.MapStore) *SnapshotColdStorage {
	return &SnapshotColdStorage{store: store}
}

// Load загружает закодированный снапшот по ключу кеша.
func (s *SnapshotColdStorage) Load(ctx context.Context, key string) ([]byte, error) {
	name, ok := cache.ParseMapKey(key)
	if !ok {
		return nil, fmt.Errorf("неизвестный ключ кеша карт: %s", key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap, err := s.store.LoadMap(name)
	if err != nil {
		if errors.Is(err, storage.ErrMapNotFound) {
			return nil, cache.ErrCacheMiss
		}
		return nil, err
	}
	return snap.Encode()
}

// Store сохраняет закодированный снапшот в хранилище карт.
// Имя внутри снапшота обязано совпадать с ключом.
func (s *SnapshotColdStorage) Store(ctx context.Context, key string, value []byte) error {
	name, ok := cache.ParseMapKey(key)
	if !ok {
		return fmt.Errorf("неизвестный ключ кеша карт: %s", key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	snap, err := snapshot.Decode(value)
	if err != nil {
		return fmt.Errorf("ключ %s: %w", key, err)
	}
	if snap.Name != name {
		return fmt.Errorf("имя карты в снапшоте (%s) не совпадает с ключом %s", snap.Name, key)
	}
	return s.store.SaveMap(snap)
}

// BatchLoad загружает несколько снапшотов. Отсутствующие карты
// пропускаются, прочие ошибки прерывают загрузку.
func (s *SnapshotColdStorage) BatchLoad(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, err := s.Load(ctx, key)
		if err != nil {
			if cache.IsCacheMiss(err) {
				continue
			}
			return nil, err
		}
		result[key] = data
	}
	return result, nil
}

// BatchStore сохраняет несколько снапшотов по одному.
func (s *SnapshotColdStorage) BatchStore(ctx context.Context, items map[string][]byte) error {
	for key, value := range items {
		if err := s.Store(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// Close ничего не делает: закрытие хранилища остаётся за владельцем.
func (s *SnapshotColdStorage) Close() error {
	return nil
}

// ProgressColdStorage адаптирует ProgressRepo к cache.ColdStorage.
// Ключи вида progress:<игрок>:<карта>, значения - JSON PlayerProgress.
// Через него RedisCache сбрасывает Write-Behind пачки прогресса в
// MariaDB, не зная про типы репозитория.
type ProgressColdStorage struct {
	repo storage.ProgressRepo
}

var _ cache.ColdStorage = (*ProgressColdStorage)(nil)

// NewProgressColdStorage оборачивает репозиторий прогресса для
// использования за кешем.
func NewProgressColdStorage(repo storage.ProgressRepo) *ProgressColdStorage {
	return &ProgressColdStorage{repo: repo}
}

// Load загружает прогресс игрока по ключу кеша.
func (p *ProgressColdStorage) Load(ctx context.Context, key string) ([]byte, error) {
	userID, mapName, ok := cache.ParseProgressKey(key)
	if !ok {
		return nil, fmt.Errorf("неизвестный ключ кеша прогресса: %s", key)
	}

	progress, found, err := p.repo.Load(ctx, userID, mapName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, cache.ErrCacheMiss
	}
	return json.Marshal(progress)
}

// Store сохраняет прогресс игрока. Имя карты внутри записи обязано
// совпадать с ключом.
func (p *ProgressColdStorage) Store(ctx context.Context, key string, value []byte) error {
	userID, mapName, err := p.parseItem(key)
	if err != nil {
		return err
	}

	var progress storage.PlayerProgress
	if err := json.Unmarshal(value, &progress); err != nil {
		return fmt.Errorf("ключ %s: разбор прогресса: %w", key, err)
	}
	if progress.MapName != mapName {
		return fmt.Errorf("имя карты в записи (%s) не совпадает с ключом %s", progress.MapName, key)
	}
	return p.repo.Save(ctx, userID, progress)
}

// BatchLoad загружает несколько записей прогресса.
func (p *ProgressColdStorage) BatchLoad(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, err := p.Load(ctx, key)
		if err != nil {
			if cache.IsCacheMiss(err) {
				continue
			}
			return nil, err
		}
		result[key] = data
	}
	return result, nil
}

// BatchStore сохраняет пачку записей прогресса. По одному игроку на
// пачку запись уходит через BatchSave репозитория, повторные записи
// того же игрока досохраняются по одной.
func (p *ProgressColdStorage) BatchStore(ctx context.Context, items map[string][]byte) error {
	grouped := make(map[uint64]storage.PlayerProgress, len(items))
	type pending struct {
		userID   uint64
		progress storage.PlayerProgress
	}
	var extras []pending

	for key, value := range items {
		userID, mapName, err := p.parseItem(key)
		if err != nil {
			return err
		}

		var progress storage.PlayerProgress
		if err := json.Unmarshal(value, &progress); err != nil {
			return fmt.Errorf("ключ %s: разбор прогресса: %w", key, err)
		}
		if progress.MapName != mapName {
			return fmt.Errorf("имя карты в записи (%s) не совпадает с ключом %s", progress.MapName, key)
		}

		if _, taken := grouped[userID]; taken {
			extras = append(extras, pending{userID: userID, progress: progress})
			continue
		}
		grouped[userID] = progress
	}

	if len(grouped) > 0 {
		if err := p.repo.BatchSave(ctx, grouped); err != nil {
			return err
		}
	}
	for _, e := range extras {
		if err := p.repo.Save(ctx, e.userID, e.progress); err != nil {
			return err
		}
	}
	return nil
}

// Close ничего не делает: закрытие репозитория остаётся за владельцем.
func (p *ProgressColdStorage) Close() error {
	return nil
}

func (p *ProgressColdStorage) parseItem(key string) (uint64, string, error) {
	userID, mapName, ok := cache.ParseProgressKey(key)
	if !ok {
		return 0, "", fmt.Errorf("неизвестный ключ кеша прогресса: %s", key)
	}
	return userID, mapName, nil
}
