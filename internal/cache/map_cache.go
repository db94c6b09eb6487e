package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/storage"
	"github.com/annel0/voxcity/internal/world"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

// MapCache раздаёт снапшоты карт через горячий кеш. Источником истины
// остаётся MapStore: запись идёт в него синхронно, кеш лишь снимает
// нагрузку с чтения. При промахе снапшот поднимается из хранилища и
// кладётся в кеш с настроенным TTL (Read-Through).
//
// Внимание: repo должен создаваться без собственного invalidator,
// рассылкой уведомлений занимается сам MapCache.
type MapCache struct {
	repo  CacheRepo
	store storage.MapStore
	inv   CacheInvalidator // nil в одноузловой конфигурации
	ttl   time.Duration
}

// NewMapCache создаёт кеш карт поверх repo и store.
// inv может быть nil, тогда уведомления другим узлам не рассылаются.
func NewMapCache(repo CacheRepo, store storage.MapStore, inv CacheInvalidator, ttl time.Duration) *MapCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MapCache{
		repo:  repo,
		store: store,
		inv:   inv,
		ttl:   ttl,
	}
}

// Load возвращает снапшот карты, поднимая его из хранилища при промахе.
// Ошибки кеша не фатальны: при недоступном Redis чтение уходит в
// хранилище напрямую.
func (mc *MapCache) Load(ctx context.Context, name string) (*snapshot.MapSnapshot, error) {
	if name == "" {
		return nil, fmt.Errorf("кеш карт: пустое имя карты")
	}

	key := MapKey(name)
	data, err := mc.repo.Get(ctx, key)
	if err == nil {
		snap, decErr := snapshot.Decode(data)
		if decErr == nil {
			return snap, nil
		}
		// Битую запись выбрасываем и идём в хранилище.
		logging.Warn("Map cache entry for %s is corrupted, evicting: %v", name, decErr)
		_ = mc.repo.Delete(ctx, key)
	} else if !IsCacheMiss(err) {
		logging.Warn("Map cache get failed for %s, falling back to store: %v", name, err)
	}

	snap, err := mc.store.LoadMap(name)
	if err != nil {
		return nil, err
	}

	if encoded, encErr := snap.Encode(); encErr == nil {
		if setErr := mc.repo.Set(ctx, key, encoded, mc.ttl); setErr != nil {
			logging.Warn("Map cache refresh failed for %s: %v", name, setErr)
		}
	}
	return snap, nil
}

// LoadGrid возвращает карту сразу в виде воксельной сетки.
func (mc *MapCache) LoadGrid(ctx context.Context, name string) (*world.VoxelGrid, error) {
	snap, err := mc.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return snap.ToGrid()
}

// Save сохраняет снапшот в хранилище, обновляет кеш и рассылает
// инвалидацию, чтобы другие узлы выбросили устаревшую копию.
func (mc *MapCache) Save(ctx context.Context, snap *snapshot.MapSnapshot) error {
	if snap == nil || snap.Name == "" {
		return fmt.Errorf("кеш карт: снапшот без имени")
	}

	if err := mc.store.SaveMap(snap); err != nil {
		return err
	}

	key := MapKey(snap.Name)
	if encoded, err := snap.Encode(); err == nil {
		if setErr := mc.repo.Set(ctx, key, encoded, mc.ttl); setErr != nil {
			logging.Warn("Map cache refresh failed for %s: %v", snap.Name, setErr)
		}
	}
	mc.publishInvalidation(ctx, key)
	return nil
}

// Delete удаляет карту из хранилища и из кеша.
func (mc *MapCache) Delete(ctx context.Context, name string) error {
	if err := mc.store.DeleteMap(name); err != nil {
		return err
	}

	key := MapKey(name)
	if err := mc.repo.Delete(ctx, key); err != nil {
		logging.Warn("Map cache eviction failed for %s: %v", name, err)
	}
	mc.publishInvalidation(ctx, key)
	return nil
}

// Has проверяет наличие карты: сначала в кеше, затем в хранилище.
func (mc *MapCache) Has(ctx context.Context, name string) (bool, error) {
	if ok, err := mc.repo.Exists(ctx, MapKey(name)); err == nil && ok {
		return true, nil
	}
	return mc.store.HasMap(name)
}

// Names возвращает имена всех карт хранилища.
func (mc *MapCache) Names() ([]string, error) {
	return mc.store.ListMaps()
}

// Warm прогревает кеш перечисленными картами и возвращает число
// успешно загруженных. Отсутствующие карты пропускаются.
func (mc *MapCache) Warm(ctx context.Context, names []string) int {
	warmed := 0
	for _, name := range names {
		if _, err := mc.Load(ctx, name); err != nil {
			logging.Warn("Map cache warm-up skipped %s: %v", name, err)
			continue
		}
		warmed++
	}
	if warmed > 0 {
		logging.Info("Map cache warmed up with %d maps", warmed)
	}
	return warmed
}

// AttachInvalidations подписывает кеш на уведомления других узлов.
// Получив ключ карты, узел выбрасывает локальную копию; собственные
// уведомления отфильтровывает сам invalidator по идентификатору узла.
func (mc *MapCache) AttachInvalidations(ctx context.Context) error {
	if mc.inv == nil {
		return nil
	}
	return mc.inv.SubscribeInvalidations(ctx, func(key string) error {
		if _, ok := ParseMapKey(key); !ok {
			return nil
		}
		evictCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return mc.repo.Delete(evictCtx, key)
	})
}

func (mc *MapCache) publishInvalidation(ctx context.Context, key string) {
	if mc.inv == nil {
		return
	}
	if err := mc.inv.PublishInvalidation(ctx, key); err != nil {
		logging.Warn("Failed to publish map invalidation for %s: %v", key, err)
	}
}
