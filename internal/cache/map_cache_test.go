package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/annel0/voxcity/internal/storage"
	"github.com/annel0/voxcity/internal/world"
	"github.com/annel0/voxcity/internal/world/citygen"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

// fakeMapStore считает обращения к LoadMap, чтобы тесты видели,
// обслужился ли запрос из кеша.
type fakeMapStore struct {
	mu        sync.Mutex
	snaps     map[string]*snapshot.MapSnapshot
	loadCalls int
}

func newFakeMapStore() *fakeMapStore {
	return &fakeMapStore{snaps: make(map[string]*snapshot.MapSnapshot)}
}

func (f *fakeMapStore) SaveMap(snap *snapshot.MapSnapshot) error {
	if snap == nil || snap.Name == "" {
		return fmt.Errorf("снимок карты без имени")
	}
	f.mu.Lock()
	f.snaps[snap.Name] = snap
	f.mu.Unlock()
	return nil
}

func (f *fakeMapStore) LoadMap(name string) (*snapshot.MapSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	snap, ok := f.snaps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrMapNotFound, name)
	}
	return snap, nil
}

func (f *fakeMapStore) LoadGrid(name string) (*world.VoxelGrid, error) {
	snap, err := f.LoadMap(name)
	if err != nil {
		return nil, err
	}
	return snap.ToGrid()
}

func (f *fakeMapStore) HasMap(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.snaps[name]
	return ok, nil
}

func (f *fakeMapStore) DeleteMap(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snaps[name]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrMapNotFound, name)
	}
	delete(f.snaps, name)
	return nil
}

func (f *fakeMapStore) ListMaps() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.snaps))
	for name := range f.snaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeMapStore) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadCalls
}

// fakeInvalidator записывает публикации и позволяет тесту вручную
// доставить "чужое" уведомление через сохранённый обработчик.
type fakeInvalidator struct {
	mu        sync.Mutex
	published []string
	handler   InvalidationHandler
}

func (f *fakeInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	f.mu.Lock()
	f.published = append(f.published, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeInvalidator) SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error {
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	return nil
}

func (f *fakeInvalidator) Close() error { return nil }

func (f *fakeInvalidator) publishedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func (f *fakeInvalidator) deliver(key string) error {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		return nil
	}
	return handler(key)
}

func testSnapshot(t *testing.T, name string) *snapshot.MapSnapshot {
	t.Helper()
	grid, _ := citygen.GenerateScattered(24, 24)
	return snapshot.FromGrid(name, grid)
}

func newTestMapCache(t *testing.T, store storage.MapStore, inv CacheInvalidator) (*MapCache, *MemoryCache) {
	t.Helper()
	repo := NewMemoryCache(nil, 0)
	t.Cleanup(func() { repo.Close() })
	return NewMapCache(repo, store, inv, time.Minute), repo
}

func TestMapCache_ReadThroughCachesSnapshot(t *testing.T) {
	store := newFakeMapStore()
	require.NoError(t, store.SaveMap(testSnapshot(t, "demo")))

	mc, _ := newTestMapCache(t, store, nil)
	ctx := context.Background()

	first, err := mc.Load(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, "demo", first.Name)
	require.Equal(t, 1, store.loadCount())

	second, err := mc.Load(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, first.HeightMap, second.HeightMap)
	require.Equal(t, 1, store.loadCount(), "Повторное чтение обязано обслуживаться из кеша")
}

func TestMapCache_LoadMissingMap(t *testing.T) {
	mc, _ := newTestMapCache(t, newFakeMapStore(), nil)

	_, err := mc.Load(context.Background(), "нет-такой")
	require.ErrorIs(t, err, storage.ErrMapNotFound)
}

func TestMapCache_SaveRefreshesCacheAndPublishes(t *testing.T) {
	store := newFakeMapStore()
	inv := &fakeInvalidator{}
	mc, repo := newTestMapCache(t, store, inv)
	ctx := context.Background()

	require.NoError(t, mc.Save(ctx, testSnapshot(t, "demo")))

	ok, err := store.HasMap("demo")
	require.NoError(t, err)
	require.True(t, ok, "Снапшот обязан попасть в хранилище")

	cached, err := repo.Exists(ctx, MapKey("demo"))
	require.NoError(t, err)
	require.True(t, cached, "Снапшот обязан попасть в кеш при сохранении")

	require.Equal(t, []string{"map:demo"}, inv.publishedKeys())

	// Чтение после сохранения не трогает хранилище вовсе.
	_, err = mc.Load(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, 0, store.loadCount())
}

func TestMapCache_DeleteEvicts(t *testing.T) {
	store := newFakeMapStore()
	inv := &fakeInvalidator{}
	mc, repo := newTestMapCache(t, store, inv)
	ctx := context.Background()

	require.NoError(t, mc.Save(ctx, testSnapshot(t, "demo")))
	require.NoError(t, mc.Delete(ctx, "demo"))

	ok, err := store.HasMap("demo")
	require.NoError(t, err)
	require.False(t, ok)

	cached, err := repo.Exists(ctx, MapKey("demo"))
	require.NoError(t, err)
	require.False(t, cached, "После удаления карты кеш обязан быть пуст")

	require.Equal(t, []string{"map:demo", "map:demo"}, inv.publishedKeys())

	require.ErrorIs(t, mc.Delete(ctx, "demo"), storage.ErrMapNotFound)
}

func TestMapCache_ForeignInvalidationEvicts(t *testing.T) {
	store := newFakeMapStore()
	inv := &fakeInvalidator{}
	mc, repo := newTestMapCache(t, store, inv)
	ctx := context.Background()

	require.NoError(t, mc.AttachInvalidations(ctx))
	require.NoError(t, mc.Save(ctx, testSnapshot(t, "demo")))

	require.NoError(t, inv.deliver(MapKey("demo")))

	cached, err := repo.Exists(ctx, MapKey("demo"))
	require.NoError(t, err)
	require.False(t, cached, "Чужая инвалидация обязана выбросить локальную копию")

	// Ключи других подсистем обработчик молча пропускает.
	require.NoError(t, inv.deliver("progress:1:demo"))
}

func TestMapCache_CorruptedEntryFallsBackToStore(t *testing.T) {
	store := newFakeMapStore()
	require.NoError(t, store.SaveMap(testSnapshot(t, "demo")))

	mc, repo := newTestMapCache(t, store, nil)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, MapKey("demo"), []byte("мусор"), 0))

	snap, err := mc.Load(ctx, "demo")
	require.NoError(t, err, "Битая запись кеша не должна ломать чтение")
	require.Equal(t, "demo", snap.Name)
	require.Equal(t, 1, store.loadCount())

	// Кеш после падения на битой записи обновлён валидным снапшотом.
	data, err := repo.Get(ctx, MapKey("demo"))
	require.NoError(t, err)
	_, err = snapshot.Decode(data)
	require.NoError(t, err)
}

func TestMapCache_LoadGrid(t *testing.T) {
	store := newFakeMapStore()
	require.NoError(t, store.SaveMap(testSnapshot(t, "demo")))

	mc, _ := newTestMapCache(t, store, nil)

	grid, err := mc.LoadGrid(context.Background(), "demo")
	require.NoError(t, err)
	require.Equal(t, 24, grid.Width())
	require.Equal(t, 24, grid.Height())
}

func TestMapCache_WarmSkipsMissing(t *testing.T) {
	store := newFakeMapStore()
	require.NoError(t, store.SaveMap(testSnapshot(t, "alpha")))
	require.NoError(t, store.SaveMap(testSnapshot(t, "beta")))

	mc, repo := newTestMapCache(t, store, nil)
	ctx := context.Background()

	warmed := mc.Warm(ctx, []string{"alpha", "beta", "gamma"})
	require.Equal(t, 2, warmed, "Прогреться обязаны только существующие карты")

	for _, name := range []string{"alpha", "beta"} {
		cached, err := repo.Exists(ctx, MapKey(name))
		require.NoError(t, err)
		require.True(t, cached, "Карта %s обязана быть в кеше после прогрева", name)
	}
}

func TestMapCache_Names(t *testing.T) {
	store := newFakeMapStore()
	require.NoError(t, store.SaveMap(testSnapshot(t, "beta")))
	require.NoError(t, store.SaveMap(testSnapshot(t, "alpha")))

	mc, _ := newTestMapCache(t, store, nil)

	names, err := mc.Names()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta"}, names)
}
