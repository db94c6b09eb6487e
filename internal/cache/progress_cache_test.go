package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/annel0/voxcity/internal/storage"
)

func newTestProgressCache(t *testing.T) (*ProgressCache, *storage.MemoryProgressRepo, *MemoryCache) {
	t.Helper()
	repo := NewMemoryCache(nil, 0)
	t.Cleanup(func() { repo.Close() })
	progress := storage.NewMemoryProgressRepo()
	return NewProgressCache(repo, progress, time.Minute), progress, repo
}

func TestProgressCache_SaveAndLoad(t *testing.T) {
	pc, progress, repo := newTestProgressCache(t)
	ctx := context.Background()

	p := storage.PlayerProgress{
		MapName:   "classic",
		Rescued:   3,
		Ticks:     5400,
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, pc.Save(ctx, 7, p))

	// Запись синхронно уехала в репозиторий.
	stored, found, err := progress.Load(ctx, 7, "classic")
	require.NoError(t, err)
	require.True(t, found, "Итог обязан попасть в репозиторий")
	require.Equal(t, 3, stored.Rescued)

	got, found, err := pc.Load(ctx, 7, "classic")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, p.Rescued, got.Rescued)
	require.Equal(t, p.Ticks, got.Ticks)

	m := repo.GetMetrics()
	require.Equal(t, int64(1), m.CacheHits, "Чтение после сохранения обязано попасть в кеш")
}

func TestProgressCache_ReadThroughFromRepo(t *testing.T) {
	pc, progress, repo := newTestProgressCache(t)
	ctx := context.Background()

	require.NoError(t, progress.Save(ctx, 9, storage.PlayerProgress{
		MapName: "scattered",
		Rescued: 1,
		Ticks:   900,
	}))

	got, found, err := pc.Load(ctx, 9, "scattered")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, got.Rescued)

	m := repo.GetMetrics()
	require.Equal(t, int64(1), m.CacheMisses, "Первое чтение обязано быть промахом")

	_, found, err = pc.Load(ctx, 9, "scattered")
	require.NoError(t, err)
	require.True(t, found)

	m = repo.GetMetrics()
	require.Equal(t, int64(1), m.CacheHits, "Повторное чтение обязано обслуживаться из кеша")
}

func TestProgressCache_LoadMissing(t *testing.T) {
	pc, _, _ := newTestProgressCache(t)

	_, found, err := pc.Load(context.Background(), 5, "classic")
	require.NoError(t, err)
	require.False(t, found, "Отсутствующий итог не является ошибкой")
}

func TestProgressCache_SaveRejectsInvalid(t *testing.T) {
	pc, _, _ := newTestProgressCache(t)
	ctx := context.Background()

	require.Error(t, pc.Save(ctx, 0, storage.PlayerProgress{MapName: "classic"}),
		"Нулевой идентификатор игрока обязан отклоняться")
	require.Error(t, pc.Save(ctx, 7, storage.PlayerProgress{}),
		"Пустое имя карты обязано отклоняться")
}

func TestProgressCache_DeleteEvictsAllMaps(t *testing.T) {
	pc, progress, repo := newTestProgressCache(t)
	ctx := context.Background()

	require.NoError(t, pc.Save(ctx, 7, storage.PlayerProgress{MapName: "classic", Rescued: 2, Ticks: 100}))
	require.NoError(t, pc.Save(ctx, 7, storage.PlayerProgress{MapName: "ruins", Rescued: 4, Ticks: 200}))

	require.NoError(t, pc.Delete(ctx, 7))

	list, err := progress.All(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, list, "Репозиторий обязан быть пуст после удаления")

	for _, mapName := range []string{"classic", "ruins"} {
		cached, err := repo.Exists(ctx, ProgressKey(7, mapName))
		require.NoError(t, err)
		require.False(t, cached, "Запись %s обязана быть выброшена из кеша", mapName)
	}
}

func TestProgressCache_AllPassthrough(t *testing.T) {
	pc, _, _ := newTestProgressCache(t)
	ctx := context.Background()

	require.NoError(t, pc.Save(ctx, 3, storage.PlayerProgress{MapName: "ruins", Rescued: 1, Ticks: 50}))
	require.NoError(t, pc.Save(ctx, 3, storage.PlayerProgress{MapName: "classic", Rescued: 2, Ticks: 70}))

	list, err := pc.All(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "classic", list[0].MapName, "Список обязан быть отсортирован по имени карты")
	require.Equal(t, "ruins", list[1].MapName)
}
