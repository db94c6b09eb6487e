package storage_adapter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/annel0/voxcity/internal/cache"
	"github.com/annel0/voxcity/internal/storage"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

func TestSnapshotColdStorage_RoundTrip(t *testing.T) {
	store, err := NewFileSnapshotStore(t.TempDir(), true)
	require.NoError(t, err)

	cold := NewSnapshotColdStorage(store)
	ctx := context.Background()

	original := testSnapshot(t, "demo")
	encoded, err := original.Encode()
	require.NoError(t, err)

	require.NoError(t, cold.Store(ctx, cache.MapKey("demo"), encoded))

	// Снапшот дошёл до хранилища карт.
	ok, err := store.HasMap("demo")
	require.NoError(t, err)
	require.True(t, ok)

	data, err := cold.Load(ctx, cache.MapKey("demo"))
	require.NoError(t, err)

	loaded, err := snapshot.Decode(data)
	require.NoError(t, err)
	require.Equal(t, original.HeightMap, loaded.HeightMap)
}

func TestSnapshotColdStorage_MissingMapIsCacheMiss(t *testing.T) {
	store, err := NewFileSnapshotStore(t.TempDir(), true)
	require.NoError(t, err)

	cold := NewSnapshotColdStorage(store)

	_, err = cold.Load(context.Background(), cache.MapKey("absent"))
	require.True(t, cache.IsCacheMiss(err), "Отсутствующая карта обязана превращаться в промах кеша")
}

func TestSnapshotColdStorage_RejectsForeignAndMismatchedKeys(t *testing.T) {
	store, err := NewFileSnapshotStore(t.TempDir(), true)
	require.NoError(t, err)

	cold := NewSnapshotColdStorage(store)
	ctx := context.Background()

	_, err = cold.Load(ctx, "progress:1:demo")
	require.Error(t, err, "Чужой ключ обязан отклоняться")

	encoded, err := testSnapshot(t, "demo").Encode()
	require.NoError(t, err)
	require.Error(t, cold.Store(ctx, cache.MapKey("other"), encoded),
		"Несовпадение имени в снапшоте и ключе обязано отклоняться")

	require.Error(t, cold.Store(ctx, cache.MapKey("demo"), []byte("мусор")),
		"Невалидный снапшот обязан отклоняться")
}

func TestSnapshotColdStorage_BatchLoadSkipsMissing(t *testing.T) {
	store, err := NewFileSnapshotStore(t.TempDir(), true)
	require.NoError(t, err)

	require.NoError(t, store.SaveMap(testSnapshot(t, "alpha")))
	require.NoError(t, store.SaveMap(testSnapshot(t, "beta")))

	cold := NewSnapshotColdStorage(store)

	result, err := cold.BatchLoad(context.Background(), []string{
		cache.MapKey("alpha"),
		cache.MapKey("beta"),
		cache.MapKey("gamma"),
	})
	require.NoError(t, err)
	require.Len(t, result, 2, "Отсутствующая карта просто пропускается")
	require.Contains(t, result, cache.MapKey("alpha"))
	require.Contains(t, result, cache.MapKey("beta"))
}

func progressPayload(t *testing.T, p storage.PlayerProgress) []byte {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return data
}

func TestProgressColdStorage_RoundTrip(t *testing.T) {
	repo := storage.NewMemoryProgressRepo()
	cold := NewProgressColdStorage(repo)
	ctx := context.Background()

	p := storage.PlayerProgress{
		MapName:   "classic",
		Rescued:   2,
		Ticks:     4200,
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, cold.Store(ctx, cache.ProgressKey(7, "classic"), progressPayload(t, p)))

	// Запись дошла до репозитория.
	stored, found, err := repo.Load(ctx, 7, "classic")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, stored.Rescued)

	data, err := cold.Load(ctx, cache.ProgressKey(7, "classic"))
	require.NoError(t, err)

	var loaded storage.PlayerProgress
	require.NoError(t, json.Unmarshal(data, &loaded))
	require.Equal(t, p.Ticks, loaded.Ticks)
}

func TestProgressColdStorage_MissingIsCacheMiss(t *testing.T) {
	cold := NewProgressColdStorage(storage.NewMemoryProgressRepo())

	_, err := cold.Load(context.Background(), cache.ProgressKey(7, "classic"))
	require.True(t, cache.IsCacheMiss(err))
}

func TestProgressColdStorage_RejectsMismatchedKey(t *testing.T) {
	cold := NewProgressColdStorage(storage.NewMemoryProgressRepo())
	ctx := context.Background()

	p := storage.PlayerProgress{MapName: "classic", Rescued: 1, Ticks: 10}
	require.Error(t, cold.Store(ctx, cache.ProgressKey(7, "ruins"), progressPayload(t, p)),
		"Имя карты в записи и ключе обязано совпадать")

	require.Error(t, cold.Store(ctx, "map:demo", progressPayload(t, p)),
		"Чужой ключ обязан отклоняться")
}

func TestProgressColdStorage_BatchStoreGroupsByUser(t *testing.T) {
	repo := storage.NewMemoryProgressRepo()
	cold := NewProgressColdStorage(repo)
	ctx := context.Background()

	items := map[string][]byte{
		cache.ProgressKey(1, "classic"): progressPayload(t, storage.PlayerProgress{MapName: "classic", Rescued: 1, Ticks: 10}),
		cache.ProgressKey(1, "ruins"):   progressPayload(t, storage.PlayerProgress{MapName: "ruins", Rescued: 2, Ticks: 20}),
		cache.ProgressKey(2, "classic"): progressPayload(t, storage.PlayerProgress{MapName: "classic", Rescued: 3, Ticks: 30}),
	}
	require.NoError(t, cold.BatchStore(ctx, items))

	first, err := repo.All(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 2, "Обе карты первого игрока обязаны сохраниться")

	second, err := repo.All(ctx, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 3, second[0].Rescued)
}
