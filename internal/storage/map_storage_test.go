package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxcity/internal/journal"
	"github.com/annel0/voxcity/internal/world/citygen"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

func setupMapStorage(t *testing.T) *MapStorage {
	t.Helper()

	ms, err := NewMapStorage(t.TempDir())
	require.NoError(t, err, "Не удалось создать хранилище карт")
	t.Cleanup(func() { ms.Close() })
	return ms
}

func TestMapStorage_SaveAndLoad(t *testing.T) {
	ms := setupMapStorage(t)

	g, ramps := citygen.GenerateScattered(30, 30)
	snap := snapshot.FromGrid("scattered-30", g)

	require.NoError(t, ms.SaveMap(snap))

	loaded, err := ms.LoadMap("scattered-30")
	require.NoError(t, err)
	assert.Equal(t, "scattered-30", loaded.Name)
	assert.Equal(t, snap.HeightMap, loaded.HeightMap, "Маски колонн должны пережить сжатие и хранение")
	assert.Equal(t, snap.Ramps, loaded.Ramps)

	g2, err := ms.LoadGrid("scattered-30")
	require.NoError(t, err)
	assert.Equal(t, 30, g2.Width())
	assert.Equal(t, len(ramps), len(g2.Ramps()))
}

func TestMapStorage_LoadMissing(t *testing.T) {
	ms := setupMapStorage(t)

	_, err := ms.LoadMap("нет-такой")
	assert.ErrorIs(t, err, ErrMapNotFound)

	ok, err := ms.HasMap("нет-такой")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMapStorage_SaveRejectsUnnamed(t *testing.T) {
	ms := setupMapStorage(t)

	assert.Error(t, ms.SaveMap(nil))
	assert.Error(t, ms.SaveMap(&snapshot.MapSnapshot{Width: 2, Height: 2}))
}

func TestMapStorage_ListAndDelete(t *testing.T) {
	ms := setupMapStorage(t)

	for _, name := range []string{"beta", "alpha"} {
		g, _ := citygen.GenerateClassic(20, 20)
		require.NoError(t, ms.SaveMap(snapshot.FromGrid(name, g)))
	}

	names, err := ms.ListMaps()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names, "Имена перечисляются в лексикографическом порядке")

	ok, err := ms.HasMap("alpha")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, ms.DeleteMap("alpha"))
	assert.ErrorIs(t, ms.DeleteMap("alpha"), ErrMapNotFound, "Повторное удаление должно сообщать об отсутствии")

	names, err = ms.ListMaps()
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, names)
}

func TestMapStorage_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	ms, err := NewMapStorage(dir)
	require.NoError(t, err)

	g, _ := citygen.GenerateClassic(24, 24)
	require.NoError(t, ms.SaveMap(snapshot.FromGrid("persist", g)))
	require.NoError(t, ms.Close())

	reopened, err := NewMapStorage(dir)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadGrid("persist")
	require.NoError(t, err)
	assert.Equal(t, g.CountOccupied(), loaded.CountOccupied(), "Занятость должна пережить перезапуск")
}

func TestMapStorage_JournalStore(t *testing.T) {
	ms := setupMapStorage(t)
	store := ms.Journal()
	ctx := context.Background()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	early := &journal.Batch{From: t0, To: t0.Add(time.Minute), Count: 2, Compressed: []byte("ранний")}
	late := &journal.Batch{From: t0.Add(time.Hour), To: t0.Add(time.Hour + time.Minute), Count: 1, Compressed: []byte("поздний")}

	require.NoError(t, store.AppendBatch(ctx, early))
	require.NoError(t, store.AppendBatch(ctx, late))

	all, err := store.LoadBatches(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 2, all[0].Count, "Пакеты должны возвращаться в хронологическом порядке")
	assert.Equal(t, []byte("ранний"), all[0].Compressed)

	windowed, err := store.LoadBatches(ctx, t0.Add(30*time.Minute), t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, 1, windowed[0].Count)
}

func TestMapStorage_JournalEndToEnd(t *testing.T) {
	ms := setupMapStorage(t)

	compressor, err := journal.NewZstdCompressor()
	require.NoError(t, err)

	j := journal.NewJournal(ms.Journal(), compressor, 100, time.Hour)
	t0 := time.Now().UTC()
	j.Add(journal.Record{ID: "r1", Timestamp: t0, Source: "game-session", Name: "session.started"})
	j.Add(journal.Record{ID: "r2", Timestamp: t0.Add(time.Second), Source: "game-session", Name: "entity.hostage_rescued"})
	j.Stop()

	recs, err := journal.NewReader(ms.Journal(), compressor).Records(context.Background(), journal.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 2, "Записи должны пройти полный цикл журнал -> Badger -> читатель")
	assert.Equal(t, "session.started", recs[0].Name)
	assert.Equal(t, "entity.hostage_rescued", recs[1].Name)
}

// Benchmarks

func BenchmarkMapStorage_SaveMap(b *testing.B) {
	ms, err := NewMapStorage(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer ms.Close()

	g, _ := citygen.GenerateClassic(60, 60)
	snap := snapshot.FromGrid("bench", g)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ms.SaveMap(snap); err != nil {
			b.Fatal(err)
		}
	}
}
